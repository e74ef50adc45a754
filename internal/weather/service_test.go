package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/forecast-aggregation/internal/observability"
)

// fakeFeed returns canned observations. When gate is set, FetchObservations
// blocks until it is closed.
type fakeFeed struct {
	mu    sync.Mutex
	obs   []Observation
	err   error
	calls int
	gate  chan struct{}
	ready chan struct{}
}

func (f *fakeFeed) Name() string { return "fake" }

func (f *fakeFeed) FetchObservations(ctx context.Context) ([]Observation, error) {
	f.mu.Lock()
	f.calls++
	gate, ready := f.gate, f.ready
	f.mu.Unlock()

	if ready != nil {
		close(ready)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.obs, f.err
}

type fakeTrigger struct{ err error }

func (t *fakeTrigger) TriggerRefresh(context.Context) error { return t.err }

type fakePublisher struct {
	published []Forecast
	err       error
}

func (p *fakePublisher) PublishDays(_ context.Context, f Forecast) error {
	p.published = append(p.published, f)
	return p.err
}

// memStore is a minimal Store for service tests.
type memStore struct {
	mu        sync.Mutex
	forecasts []Forecast
	saveErr   error
}

func (s *memStore) Save(f Forecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if n := len(s.forecasts); n > 0 && f.Seq <= s.forecasts[n-1].Seq {
		return ErrStaleForecast
	}
	s.forecasts = append(s.forecasts, f)
	return nil
}

func (s *memStore) Latest() (Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.forecasts) == 0 {
		return Forecast{}, ErrNotFound
	}
	return s.forecasts[len(s.forecasts)-1], nil
}

func (s *memStore) History(limit int) ([]Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.forecasts) == 0 {
		return nil, ErrNotFound
	}
	return s.forecasts, nil
}

var spLocation = Location{City: "São Paulo", Country: "BR"}

func sampleObservations() []Observation {
	return []Observation{
		{Timestamp: "2025-04-04T09:00:00-03:00", Temperature: 18, Humidity: 40, WindSpeed: 5, Weather: "chuva leve", Location: "São Paulo"},
		{Timestamp: "2025-04-04T15:00:00-03:00", Temperature: 22, Humidity: 60, WindSpeed: 15, Weather: "céu limpo", Location: "São Paulo"},
		{Timestamp: "2025-04-05T09:00:00-03:00", Temperature: 20, Humidity: 70, WindSpeed: 8, Weather: "nublado", Location: "São Paulo"},
	}
}

func TestServiceRefreshStoresForecast(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 4, 4, 12, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	store := &memStore{}
	pub := &fakePublisher{}
	svc := NewService(spLocation, &fakeFeed{obs: sampleObservations()}, store,
		WithClock(clock), WithMetrics(metrics), WithPublisher(pub))

	f, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), f.Seq)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "fake", f.Source)
	assert.Equal(t, clock.Now().UTC(), f.FetchedAt)
	require.Len(t, f.Days, 2)
	assert.Equal(t, 18.0, f.Days[0].TemperatureMin)
	assert.Equal(t, IconCloudy, f.Days[1].IconCategory)

	latest, err := svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, f.ID, latest.ID)

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, "chuva leve", current.Weather)

	require.Len(t, pub.published, 1)
	assert.Equal(t, f.ID, pub.published[0].ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DaysProduced))
	assert.False(t, svc.Busy())
}

func TestServicePipelineDurationUsesInjectedClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 4, 4, 12, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	svc := NewService(spLocation, &fakeFeed{obs: sampleObservations()}, &memStore{},
		WithClock(clock), WithMetrics(metrics))

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	var m dto.Metric
	require.NoError(t, metrics.PipelineDuration.Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	// The fake clock never advances, so the observed duration is exactly zero.
	assert.Equal(t, 0.0, m.GetHistogram().GetSampleSum())
}

func TestServiceRefreshRejectsReentrantCall(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	feed := &fakeFeed{obs: sampleObservations(), gate: make(chan struct{}), ready: make(chan struct{})}
	svc := NewService(spLocation, feed, &memStore{}, WithMetrics(metrics))

	done := make(chan error, 1)
	go func() {
		_, err := svc.Refresh(context.Background())
		done <- err
	}()

	<-feed.ready
	assert.True(t, svc.Busy())

	_, err := svc.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshesRejected))

	close(feed.gate)
	require.NoError(t, <-done)
	assert.False(t, svc.Busy())

	feed.mu.Lock()
	assert.Equal(t, 1, feed.calls)
	feed.gate, feed.ready = nil, nil
	feed.mu.Unlock()

	// Idle again: the next refresh runs.
	f, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Seq)
}

func TestServiceRefreshFeedFailureKeepsPreviousForecast(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	feed := &fakeFeed{obs: sampleObservations()}
	store := &memStore{}
	svc := NewService(spLocation, feed, store, WithMetrics(metrics))

	first, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	feed.err = errors.New("connection refused")
	_, err = svc.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	latest, err := svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)
	assert.False(t, svc.Busy())
	assert.Equal(t, 2, feed.calls, "a failed fetch is not retried")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues("feed_error")))
}

func TestServiceRefreshPipelineFailureKeepsPreviousForecast(t *testing.T) {
	feed := &fakeFeed{obs: sampleObservations()}
	svc := NewService(spLocation, feed, &memStore{})

	first, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	feed.obs = []Observation{{Timestamp: "???"}}
	_, err = svc.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrMalformedTimestamp)

	latest, err := svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)
}

func TestServiceRefreshStaleForecastDiscarded(t *testing.T) {
	store := &memStore{}
	require.NoError(t, store.Save(Forecast{ID: "newer", Seq: 10}))

	svc := NewService(spLocation, &fakeFeed{obs: sampleObservations()}, store)
	// A second coordinator sharing the store got ahead in the meantime.
	require.NoError(t, store.Save(Forecast{ID: "newest", Seq: 11}))

	_, err := svc.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrStaleForecast)

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, "newest", latest.ID)
}

func TestServiceSequenceContinuesFromStore(t *testing.T) {
	store := &memStore{}
	require.NoError(t, store.Save(Forecast{ID: "old", Seq: 41}))

	svc := NewService(spLocation, &fakeFeed{obs: sampleObservations()}, store)
	f, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), f.Seq)
}

func TestServiceTriggerFailureStillFetches(t *testing.T) {
	feed := &fakeFeed{obs: sampleObservations()}
	svc := NewService(spLocation, feed, &memStore{}, WithTrigger(&fakeTrigger{err: errors.New("502")}))

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, feed.calls)
}

func TestServicePublishFailureDoesNotFailRefresh(t *testing.T) {
	svc := NewService(spLocation, &fakeFeed{obs: sampleObservations()}, &memStore{},
		WithPublisher(&fakePublisher{err: errors.New("broker down")}))

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
}

func TestServiceWithoutFeed(t *testing.T) {
	svc := NewService(spLocation, nil, &memStore{})
	_, err := svc.Refresh(context.Background())
	assert.Error(t, err)
}

func TestServiceCurrentWithoutData(t *testing.T) {
	svc := NewService(spLocation, &fakeFeed{}, &memStore{})
	_, err := svc.Current()
	assert.ErrorIs(t, err, ErrNotFound)
}
