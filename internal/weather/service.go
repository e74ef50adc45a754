package weather

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/forecast-aggregation/internal/logger"
	"github.com/i474232898/forecast-aggregation/internal/observability"
)

// Service coordinates refreshes: fetch observations from the feed, run the
// pipeline, and store the result. Only one refresh runs at a time.
type Service struct {
	location  Location
	feed      Feed
	trigger   Trigger
	store     Store
	publisher Publisher
	log       *logger.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	busy atomic.Bool
	seq  atomic.Uint64
}

// Option customises a Service.
type Option func(*Service)

// WithTrigger asks the backend to recompute before every fetch.
func WithTrigger(t Trigger) Option { return func(s *Service) { s.trigger = t } }

// WithPublisher forwards every stored forecast.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *logger.Logger) Option { return func(s *Service) { s.log = l } }

func WithMetrics(m *observability.Metrics) Option { return func(s *Service) { s.metrics = m } }

// NewService creates a new Service. The sequence continues after whatever the
// store already holds.
func NewService(loc Location, feed Feed, store Store, opts ...Option) *Service {
	s := &Service{
		location: loc,
		feed:     feed,
		store:    store,
		log:      logger.NewNop(),
		metrics:  observability.NewMetricsForTesting(),
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if latest, err := store.Latest(); err == nil {
		s.seq.Store(latest.Seq)
	}
	return s
}

// Busy reports whether a refresh is outstanding.
func (s *Service) Busy() bool {
	return s.busy.Load()
}

// Refresh runs one fetch-and-replace cycle. A call made while another refresh
// is outstanding returns ErrRefreshInProgress without doing anything. On any
// failure the stored forecast is left untouched and nothing is retried.
func (s *Service) Refresh(ctx context.Context) (Forecast, error) {
	if s.feed == nil {
		return Forecast{}, errors.New("no observation feed configured")
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.metrics.RefreshesRejected.Inc()
		return Forecast{}, ErrRefreshInProgress
	}
	defer s.busy.Store(false)

	s.metrics.RefreshInFlight.Set(1)
	defer s.metrics.RefreshInFlight.Set(0)

	start := s.clock.Now()
	defer func() { s.metrics.RefreshDuration.Observe(s.clock.Since(start).Seconds()) }()

	seq := s.seq.Add(1)
	id := uuid.NewString()
	fields := map[string]any{"refresh_id": id, "seq": seq, "feed": s.feed.Name(), "location": s.location.Key()}

	if s.trigger != nil {
		if err := s.trigger.TriggerRefresh(ctx); err != nil {
			s.log.Warning("backend recompute failed; fetching current data", merge(fields, map[string]any{"error": err.Error()}))
		}
	}

	observations, err := s.feed.FetchObservations(ctx)
	if err != nil {
		s.metrics.Refreshes.WithLabelValues("feed_error").Inc()
		s.log.Error("fetch observations failed; keeping previous forecast", err, fields)
		return Forecast{}, fmt.Errorf("fetch observations: %w", err)
	}

	pipelineStart := s.clock.Now()
	days, err := Run(observations)
	s.metrics.PipelineDuration.Observe(s.clock.Since(pipelineStart).Seconds())
	if err != nil {
		s.metrics.Refreshes.WithLabelValues("pipeline_error").Inc()
		s.log.Error("forecast pipeline failed; keeping previous forecast", err, fields)
		return Forecast{}, fmt.Errorf("aggregate observations: %w", err)
	}

	forecast := Forecast{
		ID:           id,
		Seq:          seq,
		Location:     s.location,
		Source:       s.feed.Name(),
		FetchedAt:    s.clock.Now().UTC(),
		Observations: observations,
		Days:         days,
	}

	if err := s.store.Save(forecast); err != nil {
		if errors.Is(err, ErrStaleForecast) {
			s.metrics.Refreshes.WithLabelValues("stale").Inc()
			s.log.Warning("discarding stale forecast", fields)
		} else {
			s.metrics.Refreshes.WithLabelValues("store_error").Inc()
			s.log.Error("store forecast failed", err, fields)
		}
		return Forecast{}, fmt.Errorf("store forecast: %w", err)
	}

	s.metrics.Refreshes.WithLabelValues("success").Inc()
	s.metrics.ObservationsSeen.Set(float64(len(observations)))
	s.metrics.DaysProduced.Set(float64(len(days)))
	s.log.Info("forecast refreshed", merge(fields, map[string]any{
		"observations": len(observations),
		"days":         len(days),
	}))

	if s.publisher != nil {
		if err := s.publisher.PublishDays(ctx, forecast); err != nil {
			s.log.Error("publish day summaries failed", err, fields)
		}
	}

	return forecast, nil
}

// Latest returns the most recently stored forecast.
func (s *Service) Latest() (Forecast, error) {
	return s.store.Latest()
}

// History returns up to limit stored forecasts, newest first.
func (s *Service) History(limit int) ([]Forecast, error) {
	return s.store.History(limit)
}

// Current returns the first observation of the latest batch, the reading a
// dashboard shows as current conditions.
func (s *Service) Current() (Observation, error) {
	latest, err := s.store.Latest()
	if err != nil {
		return Observation{}, err
	}
	if len(latest.Observations) == 0 {
		return Observation{}, ErrNotFound
	}
	return latest.Observations[0], nil
}

func merge(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
