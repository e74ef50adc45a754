package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/forecast-aggregation/internal/weather"
)

func newTestSQLite(t *testing.T, maxHistory int) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "forecasts.db"), maxHistory)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newTestSQLite(t, 0)

	_, err := s.Latest()
	assert.ErrorIs(t, err, ErrNotFound)

	fetched := time.Date(2025, 4, 4, 12, 30, 0, 0, time.UTC)
	in := weather.Forecast{
		ID:        "abc",
		Seq:       7,
		Location:  weather.Location{City: "São Paulo", Country: "BR"},
		Source:    "backend",
		FetchedAt: fetched,
		Observations: []weather.Observation{
			{Timestamp: "2025-04-04T09:00:00-03:00", Temperature: 21, Weather: "chuva leve", Location: "São Paulo"},
		},
		Days: []weather.DaySummary{
			{Date: weather.CivilDate{Year: 2025, Month: time.April, Day: 4}, TemperatureMin: 21, TemperatureMax: 21, IconCategory: weather.IconLightRain},
		},
	}
	require.NoError(t, s.Save(in))

	out, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Seq, out.Seq)
	assert.Equal(t, in.Location, out.Location)
	assert.True(t, in.FetchedAt.Equal(out.FetchedAt))
	assert.Equal(t, in.Observations, out.Observations)
	assert.Equal(t, in.Days, out.Days)
}

func TestSQLiteStoreRejectsStale(t *testing.T) {
	s := newTestSQLite(t, 0)
	now := time.Now().UTC()

	require.NoError(t, s.Save(weather.Forecast{ID: "b", Seq: 5, FetchedAt: now}))
	err := s.Save(weather.Forecast{ID: "a", Seq: 4, FetchedAt: now})
	assert.ErrorIs(t, err, weather.ErrStaleForecast)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
}

func TestSQLiteStoreRetention(t *testing.T) {
	s := newTestSQLite(t, 2)
	now := time.Now().UTC()
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, s.Save(weather.Forecast{ID: "f", Seq: seq, FetchedAt: now}))
	}

	history, err := s.History(0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, uint64(5), history[0].Seq)
	assert.Equal(t, uint64(4), history[1].Seq)
}
