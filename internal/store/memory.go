package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/forecast-aggregation/internal/weather"
)

// ErrNotFound is returned when no forecast has been stored yet.
var ErrNotFound = weather.ErrNotFound

// MemoryStore is a concurrency-safe in-memory forecast store. It keeps a
// short history of accepted forecasts, oldest first.
type MemoryStore struct {
	mu sync.RWMutex

	forecasts []weather.Forecast

	// retention configuration
	maxHistory int           // max number of forecasts kept
	maxAge     time.Duration // optional max age measured from FetchedAt
	clock      clockwork.Clock
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clock,
	}
}

// Save appends f unless a forecast with the same or a newer Seq is already held.
func (s *MemoryStore) Save(f weather.Forecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.forecasts); n > 0 && f.Seq <= s.forecasts[n-1].Seq {
		return fmt.Errorf("%w: seq %d, latest %d", weather.ErrStaleForecast, f.Seq, s.forecasts[n-1].Seq)
	}

	s.forecasts = append(s.forecasts, f)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.forecasts) > s.maxHistory {
		over := len(s.forecasts) - s.maxHistory
		s.forecasts = s.forecasts[over:]
	}

	// Enforce retention by age, always keeping the newest forecast.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.forecasts)-1; i++ {
			if !s.forecasts[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		s.forecasts = s.forecasts[i:]
	}

	return nil
}

// Latest returns the most recent forecast.
func (s *MemoryStore) Latest() (weather.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.forecasts) == 0 {
		return weather.Forecast{}, ErrNotFound
	}
	return s.forecasts[len(s.forecasts)-1], nil
}

// History returns up to limit forecasts, newest first. limit <= 0 means all.
func (s *MemoryStore) History(limit int) ([]weather.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.forecasts) == 0 {
		return nil, ErrNotFound
	}

	n := len(s.forecasts)
	if limit <= 0 || limit > n {
		limit = n
	}
	result := make([]weather.Forecast, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		result = append(result, s.forecasts[i])
	}
	return result, nil
}
