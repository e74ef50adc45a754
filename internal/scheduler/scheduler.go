package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/forecast-aggregation/internal/logger"
	"github.com/i474232898/forecast-aggregation/internal/weather"
)

// Refresher is the part of weather.Service the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) (weather.Forecast, error)
}

// Scheduler periodically refreshes the forecast.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	log       *logger.Logger
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. An interval of zero disables periodic refreshes.
func New(refresher Refresher, interval, timeout time.Duration, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		log:       log,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first refresh runs immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info("scheduler: no refresh interval configured; nothing to schedule")
		return nil
	}

	if _, err := s.scheduler.Every(s.interval).Do(s.run); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler: started", map[string]any{"interval": s.interval.String()})
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	f, err := s.refresher.Refresh(ctx)
	switch {
	case errors.Is(err, weather.ErrRefreshInProgress):
		s.log.Info("scheduler: refresh already running; skipping tick")
	case err != nil:
		s.log.Error("scheduler: refresh failed", err)
	default:
		s.log.Debug("scheduler: refresh completed", map[string]any{"seq": f.Seq, "days": len(f.Days)})
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
