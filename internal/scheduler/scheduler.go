package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-station/internal/dashboard"
)

// Refresher is the part of the dashboard the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) (dashboard.State, error)
}

// Scheduler periodically refreshes the dashboard.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Refresher
	interval  time.Duration
	timeout   time.Duration
	log       *slog.Logger
}

// New creates a new Scheduler. An interval <= 0 disables automatic refreshes.
func New(interval, timeout time.Duration, target Refresher, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		target:    target,
		interval:  interval,
		timeout:   timeout,
		log:       log.With("component", "scheduler"),
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info("automatic refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info("automatic refresh scheduled", "interval", s.interval)
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	state, err := s.target.Refresh(ctx)
	switch {
	case errors.Is(err, dashboard.ErrSuperseded):
		s.log.Debug("scheduled refresh superseded")
	case err != nil:
		s.log.Warn("scheduled refresh failed", "error", err)
	default:
		s.log.Debug("scheduled refresh completed", "status", state.Status, "refresh_id", state.RefreshID)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
