package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/awaistahir/okte-windows/internal/app"
	"github.com/awaistahir/okte-windows/internal/master"
	"github.com/robfig/cron/v3"
)

// Scheduler triggers the daily fetch of every master and the fallback
// refresh of all devices
type Scheduler struct {
	cron     *cron.Cron
	app      *app.App
	fallback time.Duration
	logger   *slog.Logger
}

// New creates a scheduler running in the app's timezone. A zero fallback
// disables the periodic refresh.
func New(a *app.App, fallback time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(a.Location())),
		app:      a,
		fallback: fallback,
		logger:   logger,
	}
}

// DailySpec is the six-field cron spec firing once a day at hour:minute
func DailySpec(hour, minute int) string {
	return fmt.Sprintf("0 %d %d * * *", minute, hour)
}

// FallbackSpec is the cron spec repeating every d
func FallbackSpec(d time.Duration) string {
	return "@every " + d.String()
}

// Register binds calculators to their masters and adds the fetch jobs
func (s *Scheduler) Register(ctx context.Context) error {
	s.app.BindCalculators(ctx)

	for _, m := range s.app.Masters() {
		hour, minute := s.app.FetchClock(m.ID())
		spec := DailySpec(hour, minute)
		if _, err := s.cron.AddFunc(spec, s.fetchJob(ctx, m)); err != nil {
			return fmt.Errorf("register daily fetch for %s: %w", m.ID(), err)
		}
		s.logger.Info("daily fetch scheduled", "master", m.ID(), "spec", spec)
	}

	if s.fallback > 0 {
		spec := FallbackSpec(s.fallback)
		if _, err := s.cron.AddFunc(spec, func() { s.app.RunAll(ctx) }); err != nil {
			return fmt.Errorf("register fallback refresh: %w", err)
		}
		s.logger.Info("fallback refresh scheduled", "every", s.fallback)
	}
	return nil
}

func (s *Scheduler) fetchJob(ctx context.Context, m *master.Master) func() {
	return func() {
		if !m.Run(ctx) {
			s.logger.Info("scheduled fetch skipped, one already running", "master", m.ID())
		}
	}
}

// Entries is the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunNow runs every master and calculator once, blocking until done
func (s *Scheduler) RunNow(ctx context.Context) {
	s.logger.Info("running initial update")
	s.app.RunAll(ctx)
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
