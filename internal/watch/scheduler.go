package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/mdcompile/internal/cache"
	ferrors "git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
)

// Scheduler wraps a gocron scheduler for periodic maintenance jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler", logfields.Count(len(s.scheduler.Jobs())))
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleEvery runs task every interval and returns the job id.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, task func()) (string, error) {
	if interval <= 0 {
		return "", ferrors.ValidationError("interval must be > 0").WithContext("job", name).Build()
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create job %s: %w", name, err)
	}
	return job.ID().String(), nil
}

// ScheduleCacheGC collects unreferenced cache storage every interval.
func (s *Scheduler) ScheduleCacheGC(ctx context.Context, interval time.Duration, c cache.Collector) (string, error) {
	if c == nil {
		return "", ferrors.ValidationError("cache collector is required").Build()
	}
	return s.ScheduleEvery("cache-gc", interval, func() {
		start := time.Now()
		n, err := c.GC(ctx)
		if err != nil {
			slog.Warn("Cache garbage collection failed", logfields.Error(err))
			return
		}
		slog.Info("Cache garbage collected",
			logfields.Count(n),
			logfields.DurationMS(float64(time.Since(start).Milliseconds())),
			logfields.ScheduleID("cache-gc"))
	})
}
