// Package schedule implements the driven Scheduler port on gocron.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Scheduler  = (*Scheduler)(nil)
	_ driven.TaskHandle = (*handle)(nil)
)

// Scheduler runs periodic tasks as gocron duration jobs in singleton mode.
type Scheduler struct {
	cron gocron.Scheduler
}

// NewScheduler creates and starts a Scheduler.
func NewScheduler() (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	cron.Start()
	return &Scheduler{cron: cron}, nil
}

// Every schedules task to run now and then every interval. A run that is
// still going when the next one is due delays it instead of overlapping.
func (s *Scheduler) Every(interval time.Duration, name string, task func(ctx context.Context)) (driven.TaskHandle, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("schedule %q: interval must be positive, got %s", name, interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{cron: s.cron, cancel: cancel, name: name}
	h.active.Store(true)

	job, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("scheduled task panicked", "task", name, "panic", r)
				}
			}()
			task(ctx)
		}),
		gocron.WithName(name),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("schedule %q: %w", name, err)
	}
	h.id = job.ID()

	return h, nil
}

// Shutdown stops all jobs and waits for running tasks to return.
func (s *Scheduler) Shutdown() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

// handle is the TaskHandle of a scheduled job.
type handle struct {
	cron   gocron.Scheduler
	id     uuid.UUID
	name   string
	cancel context.CancelFunc

	once   sync.Once
	active atomic.Bool
}

// Cancel unschedules the job and cancels the context of an in-flight run.
func (h *handle) Cancel() {
	h.once.Do(func() {
		h.active.Store(false)
		h.cancel()
		if err := h.cron.RemoveJob(h.id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
			slog.Warn("failed to remove scheduled job", "task", h.name, "error", err)
		}
	})
}

// Active reports whether the job is still scheduled.
func (h *handle) Active() bool {
	return h.active.Load()
}
