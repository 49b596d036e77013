package driven

import (
	"context"
	"time"
)

// TaskHandle controls a scheduled periodic task.
type TaskHandle interface {
	// Cancel stops further runs. An in-flight run sees its context
	// cancelled and may complete. Cancelling twice is not an error.
	Cancel()

	// Active reports whether the task is still scheduled to repeat.
	Active() bool
}

// Scheduler runs periodic tasks.
type Scheduler interface {
	// Every runs task immediately and then every interval until the returned
	// handle is cancelled. Runs of the same task never overlap.
	Every(interval time.Duration, name string, task func(ctx context.Context)) (TaskHandle, error)
}
