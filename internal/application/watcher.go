package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// WatchMode selects what drives a watcher's polls.
type WatchMode int

const (
	// WatchOnTimer polls on a schedule ("instagram in" nodes).
	WatchOnTimer WatchMode = iota
	// WatchOnInput polls when the node receives a message ("instagram" nodes).
	WatchOnInput
)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	NodeID       string
	ConnectionID string
	Input        model.InputType
	Output       model.OutputType
	Mode         WatchMode
	Interval     time.Duration
}

// Watcher follows a media listing and emits each item that appeared since the
// previous poll. The first poll only records the newest item id (the
// watermark) so existing history is not replayed. The watermark lives in
// memory and is re-seeded after a restart.
type Watcher struct {
	cfg       WatcherConfig
	store     driven.CredentialStore
	source    driven.MediaSource
	scheduler driven.Scheduler
	out       driven.Output

	// pollMu serialises polls and guards the watermark fields.
	pollMu      sync.Mutex
	initialized bool
	watermark   string
	failed      bool

	lifeMu  sync.Mutex
	handle  driven.TaskHandle
	started bool
	stopped atomic.Bool
}

// NewWatcher creates a Watcher. scheduler may be nil for WatchOnInput.
func NewWatcher(
	cfg WatcherConfig,
	store driven.CredentialStore,
	source driven.MediaSource,
	scheduler driven.Scheduler,
	out driven.Output,
) *Watcher {
	return &Watcher{
		cfg:       cfg,
		store:     store,
		source:    source,
		scheduler: scheduler,
		out:       out,
	}
}

// Start seeds the watermark and, in timer mode, schedules polling every
// configured interval. Starting a stopped watcher is not supported.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.cfg.Input.Valid() {
		w.out.Status(model.StatusInvalidType)
		return fmt.Errorf("%w: input type %q", model.ErrConfiguration, w.cfg.Input)
	}
	if !w.cfg.Output.Valid() {
		w.out.Status(model.StatusInvalidType)
		return fmt.Errorf("%w: output type %q", model.ErrConfiguration, w.cfg.Output)
	}

	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()

	if w.stopped.Load() {
		return fmt.Errorf("watcher %s: already stopped", w.cfg.NodeID)
	}
	if w.started {
		return nil
	}

	if w.cfg.Mode == WatchOnInput {
		w.started = true
		if err := w.Poll(ctx); err != nil {
			slog.Warn("initial poll failed", "node", w.cfg.NodeID, "error", err)
		}
		return nil
	}

	if w.scheduler == nil {
		return fmt.Errorf("%w: watcher %s has no scheduler", model.ErrConfiguration, w.cfg.NodeID)
	}
	w.out.Status(model.StatusPolling)
	handle, err := w.scheduler.Every(w.cfg.Interval, "watch:"+w.cfg.NodeID, func(ctx context.Context) {
		_ = w.Poll(ctx)
	})
	if err != nil {
		w.out.Status(model.StatusFailed)
		return fmt.Errorf("scheduling watcher %s: %w", w.cfg.NodeID, err)
	}
	w.handle = handle
	w.started = true

	slog.Info("watcher started", "node", w.cfg.NodeID, "interval", w.cfg.Interval)
	return nil
}

// Stop cancels the schedule. Polls already in flight finish without emitting.
// Stop is idempotent.
func (w *Watcher) Stop() {
	if w.stopped.Swap(true) {
		return
	}

	w.lifeMu.Lock()
	handle := w.handle
	w.lifeMu.Unlock()

	if handle != nil {
		handle.Cancel()
	}
	w.out.Status(model.StatusClear)
	slog.Info("watcher stopped", "node", w.cfg.NodeID)
}

// Active reports whether the watcher is running. In timer mode this reflects
// the schedule handle.
func (w *Watcher) Active() bool {
	if w.stopped.Load() {
		return false
	}

	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()

	if w.handle != nil {
		return w.handle.Active()
	}
	return w.started
}

// Input polls once and forwards new items as copies of msg.
func (w *Watcher) Input(ctx context.Context, msg model.Message) error {
	return w.poll(ctx, msg)
}

// Poll runs one poll cycle. A failed poll leaves the watermark untouched.
func (w *Watcher) Poll(ctx context.Context) error {
	return w.poll(ctx, model.Message{})
}

// Watermark returns the id of the newest item seen so far.
func (w *Watcher) Watermark() string {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()
	return w.watermark
}

func (w *Watcher) poll(ctx context.Context, base model.Message) error {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()

	if w.stopped.Load() {
		return nil
	}

	fields, err := w.store.GetAll(ctx, w.cfg.ConnectionID)
	if err != nil {
		return w.fail("loading credentials", fmt.Errorf("loading credentials: %w", err))
	}
	creds := model.CredentialsFromFields(w.cfg.ConnectionID, fields)
	if !creds.Authorized() {
		w.out.Status(model.StatusUnauthorized)
		return model.ErrNotAuthorized
	}

	if !w.initialized {
		item, ok, err := w.source.Latest(ctx, creds, w.cfg.Input)
		if err != nil {
			return w.fail("seeding watermark", err)
		}
		if ok {
			w.watermark = item.ID
		}
		w.initialized = true
		w.recovered()
		slog.Debug("watermark seeded", "node", w.cfg.NodeID, "watermark", w.watermark)
		return nil
	}

	items, err := w.source.Since(ctx, creds, w.cfg.Input, w.watermark)
	if err != nil {
		return w.fail("polling", err)
	}

	fresh := newItems(items, w.watermark)
	if len(fresh) == 0 {
		w.recovered()
		return nil
	}

	payloads := make([]any, 0, len(fresh))
	for _, item := range fresh {
		payload, err := w.payload(ctx, item)
		if err != nil {
			return w.fail("building payload", err)
		}
		payloads = append(payloads, payload)
	}

	for _, item := range fresh {
		if item.ID != "" {
			w.watermark = item.ID
			break
		}
	}
	w.recovered()

	for _, payload := range payloads {
		if w.stopped.Load() {
			return nil
		}
		msg := base
		msg.Payload = payload
		w.out.Send(msg)
	}

	slog.Info("new media emitted", "node", w.cfg.NodeID, "count", len(payloads), "watermark", w.watermark)
	return nil
}

// payload builds the outgoing payload for item according to the output type.
func (w *Watcher) payload(ctx context.Context, item model.MediaItem) (any, error) {
	if w.cfg.Output == model.OutputTypeFile {
		return w.source.Download(ctx, item.MediaURL)
	}
	return item.MediaURL, nil
}

func (w *Watcher) fail(stage string, err error) error {
	if w.stopped.Load() {
		return err
	}
	slog.Error("watcher poll failed", "node", w.cfg.NodeID, "stage", stage, "error", err)
	w.failed = true
	w.out.Status(model.StatusFailed)
	return err
}

// recovered restores the running status after a failed poll.
func (w *Watcher) recovered() {
	if !w.failed {
		return
	}
	w.failed = false
	if w.cfg.Mode == WatchOnTimer {
		w.out.Status(model.StatusPolling)
	} else {
		w.out.Status(model.StatusClear)
	}
}

// newItems returns the leading items of a newest-first listing up to, but not
// including, the item whose id equals watermark.
func newItems(items []model.MediaItem, watermark string) []model.MediaItem {
	if watermark == "" {
		return items
	}
	for i, item := range items {
		if item.ID == watermark {
			return items[:i]
		}
	}
	return items
}
