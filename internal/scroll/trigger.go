package scroll

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Option defaults.
const (
	DefaultThreshold = 0.1
	DefaultMargin    = 200
)

// LoadFunc loads the next batch of items.
type LoadFunc func(ctx context.Context) error

// Options configures a Trigger.
type Options struct {
	// Threshold is the visible ratio at which the sentinel counts as visible.
	Threshold float64
	// Margin is how far below the viewport, in pixels or rows, the sentinel
	// may be and still be considered in view.
	Margin float64
	// Disabled suppresses observation entirely.
	Disabled bool
}

// DefaultOptions returns the default threshold and margin.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Margin: DefaultMargin}
}

// Trigger calls a LoadFunc each time an observed sentinel becomes visible
// while more items are available and no load is running.
type Trigger struct {
	observer Observer
	load     LoadFunc
	logger   *zap.Logger

	mu       sync.Mutex
	opts     Options
	hasMore  bool
	loading  bool
	sentinel Sentinel
	// epoch identifies the current observation; callbacks from older
	// observations are ignored.
	epoch   uint64
	visible bool
	// pending records an observation skipped while a load was running.
	pending bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewTrigger creates a detached Trigger. A zero Threshold selects
// DefaultThreshold.
func NewTrigger(observer Observer, load LoadFunc, hasMore bool, opts Options, logger *zap.Logger) *Trigger {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Trigger{
		observer: observer,
		load:     load,
		logger:   logger,
		opts:     opts,
		hasMore:  hasMore,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Attach observes s. It does nothing while there is nothing more to load, a
// load is running or the trigger is disabled. An empty s only disconnects.
func (t *Trigger) Attach(s Sentinel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sentinel = s
	t.observeLocked()
}

// observeLocked (re)creates the observation for the current sentinel.
func (t *Trigger) observeLocked() {
	if t.loading {
		t.pending = true
		return
	}
	if t.opts.Disabled || !t.hasMore {
		return
	}
	t.disconnectLocked()
	if t.sentinel == "" {
		return
	}
	t.epoch++
	epoch := t.epoch
	t.visible = false
	t.observer.Observe(t.sentinel, func(e Entry) { t.handle(epoch, e) })
}

func (t *Trigger) disconnectLocked() {
	t.observer.Disconnect()
	t.epoch++
	t.visible = false
}

func (t *Trigger) handle(epoch uint64, e Entry) {
	t.mu.Lock()
	if epoch != t.epoch {
		t.mu.Unlock()
		return
	}
	wasVisible := t.visible
	t.visible = e.Ratio >= t.opts.Threshold
	if !t.visible || wasVisible || !t.hasMore || t.loading {
		t.mu.Unlock()
		return
	}
	t.loading = true
	ctx := t.ctx
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.loading = false
		t.visible = false
		if t.pending {
			t.pending = false
			t.observeLocked()
		}
	}()

	if err := t.load(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			t.logger.Debug("load cancelled")
			return
		}
		t.logger.Warn("failed to load more items", zap.Error(err))
	}
}

// SetHasMore updates whether more items exist and re-creates the
// observation. With nothing more to load observation stops.
func (t *Trigger) SetHasMore(hasMore bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasMore = hasMore
	if !hasMore {
		t.disconnectLocked()
		return
	}
	t.observeLocked()
}

// SetDisabled enables or disables the trigger.
func (t *Trigger) SetDisabled(disabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opts.Disabled = disabled
	if disabled {
		t.disconnectLocked()
		return
	}
	t.observeLocked()
}

// Loading reports whether a load is running.
func (t *Trigger) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

// HasMore reports the last value given to SetHasMore or NewTrigger.
func (t *Trigger) HasMore() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasMore
}

// Reset stops observing, cancels a running load and clears the loading flag.
// Attach starts a new observation.
func (t *Trigger) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnectLocked()
	t.cancel()
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.loading = false
	t.pending = false
}

// Detach stops observing and cancels a running load.
func (t *Trigger) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnectLocked()
	t.sentinel = ""
	t.pending = false
	t.cancel()
	t.ctx, t.cancel = context.WithCancel(context.Background())
}
