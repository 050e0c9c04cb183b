package build

import (
	"context"
	"log/slog"
	"sync"
	"time"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
)

// DebouncerConfig configures a Debouncer.
type DebouncerConfig struct {
	// QuietWindow is how long requests must stop before a flush.
	QuietWindow time.Duration
	// MaxDelay bounds how long a burst can postpone a flush. Zero disables it.
	MaxDelay time.Duration
	// Flush receives the coalesced paths, sorted.
	Flush  func(ctx context.Context, paths []string) error
	Logger *slog.Logger
}

// Debouncer coalesces bursts of changed paths into single flushes.
//
// It keeps a pending path set and an in-flight flag. A request while a flush
// runs is held back, and the held paths are flushed as soon as the running
// flush returns. Nothing happens until Request is called.
type Debouncer struct {
	ctx context.Context
	cfg DebouncerConfig

	mu       sync.Mutex
	pending  sets.Set[string]
	firstAt  time.Time
	timer    *time.Timer
	running  bool
	stopped  bool
	inflight sync.WaitGroup
}

// NewDebouncer validates cfg. Flushes run with ctx.
func NewDebouncer(ctx context.Context, cfg DebouncerConfig) (*Debouncer, error) {
	if cfg.QuietWindow <= 0 {
		return nil, derrors.ValidationError("quiet window must be > 0").Build()
	}
	if cfg.MaxDelay < 0 {
		return nil, derrors.ValidationError("max delay must not be negative").Build()
	}
	if cfg.Flush == nil {
		return nil, derrors.ValidationError("flush function is required").Build()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Debouncer{ctx: ctx, cfg: cfg, pending: sets.New[string]()}, nil
}

// Request adds paths to the pending set and (re)arms the quiet window timer.
func (d *Debouncer) Request(paths ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(paths) == 0 {
		return
	}
	if len(d.pending) == 0 {
		d.firstAt = time.Now()
	}
	for _, p := range paths {
		d.pending.Add(p)
	}
	if d.running {
		return
	}
	d.armLocked(d.cfg.QuietWindow)
}

func (d *Debouncer) armLocked(wait time.Duration) {
	if d.cfg.MaxDelay > 0 {
		if remaining := d.cfg.MaxDelay - time.Since(d.firstAt); remaining < wait {
			wait = max(remaining, 0)
		}
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(wait, d.fire)
}

// Pending returns the number of paths waiting for a flush.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush runs a flush now if one is not already running.
func (d *Debouncer) Flush() { d.fire() }

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.running || d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	paths := sets.Sorted(d.pending)
	d.pending = sets.New[string]()
	d.running = true
	d.inflight.Add(1)
	d.mu.Unlock()

	if err := d.cfg.Flush(d.ctx, paths); err != nil {
		d.cfg.Logger.Error("Debounced rebuild failed", logfields.Count(len(paths)), logfields.Error(err))
	}

	d.mu.Lock()
	d.running = false
	if len(d.pending) > 0 && !d.stopped {
		d.armLocked(0)
	}
	d.mu.Unlock()
	d.inflight.Done()
}

// Stop cancels the timer and waits for a running flush. Later requests are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.inflight.Wait()
}
