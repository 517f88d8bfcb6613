// Package admission owns the proxy's shutdown lifecycle: a root
// cancellation token, coordinated draining of in-flight sessions, and
// the "shutting down" MOTD countdown and the per-route empty-backend idle
// timer, per spec.md §4.L.
package admission

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Drainable is anything admission can ask to stop accepting new work and
// report when its in-flight work has finished.
type Drainable interface {
	// Drain requests a graceful stop: no new sessions are admitted, and
	// existing ones are given grace to finish before being forcibly cut.
	Drain(ctx context.Context, grace time.Duration)
}

// Controller is the process-wide shutdown coordinator. cmd/lodestoned
// constructs one Controller; proxy.New registers the Proxy against it as
// its Drainable.
type Controller struct {
	mu        sync.Mutex
	draining  bool
	drainable []Drainable

	rootCtx    context.Context
	rootCancel context.CancelFunc

	drainStartedAt time.Time
	drainGrace     time.Duration

	log logr.Logger
}

// New constructs a Controller whose root context is canceled the first
// time Shutdown is called.
func New(log logr.Logger) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{rootCtx: ctx, rootCancel: cancel, log: log}
}

// Context returns the root context every accept loop and session should
// derive its own context from; it is canceled on the first Shutdown.
func (c *Controller) Context() context.Context { return c.rootCtx }

// Register adds a component that must be drained on shutdown.
func (c *Controller) Register(d Drainable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainable = append(c.drainable, d)
}

// Shutdown cancels the root context and drains every registered
// component in parallel, each bounded by grace, then returns once all
// have finished (or grace has elapsed for all of them).
func (c *Controller) Shutdown(grace time.Duration) {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.drainStartedAt = time.Now()
	c.drainGrace = grace
	drainable := append([]Drainable(nil), c.drainable...)
	c.mu.Unlock()

	c.log.Info("shutdown requested, draining", "components", len(drainable), "grace", grace)
	c.rootCancel()

	var wg sync.WaitGroup
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	for _, d := range drainable {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Drain(ctx, grace)
		}()
	}
	wg.Wait()
	c.log.Info("drain complete")
}

// DrainRemaining reports whether a Shutdown is in progress and, if so, the
// whole seconds left before grace elapses (floored at zero), for the
// status path's shutting_down MOTD countdown.
func (c *Controller) DrainRemaining() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.draining {
		return 0, false
	}
	remaining := c.drainGrace - time.Since(c.drainStartedAt)
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining / time.Second), true
}

// IdleTimer tracks the "empty since" moment for one backend and fires
// Stop once it has had zero sessions continuously for longer than
// timeout, per spec.md §4.L's empty-backend-shutdown behavior.
type IdleTimer struct {
	mu        sync.Mutex
	timer     *time.Timer
	timeout   time.Duration
	onExpired func()
}

// NewIdleTimer constructs a stopped IdleTimer; call SessionClosed to
// arm it once a backend's session count reaches zero.
func NewIdleTimer(timeout time.Duration, onExpired func()) *IdleTimer {
	return &IdleTimer{timeout: timeout, onExpired: onExpired}
}

// SessionOpened disarms the timer: the backend is no longer empty.
func (t *IdleTimer) SessionOpened() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// SessionClosed arms (or re-arms) the timer if this was the last session
// on the backend (callers only call this once their own counter reaches
// zero).
func (t *IdleTimer) SessionClosed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timeout <= 0 {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.timeout, t.onExpired)
}

// Stop permanently disarms the timer (e.g. on route removal).
func (t *IdleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
