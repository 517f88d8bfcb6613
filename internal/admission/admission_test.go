package admission

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

type recordingDrainable struct {
	drained atomic.Bool
}

func (d *recordingDrainable) Drain(ctx context.Context, grace time.Duration) {
	d.drained.Store(true)
}

func TestShutdownCancelsContextAndDrains(t *testing.T) {
	c := New(logr.Discard())
	d := &recordingDrainable{}
	c.Register(d)

	select {
	case <-c.Context().Done():
		t.Fatal("context canceled before Shutdown")
	default:
	}

	c.Shutdown(100 * time.Millisecond)

	select {
	case <-c.Context().Done():
	default:
		t.Fatal("context not canceled after Shutdown")
	}
	if !d.drained.Load() {
		t.Fatal("expected Drain to have been called")
	}

	// Shutdown must be idempotent.
	c.Shutdown(100 * time.Millisecond)
}

func TestDrainRemainingCountsDownAfterShutdown(t *testing.T) {
	c := New(logr.Discard())

	if _, draining := c.DrainRemaining(); draining {
		t.Fatal("expected not draining before Shutdown")
	}

	c.Shutdown(5 * time.Second)

	remaining, draining := c.DrainRemaining()
	if !draining {
		t.Fatal("expected draining after Shutdown")
	}
	if remaining < 0 || remaining > 5 {
		t.Fatalf("remaining = %d, want in [0,5]", remaining)
	}
}

func TestIdleTimerFiresOnlyAfterTimeout(t *testing.T) {
	fired := make(chan struct{}, 1)
	timer := NewIdleTimer(20*time.Millisecond, func() { fired <- struct{}{} })

	timer.SessionClosed()
	timer.SessionOpened() // disarm before it fires

	select {
	case <-fired:
		t.Fatal("timer fired despite SessionOpened disarming it")
	case <-time.After(60 * time.Millisecond):
	}

	timer.SessionClosed()
	select {
	case <-fired:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer did not fire after re-arming")
	}
}
