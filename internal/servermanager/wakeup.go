package servermanager

import (
	"context"
	"time"

	"github.com/Shadowner/Infrarust/internal/perrors"
)

// DefaultWakeupDeadline bounds how long WaitUntilRunning polls before
// giving up, per spec.md §4.G.
const DefaultWakeupDeadline = 120 * time.Second

const (
	initialPollInterval = 1 * time.Second
	maxPollInterval     = 10 * time.Second
)

// WaitUntilRunning issues Start, then polls Status with exponential
// backoff (capped at deadline), returning nil once the backend reports
// Running. If the deadline elapses first, it returns a BackendStartFailed
// error; if the backend reports Crashed, it fails immediately.
func WaitUntilRunning(ctx context.Context, p Provider, externalID string, deadline time.Duration) error {
	if deadline <= 0 {
		deadline = DefaultWakeupDeadline
	}

	if err := p.Start(ctx, externalID); err != nil {
		return perrors.Wrap(perrors.BackendStartFailed, "start failed", err)
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	interval := initialPollInterval
	for {
		state, err := p.Status(ctx, externalID)
		if err == nil {
			switch state {
			case StateRunning:
				return nil
			case StateCrashed:
				return perrors.New(perrors.BackendStartFailed, "backend crashed while starting")
			}
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return perrors.Wrap(perrors.BackendStartFailed, "wake-up deadline exceeded", ctx.Err())
		case <-timer.C:
		}

		interval *= 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
}
