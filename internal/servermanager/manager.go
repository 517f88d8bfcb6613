// Package servermanager defines the abstract backend-lifecycle capability
// the core depends on (spec.md §4.G): query state, start, stop, restart.
// Concrete REST clients (Pterodactyl, Crafty, Docker) are external
// collaborators; only their contract is referenced here.
package servermanager

import (
	"context"
	"fmt"
	"sync"
)

// State is the lifecycle state of a backend server.
type State string

const (
	StateRunning  State = "Running"
	StateStarting State = "Starting"
	StateStopping State = "Stopping"
	StateStopped  State = "Stopped"
	StateCrashed  State = "Crashed"
	StateUnknown  State = "Unknown"
)

// Provider is the tagged-variant capability the core consumes. It is
// deliberately narrow: status/start/stop/restart only, best-effort.
type Provider interface {
	Status(ctx context.Context, externalID string) (State, error)
	Start(ctx context.Context, externalID string) error
	Stop(ctx context.Context, externalID string) error
	Restart(ctx context.Context, externalID string) error
}

// Local is an in-process Provider backing a pure status table: it does
// not itself manage any subprocess, but lets this core's idle-timer and
// wake-up logic be exercised end to end in a deployment where something
// outside this proxy (a supervisor script, an operator) flips state, or
// in tests. Start/Stop/Restart here only record the intent transition; a
// real Local variant that forks a child process is an external
// collaborator per spec.md §1.
type Local struct {
	mu     sync.Mutex
	states map[string]State
}

// NewLocal returns a Local provider with every externalID defaulting to
// StateUnknown until SetState or Start/Stop is called.
func NewLocal() *Local {
	return &Local{states: map[string]State{}}
}

func (l *Local) Status(_ context.Context, externalID string) (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.states[externalID]; ok {
		return s, nil
	}
	return StateUnknown, nil
}

func (l *Local) Start(_ context.Context, externalID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[externalID] = StateStarting
	return nil
}

func (l *Local) Stop(_ context.Context, externalID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[externalID] = StateStopping
	return nil
}

func (l *Local) Restart(ctx context.Context, externalID string) error {
	if err := l.Stop(ctx, externalID); err != nil {
		return err
	}
	return l.Start(ctx, externalID)
}

// SetState is a test/operator hook to drive the status table directly
// (e.g. simulating a backend finishing startup).
func (l *Local) SetState(externalID string, s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[externalID] = s
}

// unimplementedProvider satisfies Provider for the external REST client
// variants this core does not own; constructing one documents the
// intended wiring point without pretending to implement the HTTP client.
type unimplementedProvider struct{ name string }

func (u unimplementedProvider) Status(context.Context, string) (State, error) {
	return StateUnknown, fmt.Errorf("servermanager: %s provider is an external collaborator, not implemented in-core", u.name)
}
func (u unimplementedProvider) Start(context.Context, string) error {
	return fmt.Errorf("servermanager: %s provider is an external collaborator, not implemented in-core", u.name)
}
func (u unimplementedProvider) Stop(context.Context, string) error {
	return fmt.Errorf("servermanager: %s provider is an external collaborator, not implemented in-core", u.name)
}
func (u unimplementedProvider) Restart(context.Context, string) error {
	return fmt.Errorf("servermanager: %s provider is an external collaborator, not implemented in-core", u.name)
}

// NewPterodactyl, NewCrafty, NewDocker return stub Providers for the
// REST-backed variants spec.md §1 marks external; wiring a real HTTP
// client behind these is outside this core's scope.
func NewPterodactyl() Provider { return unimplementedProvider{name: "pterodactyl"} }
func NewCrafty() Provider      { return unimplementedProvider{name: "crafty"} }
func NewDocker() Provider      { return unimplementedProvider{name: "docker"} }
