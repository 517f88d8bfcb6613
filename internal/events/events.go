// Package events defines the lifecycle events this proxy core fires, so
// that external collaborators (CLI, telemetry) can subscribe without the
// core depending on them, per SPEC_FULL.md §4.O. Built directly on
// github.com/robinbraemer/event, the same event bus the teacher
// (go.minekube.com/gate) fires its ConnectionHandshakeEvent through.
package events

import (
	"net"

	"github.com/robinbraemer/event"

	"github.com/Shadowner/Infrarust/internal/wire"
)

// Manager is the process-wide event bus singleton.
type Manager = event.Manager

// New constructs a fresh event bus.
func New() Manager {
	return event.New()
}

// HandshakeEvent fires once a connection's handshake has been peeked,
// before routing.
type HandshakeEvent struct {
	RemoteAddr net.Addr
	Handshake  wire.Handshake
}

// RouteResolvedEvent fires once the Route Resolver has matched (or
// missed) a route for a handshake.
type RouteResolvedEvent struct {
	RemoteAddr net.Addr
	Host       string
	ConfigID   string // empty on a miss
	Matched    bool
}

// LoginStartEvent fires once a login-start packet has been parsed
// (Offline/ClientOnly modes only).
type LoginStartEvent struct {
	SessionID string
	Username  string
	UUID      string
}

// SessionEndedEvent fires once a session's Supervisor reaches Done or
// Failed.
type SessionEndedEvent struct {
	SessionID    string
	ConfigID     string
	BytesIn      int64
	BytesOut     int64
	FailureCause string // empty on a clean end
}
