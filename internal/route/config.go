// Package route resolves an advertised handshake hostname to a configured
// backend route, and holds the copy-on-write registry of such routes.
package route

import "time"

// Mode is one of the four login-phase proxy strategies.
type Mode string

const (
	ModePassthrough Mode = "passthrough"
	ModeOffline     Mode = "offline"
	ModeClientOnly  Mode = "client_only"
	ModeServerOnly  Mode = "server_only"
	// ModeFull is accepted by the type system so config validation can
	// reject it with a clear message; no session ever runs in this mode.
	ModeFull Mode = "full"
)

// Endpoint is one backend transport endpoint a route may dial.
type Endpoint struct {
	Address string // host:port
}

// ServerManagerBinding ties a route to a Server Manager capability.
type ServerManagerBinding struct {
	Provider            string
	ExternalID          string
	EmptyShutdownSeconds int
}

// ProxyProtocolOut configures the outbound PROXY-protocol header a route
// may prepend to its backend connections.
type ProxyProtocolOut struct {
	Enabled bool
	Version int // 1 or 2
}

// FilterOverride lets a route narrow or widen the global filter chain.
type FilterOverride struct {
	AllowedIPs []string
	DeniedIPs  []string
	RequestsPerMinute int
	BurstSize         int
	MaxConcurrentSessions int
}

// StatusCacheOverride lets a route narrow or widen the global status
// cache parameters.
type StatusCacheOverride struct {
	TTL        time.Duration
	MaxEntries int
}

// ServerConfig is one routable backend, keyed by a stable ConfigID.
type ServerConfig struct {
	ConfigID    string
	HostPatterns []string // literal or "*.domain" suffix wildcard
	Backends    []Endpoint
	Mode        Mode

	ProxyProtocolOut ProxyProtocolOut

	MOTDTemplates map[string]MOTDTemplate // keyed by BackendState string

	Filter       *FilterOverride
	StatusCache  *StatusCacheOverride
	ServerManager *ServerManagerBinding
}

// MOTDTemplate mirrors internal/motd.Template field-for-field;
// internal/proxy's convertTemplates builds a motd.Template from it.
type MOTDTemplate struct {
	VersionName     string
	ProtocolVersion int
	MaxPlayers      int
	OnlinePlayers   int
	Text            string // supports ${seconds_remaining}
	Favicon         string // base64 data URI, or filesystem path
	Sample          []string
}

// Validate enforces the invariants config validation must reject before a
// ServerConfig ever reaches the registry, per spec.md §4.I: Full mode is
// architecturally impossible and must never be accepted.
func (c ServerConfig) Validate() error {
	if c.Mode == ModeFull {
		return ErrFullModeUnsupported
	}
	if c.ConfigID == "" {
		return ErrMissingConfigID
	}
	if len(c.HostPatterns) == 0 {
		return ErrNoHostPatterns
	}
	if len(c.Backends) == 0 {
		return ErrNoBackends
	}
	return nil
}
