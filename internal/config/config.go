// Package config defines the proxy's top-level options and the Provider
// contract the core consumes. Parsing a file into these types and
// watching it for hot-reload are explicit Non-goals (spec.md §1); this
// package only carries the shapes and a minimal in-memory Provider to
// make the core wireable and testable on its own.
package config

import (
	"time"

	"github.com/Shadowner/Infrarust/internal/route"
)

// StatusCacheOptions are the global defaults for internal/statuscache,
// overridable per-route.
type StatusCacheOptions struct {
	TTLSeconds int `yaml:"ttl_seconds"`
	MaxEntries int `yaml:"max_entries"`
}

func (o StatusCacheOptions) TTL() time.Duration {
	if o.TTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(o.TTLSeconds) * time.Second
}

// RateLimiterOptions are the global defaults for internal/filter,
// overridable per-route.
type RateLimiterOptions struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size"`
}

// ProxyProtocolOptions configures inbound PROXY-protocol acceptance.
type ProxyProtocolOptions struct {
	ReceiveEnabled     bool     `yaml:"receive_enabled"`
	ReceiveTimeoutSecs int      `yaml:"receive_timeout_secs"`
	AllowedVersions    []int    `yaml:"allowed_versions"`
}

func (o ProxyProtocolOptions) ReceiveTimeout() time.Duration {
	if o.ReceiveTimeoutSecs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(o.ReceiveTimeoutSecs) * time.Second
}

// DefaultMOTDs names the fallback MOTD keys the proxy synthesizes when no
// route-specific template applies.
type DefaultMOTDs struct {
	Unreachable  string `yaml:"unreachable"`
	Starting     string `yaml:"starting"`
	Offline      string `yaml:"offline"`
	ShuttingDown string `yaml:"shutting_down"`
	Crashed      string `yaml:"crashed"`
	Stopping     string `yaml:"stopping"`
	UnableStatus string `yaml:"unable_status"`
}

// ProxyConfig is the recognized top-level proxy option set, per
// spec.md §6.
type ProxyConfig struct {
	ListenAddress         string               `yaml:"listen_address"`
	InitialReadDeadlineMS int                  `yaml:"initial_read_deadline"`
	StatusCache           StatusCacheOptions   `yaml:"status_cache"`
	RateLimiter           RateLimiterOptions   `yaml:"rate_limiter"`
	ProxyProtocol         ProxyProtocolOptions `yaml:"proxy_protocol"`
	DefaultMOTDs          DefaultMOTDs         `yaml:"default_motds"`
	DrainGraceSeconds     int                  `yaml:"drain_grace_seconds"`

	MaxFrameBytes        int `yaml:"max_frame_bytes"`
	ForwarderBufferBytes int `yaml:"forwarder_buffer_bytes"`
}

func (c ProxyConfig) InitialReadDeadline() time.Duration {
	if c.InitialReadDeadlineMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.InitialReadDeadlineMS) * time.Millisecond
}

func (c ProxyConfig) DrainGrace() time.Duration {
	if c.DrainGraceSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.DrainGraceSeconds) * time.Second
}

// Registry bundles the proxy-wide options with the routable
// ServerConfigs, the unit the Provider hands the core on each update.
type Registry struct {
	Proxy   ProxyConfig
	Servers []route.ServerConfig
}

// Provider is the contract the core consumes from an external
// configuration system: a current snapshot, and a channel of subsequent
// snapshots. Config updates are observed at the next accept only
// (spec.md §5); in-flight sessions keep whatever ServerConfig they
// already captured.
type Provider interface {
	Current() Registry
	Watch(done <-chan struct{}) <-chan Registry
}

// StaticProvider is a Provider over one fixed Registry, with no watch
// events — the simplest Provider and the one used by tests and by
// cmd/lodestoned when no external hot-reload system is wired in.
type StaticProvider struct {
	registry Registry
}

// NewStaticProvider returns a Provider over a fixed Registry.
func NewStaticProvider(r Registry) *StaticProvider {
	return &StaticProvider{registry: r}
}

func (p *StaticProvider) Current() Registry { return p.registry }

func (p *StaticProvider) Watch(done <-chan struct{}) <-chan Registry {
	ch := make(chan Registry)
	go func() {
		<-done
		close(ch)
	}()
	return ch
}
