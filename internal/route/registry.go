package route

import (
	"strings"

	"go.uber.org/atomic"
)

// wildcardEntry is one "*.domain" pattern registered against a ConfigID,
// kept in registration order so that same-length ties resolve
// deterministically (spec.md §4.C: "Ties at the same length in wildcard
// space are resolved by stable insertion order").
type wildcardEntry struct {
	suffix   string // "example.com" for pattern "*.example.com"
	configID string
	order    int
}

// snapshot is one immutable view of the registry, swapped wholesale on
// update so readers never block (spec.md §5: "copy-on-write map behind an
// atomic pointer").
type snapshot struct {
	byConfigID map[string]ServerConfig
	literal    map[string]string // lower-case literal host -> config_id
	wildcards  []wildcardEntry
}

// Registry is the mapping from config_id to ServerConfig, plus the
// literal/wildcard host indices used by the Resolver.
type Registry struct {
	cur atomic.Pointer[snapshot]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.cur.Store(&snapshot{
		byConfigID: map[string]ServerConfig{},
		literal:    map[string]string{},
	})
	return r
}

// Replace atomically installs configs as the new registry contents,
// wholesale. Config updates are observed at the next Resolve/accept only;
// in-flight sessions keep the ServerConfig they already captured.
func (r *Registry) Replace(configs []ServerConfig) error {
	next := &snapshot{
		byConfigID: make(map[string]ServerConfig, len(configs)),
		literal:    make(map[string]string, len(configs)),
	}
	order := 0
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return err
		}
		next.byConfigID[c.ConfigID] = c
		for _, pattern := range c.HostPatterns {
			pattern = strings.ToLower(pattern)
			if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
				next.wildcards = append(next.wildcards, wildcardEntry{
					suffix:   suffix,
					configID: c.ConfigID,
					order:    order,
				})
				order++
				continue
			}
			next.literal[pattern] = c.ConfigID
		}
	}
	r.cur.Store(next)
	return nil
}

// Get returns the ServerConfig for a config_id, if still present.
func (r *Registry) Get(configID string) (ServerConfig, bool) {
	s := r.cur.Load()
	c, ok := s.byConfigID[configID]
	return c, ok
}

// All returns every currently registered ServerConfig, for introspection
// (list_routes).
func (r *Registry) All() []ServerConfig {
	s := r.cur.Load()
	out := make([]ServerConfig, 0, len(s.byConfigID))
	for _, c := range s.byConfigID {
		out = append(out, c)
	}
	return out
}

// Resolve matches host (as produced by wire.Handshake.HostForRouting,
// already lower-cased and null-truncated) against the registry: exact
// literal match first, then the longest matching wildcard suffix, else
// ErrNoRoute.
func (r *Registry) Resolve(host string) (ServerConfig, error) {
	s := r.cur.Load()

	if id, ok := s.literal[host]; ok {
		return s.byConfigID[id], nil
	}

	best := wildcardEntry{}
	found := false
	for _, w := range s.wildcards {
		// "*.domain" matches subdomains of domain, but not domain itself.
		if !strings.HasSuffix(host, "."+w.suffix) {
			continue
		}
		if !found {
			best, found = w, true
			continue
		}
		if len(w.suffix) > len(best.suffix) {
			best = w
		} else if len(w.suffix) == len(best.suffix) && w.order < best.order {
			best = w
		}
	}
	if !found {
		return ServerConfig{}, ErrNoRoute
	}
	return s.byConfigID[best.configID], nil
}
