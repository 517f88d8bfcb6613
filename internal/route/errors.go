package route

import "errors"

var (
	// ErrFullModeUnsupported is returned by ServerConfig.Validate for any
	// route configured with mode "full": the shared secret is encrypted
	// with the backend's public key by the client, which the proxy has no
	// way to decrypt. This is permanent, not a TODO (spec.md §4.I, §9).
	ErrFullModeUnsupported = errors.New("route: full mode is architecturally unsupported")
	ErrMissingConfigID     = errors.New("route: config_id is required")
	ErrNoHostPatterns      = errors.New("route: at least one host pattern is required")
	ErrNoBackends          = errors.New("route: at least one backend endpoint is required")
)

// ErrNoRoute is the "not found" sentinel the Resolver returns on a miss.
var ErrNoRoute = errors.New("route: no matching route")
