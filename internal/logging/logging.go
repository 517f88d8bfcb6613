// Package logging constructs the process-wide logr.Logger root, backed by
// zap, that every other package derives per-session/per-route loggers
// from (spec.md §9: "the RSA key, the rate-limiter window, the status
// cache... are process-wide singletons; initialize them once during
// startup and pass read-only handles down" — the logger root is the same
// kind of singleton).
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the root logger.
type Options struct {
	Development bool
	Verbosity   int // V(n) enabled up to this level
}

// New builds the root logr.Logger. In development mode it uses zap's
// human-readable console encoder; otherwise JSON, suited to log
// aggregation.
func New(opts Options) (logr.Logger, func(), error) {
	var zapCfg zap.Config
	if opts.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	if opts.Verbosity > 0 {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-opts.Verbosity))
	}

	zl, err := zapCfg.Build()
	if err != nil {
		return logr.Discard(), func() {}, err
	}

	log := zapr.NewLogger(zl)
	return log, func() { _ = zl.Sync() }, nil
}
