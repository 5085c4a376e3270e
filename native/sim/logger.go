package sim

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var defaultLogger atomic.Pointer[zap.Logger]

// Logger returns the logger simulated clusters use when created without
// WithLogger. It discards everything until SetLogger is called.
func Logger() *zap.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger replaces the default logger. Clusters already created keep the
// logger they started with. A nil logger restores the no-op default.
func SetLogger(l *zap.Logger) {
	defaultLogger.Store(l)
}
