// Package logging provides the shared zap logger used across the
// substrate's components, mirroring ALEYI17-InfraSight_gpu's
// pkg/logutil InitLogger/GetLogger pattern.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	logger *zap.Logger
)

// Init configures the process-wide logger. Safe to call more than once;
// only the first call takes effect.
func Init(development bool) {
	once.Do(func() {
		var l *zap.Logger
		var err error
		if development {
			l, err = zap.NewDevelopment()
		} else {
			l, err = zap.NewProduction()
		}
		if err != nil {
			l = zap.NewNop()
		}
		logger = l
	})
}

// L returns the shared logger, initializing a production logger on
// first use if Init was never called.
func L() *zap.Logger {
	Init(false)
	return logger
}

// Named returns a child logger tagged with the given component name.
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Sync flushes the shared logger's buffers. Errors are swallowed: sync
// on stderr commonly fails with ENOTTY under test runners and that is
// not an actionable failure for callers.
func Sync() {
	_ = L().Sync()
}
