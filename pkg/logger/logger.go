// Package logger bridges slog into printf-style loggers expected by third-party libraries.
package logger

import (
	"log"
	"log/slog"
)

// New returns a *log.Logger whose lines are emitted by base at info level, tagged with component.
func New(base *slog.Logger, component string) *log.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), slog.LevelInfo)
}
