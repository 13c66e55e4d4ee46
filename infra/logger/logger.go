package logger

import corelogger "github.com/kilianp07/microgrid-dispatch/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards every message.
type NopLogger = corelogger.Nop

// New returns a Logger tagged with the given component. The output format
// follows the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}
