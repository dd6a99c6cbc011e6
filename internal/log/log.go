package log

import "sync"

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// SetDefaultLogger sets the default global logger that will be used if calling logging functions directly exported by this package
func SetDefaultLogger(logger *Logger) {
	mu.Lock()
	defaultLogger = logger
	mu.Unlock()
}

// DefaultLogger returns the current default logger
func DefaultLogger() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Session returns a Scoped logger that tags every record with the playback session id.
func Session(id string) *Scoped {
	return &Scoped{args: []any{"session_id", id}}
}

// Scoped carries fixed attributes and resolves the default logger lazily, so it is safe to create before logging is
// initialised (as tests do).
type Scoped struct {
	args []any
}

func (s *Scoped) with(args []any) []any {
	return append(append([]any{}, s.args...), args...)
}

func (s *Scoped) Trace(msg string, args ...any) { Trace(msg, s.with(args)...) }
func (s *Scoped) Debug(msg string, args ...any) { Debug(msg, s.with(args)...) }
func (s *Scoped) Info(msg string, args ...any)  { Info(msg, s.with(args)...) }
func (s *Scoped) Warn(msg string, args ...any)  { Warn(msg, s.with(args)...) }
func (s *Scoped) Error(msg string, args ...any) { Error(msg, s.with(args)...) }

// Debug logs at debug Level using the default logger.
// See (*Logger).Debug for more information.
func Debug(msg string, args ...any) {
	if logger := DefaultLogger(); logger != nil {
		logger.Debug(msg, args...)
	}
}

// Info logs at info Level using the default logger.
// See (*Logger).Info for more information.
func Info(msg string, args ...any) {
	if logger := DefaultLogger(); logger != nil {
		logger.Info(msg, args...)
	}
}

// Warn logs at warn Level using the default logger.
// See (*Logger).Warn for more information.
func Warn(msg string, args ...any) {
	if logger := DefaultLogger(); logger != nil {
		logger.Warn(msg, args...)
	}
}

// Error logs at error Level using the default logger.
// See (*Logger).Error for more information.
func Error(msg string, args ...any) {
	if logger := DefaultLogger(); logger != nil {
		logger.Error(msg, args...)
	}
}

// Trace logs at debug level, but only if trace logging is enabled.
// This is a 'fake' trace level.
func Trace(msg string, args ...any) {
	if logger := DefaultLogger(); logger != nil {
		logger.Trace(msg, args...)
	}
}
