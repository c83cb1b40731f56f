package logger

import (
	"go.uber.org/zap"
)

// Logger wraps a zap.Logger for structured logging across the engine.
type Logger struct {
	*zap.Logger
}

// NewLogger creates a new production logger.
func NewLogger() (*Logger, error) {
	config := zap.NewProductionConfig()
	config.DisableStacktrace = true

	zapLogger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{Logger: zapLogger}, nil
}

// NewNopLogger creates a logger that discards all output. Useful for tests.
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With creates a child logger with the given fields attached.
func (l *Logger) With(fields ...zap.Field) *Logger {
	if l.Logger == nil {
		return l
	}

	return &Logger{Logger: l.Logger.With(fields...)}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l.Logger == nil {
		return nil
	}

	return l.Logger.Sync()
}
