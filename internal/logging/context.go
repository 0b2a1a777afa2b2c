package logging

import "context"

type loggerKey struct{}

// WithContext stores logger in ctx for downstream handlers
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a discarding logger.
// It never returns nil.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok && logger != nil {
			return logger
		}
	}
	return Discard()
}
