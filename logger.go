package vecann

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with vecann-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// slogger returns the underlying logger, or nil for a nil Logger.
func (l *Logger) slogger() *slog.Logger {
	if l == nil {
		return nil
	}
	return l.Logger
}

// WithIndex adds the index id and kind fields to the logger.
func (l *Logger) WithIndex(idx Index) *Logger {
	return &Logger{
		Logger: l.Logger.With("index_id", idx.ID(), "kind", idx.Kind()),
	}
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogBuild logs an index build.
func (l *Logger) LogBuild(ctx context.Context, kind Kind, n, dimension int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"kind", kind,
			"n", n,
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"kind", kind,
			"n", n,
			"dimension", dimension,
			"elapsed", elapsed,
		)
	}
}

// LogSearch logs a batch search.
func (l *Logger) LogSearch(ctx context.Context, k, queries int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"queries", queries,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"queries", queries,
			"elapsed", elapsed,
		)
	}
}
