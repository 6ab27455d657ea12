package sampleidx

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with sample index context.
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
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithStudy adds a study field to the logger.
func (l *Logger) WithStudy(study string) *Logger {
	return &Logger{
		Logger: l.Logger.With("study", study),
	}
}

// WithSample adds a sample field to the logger.
func (l *Logger) WithSample(sample string) *Logger {
	return &Logger{
		Logger: l.Logger.With("sample", sample),
	}
}

// WithChromosome adds a chromosome field to the logger.
func (l *Logger) WithChromosome(chromosome string) *Logger {
	return &Logger{
		Logger: l.Logger.With("chromosome", chromosome),
	}
}

// LogQuery logs a finished query iteration.
func (l *Logger) LogQuery(ctx context.Context, samples, results int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"samples", samples,
			"results", results,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"samples", samples,
			"results", results,
			"duration", duration,
		)
	}
}

// LogCount logs a count operation.
func (l *Logger) LogCount(ctx context.Context, samples, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "count failed",
			"samples", samples,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "count completed",
			"samples", samples,
			"count", count,
		)
	}
}

// LogWrite logs a write of sample index rows.
func (l *Logger) LogWrite(ctx context.Context, builders, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"builders", builders,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "write completed",
			"builders", builders,
			"rows", rows,
		)
	}
}
