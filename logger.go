package fusion

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with fusion-specific field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler writing to stderr at info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithFormat adds a format field.
func (l *Logger) WithFormat(format string) *Logger {
	return &Logger{Logger: l.Logger.With("format", format)}
}

// WithK adds a k (result count) field.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{Logger: l.Logger.With("k", k)}
}

// WithCount adds a count field.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{Logger: l.Logger.With("count", count)}
}

// LogLoad logs the outcome of reading an embeddings file.
func (l *Logger) LogLoad(ctx context.Context, name, format string, words, dims int, mapped bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"name", name,
			"format", format,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "embeddings loaded",
		"name", name,
		"format", format,
		"words", words,
		"dims", dims,
		"mmap", mapped,
	)
}

// LogSave logs the outcome of writing an embeddings file.
func (l *Logger) LogSave(ctx context.Context, name, format string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"name", name,
			"format", format,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "embeddings saved",
		"name", name,
		"format", format,
	)
}

// LogSearch logs a similarity query.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"k", k,
		"results", resultsFound,
	)
}

// LogQuantize logs a quantization run.
func (l *Logger) LogQuantize(ctx context.Context, subspaces, codebookSize int, bound float32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "quantization failed",
			"subspaces", subspaces,
			"codebook_size", codebookSize,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "quantization completed",
		"subspaces", subspaces,
		"codebook_size", codebookSize,
		"reconstruction_bound", bound,
	)
}

// LogEvaluate logs an analogy evaluation.
func (l *Logger) LogEvaluate(ctx context.Context, total, correct, skipped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "evaluation failed", "error", err)
		return
	}
	l.InfoContext(ctx, "evaluation completed",
		"total", total,
		"correct", correct,
		"skipped", skipped,
	)
}
