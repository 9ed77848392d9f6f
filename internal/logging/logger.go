package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with gallery-specific helpers so that every
// component logs with the same field names.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to w. format is "json" or "text".
func New(w io.Writer, level, format string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a Logger with extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// LogExtraction logs a single image's feature extraction.
func (l *Logger) LogExtraction(ctx context.Context, filename string, err error) {
	if err != nil {
		l.WarnContext(ctx, "feature extraction failed, skipping image",
			"filename", filename,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "features extracted", "filename", filename)
}

// LogRegenerate logs the outcome of a feature regeneration run.
func (l *Logger) LogRegenerate(ctx context.Context, total, written int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "feature regeneration failed",
			"total", total,
			"written", written,
			"error", err,
		)
	case written < total:
		l.WarnContext(ctx, "feature regeneration completed with failures",
			"total", total,
			"failed", total-written,
			"written", written,
		)
	default:
		l.InfoContext(ctx, "feature regeneration completed", "written", written)
	}
}

// LogSearch logs a similarity search.
func (l *Logger) LogSearch(ctx context.Context, k, stored int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"k", k,
		"stored", stored,
	)
}

// LogDelete logs an image deletion.
func (l *Logger) LogDelete(ctx context.Context, filename string, err error) {
	if err != nil {
		l.WarnContext(ctx, "delete rejected",
			"filename", filename,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "image deleted", "filename", filename)
}
