// Package logging provides structured logging configuration using log/slog.
//
// The package integrates with chi's RequestID middleware so request IDs
// travel through structured log entries, and can mirror every entry to a
// JSON log file alongside the console output.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	slogmulti "github.com/samber/slog-multi"
)

// Setup configures the global slog logger.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// When file is non-empty every entry is also written to it as JSON.
// The returned function closes the file and is safe to call when no file was opened.
func Setup(level, format, file string) func() error {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	console := newHandler(os.Stdout, format, opts)

	if file == "" {
		slog.SetDefault(slog.New(console))
		return func() error { return nil }
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.SetDefault(slog.New(console))
		slog.Error("failed to open log file, using stdout only", "error", err, "file", file)
		return func() error { return nil }
	}

	slog.SetDefault(New(os.Stdout, f, format, level))
	return f.Close
}

// New builds a logger writing to console in the given format and, when
// mirror is non-nil, JSON to mirror as well.
func New(console, mirror io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	h := newHandler(console, format, opts)
	if mirror == nil {
		return slog.New(h)
	}
	return slog.New(slogmulti.Fanout(h, slog.NewJSONHandler(mirror, opts)))
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
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

// FromContext returns the default logger enriched with the chi request ID
// when ctx carries one.
//
//	func handleUpload(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("upload received", "kind", kind)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}

	return logger
}

// WithFields returns a request-scoped logger with additional structured fields.
//
//	log := logging.WithFields(ctx, "upload_id", job.ID, "kind", job.Kind)
//	log.Info("import started")
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
