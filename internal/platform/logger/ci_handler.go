package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// ciEnvVars maps CI environment variables to the attribute names added to records.
var ciEnvVars = map[string]string{
	"GITHUB_RUN_ID":      "ci_run_id",
	"GITHUB_SHA":         "ci_commit",
	"GITHUB_REF_NAME":    "ci_branch",
	"GITHUB_JOB":         "ci_job",
	"CI_PIPELINE_ID":     "ci_pipeline_id",
	"CI_COMMIT_SHA":      "ci_commit",
	"CI_COMMIT_REF_NAME": "ci_branch",
}

// isInCIEnvironment reports whether the process runs under a CI system.
func isInCIEnvironment() bool {
	return os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" || os.Getenv("GITLAB_CI") != ""
}

// getCIMetadata collects the CI attributes present in the environment.
func getCIMetadata() map[string]string {
	metadata := make(map[string]string)
	for env, key := range ciEnvVars {
		if v := os.Getenv(env); v != "" {
			metadata[key] = v
		}
	}
	return metadata
}

// CIHandler is a custom slog.Handler that adds CI environment metadata
// and source code location to log records.
type CIHandler struct {
	// The underlying handler (usually JSON)
	handler slog.Handler
	// CI metadata to add to every log record
	metadata map[string]string
	// Whether to add source location info
	addSource bool
}

// NewCIHandler creates a new CIHandler that wraps the provided handler,
// adding CI metadata and source information to each log record.
func NewCIHandler(out io.Writer, opts *slog.HandlerOptions) *CIHandler {
	var handlerOpts slog.HandlerOptions
	if opts != nil {
		// Copy the options to avoid modifying the caller's options
		handlerOpts = *opts
	}

	return &CIHandler{
		handler:   slog.NewJSONHandler(out, &handlerOpts),
		metadata:  getCIMetadata(),
		addSource: handlerOpts.AddSource,
	}
}

// Enabled implements the slog.Handler interface.
func (h *CIHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs implements the slog.Handler interface.
func (h *CIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CIHandler{
		handler:   h.handler.WithAttrs(attrs),
		metadata:  h.metadata,
		addSource: h.addSource,
	}
}

// WithGroup implements the slog.Handler interface.
func (h *CIHandler) WithGroup(name string) slog.Handler {
	return &CIHandler{
		handler:   h.handler.WithGroup(name),
		metadata:  h.metadata,
		addSource: h.addSource,
	}
}

// Handle implements the slog.Handler interface.
func (h *CIHandler) Handle(ctx context.Context, record slog.Record) error {
	enhanced := record.Clone()

	if h.addSource && record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		enhanced.AddAttrs(
			slog.String("source_file", frame.File),
			slog.Int("source_line", frame.Line),
			slog.String("source_func", frame.Function),
		)
	}

	for key, value := range h.metadata {
		enhanced.AddAttrs(slog.String(key, value))
	}

	// Sub-second precision helps order records from concurrent tasks
	nanoseconds := enhanced.Time.UnixNano() % int64(time.Second)
	enhanced.AddAttrs(slog.Int64("timestamp_nano", nanoseconds))

	return h.handler.Handle(ctx, enhanced)
}
