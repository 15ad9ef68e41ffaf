package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"-"` // Not serialized to JSON, used for logging
	TraceID string `json:"trace_id,omitempty"`
}

// Responder writes JSON responses and logs failures with its logger.
type Responder struct {
	logger *slog.Logger
}

// NewResponder creates a Responder that logs to logger.
func NewResponder(logger *slog.Logger) *Responder {
	return &Responder{logger: logger}
}

// JSON writes a JSON response with the given status code and data.
func (rs *Responder) JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rs.logger.Error("failed to encode JSON response", "error", err, "path", r.URL.Path)
	}
}

// Error writes a JSON error response with the given status code and message.
// It also sets the TraceID from the request context if available.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	rs.ErrorAndLog(w, r, status, message, nil)
}

// ErrorAndLog writes a JSON error response and logs the detailed error.
// Only userMessage is sent to the client.
//
// 5xx responses are logged at ERROR level, 503 at WARN, everything else at DEBUG.
func (rs *Responder) ErrorAndLog(w http.ResponseWriter, r *http.Request, status int, userMessage string, err error) {
	traceID := GetTraceID(r.Context())

	logAttrs := []slog.Attr{
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("user_message", userMessage),
	}
	if err != nil {
		logAttrs = append(logAttrs,
			slog.String("error", err.Error()),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}

	logLevel := slog.LevelDebug
	switch {
	case status == http.StatusServiceUnavailable:
		logLevel = slog.LevelWarn
	case status >= http.StatusInternalServerError:
		logLevel = slog.LevelError
	}
	rs.logger.LogAttrs(r.Context(), logLevel, "API error response", logAttrs...)

	rs.JSON(w, r, status, ErrorResponse{
		Error:   userMessage,
		Code:    status,
		TraceID: traceID,
	})
}
