package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/asynqq/internal/api/shared"
	"github.com/phrazzld/asynqq/internal/engine"
	"github.com/phrazzld/asynqq/internal/task"
)

// TaskEngine is the part of the engine the HTTP surface needs.
type TaskEngine interface {
	Submit(fn task.Func, opts ...engine.SubmitOption) (*engine.Handle, error)
	Lookup(id string) (task.Task, bool)
	Remove(id string) bool
	PendingSize() int
	RunningSize() int
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	engine    TaskEngine
	responder *shared.Responder
	logger    *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(eng TaskEngine, responder *shared.Responder, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		engine:    eng,
		responder: responder,
		logger:    logger.With("component", "task_handler"),
	}
}

// SubmitTask handles POST /v1/tasks. With ?wait=true the response is sent
// once the task is terminal; otherwise 202 Accepted is returned immediately.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.responder.ErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := shared.ValidateRequest(&req); err != nil {
		h.responder.ErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	opts := []engine.SubmitOption{
		engine.WithParams(task.Params{
			"message":  req.Message,
			"delay_ms": req.DelayMS,
		}),
	}
	if req.ID != "" {
		opts = append(opts, engine.WithID(req.ID))
	}

	handle, err := h.engine.Submit(demoTask, opts...)
	if err != nil {
		h.responder.ErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		h.responder.JSON(w, r, http.StatusAccepted, SubmitTaskResponse{
			ID:     handle.ID(),
			Status: handle.Task().Status(),
		})
		return
	}

	if _, err := handle.Await(r.Context()); err != nil && r.Context().Err() != nil {
		// Client went away; the task keeps running
		h.logger.Debug("stopped waiting for task", "task_id", handle.ID(), "error", err)
		return
	}

	h.responder.JSON(w, r, http.StatusOK, taskToResponse(handle.Task().Snapshot()))
}

// GetTask handles GET /v1/tasks/{id} for tasks that are pending or running.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, ok := h.engine.Lookup(id)
	if !ok {
		h.responder.Error(w, r, http.StatusNotFound, "Task not found")
		return
	}

	h.responder.JSON(w, r, http.StatusOK, taskToResponse(t.Snapshot()))
}

// DeleteTask handles DELETE /v1/tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !h.engine.Remove(id) {
		h.responder.Error(w, r, http.StatusNotFound, "Task not found")
		return
	}

	h.logger.Info("task removed", "task_id", id, "trace_id", shared.GetTraceID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// GetStats handles GET /v1/stats
func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.responder.JSON(w, r, http.StatusOK, StatsResponse{
		Pending: h.engine.PendingSize(),
		Running: h.engine.RunningSize(),
	})
}

// demoTask waits delay_ms milliseconds and reports the message together with
// the times it started and ended.
func demoTask(ctx context.Context, params task.Params) (any, error) {
	message, ok := params["message"].(string)
	if !ok {
		return nil, errors.New("message parameter is required")
	}
	delay, _ := params["delay_ms"].(int)

	started := time.Now().UTC()
	timer := time.NewTimer(time.Duration(delay) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ended := time.Now().UTC()
	return fmt.Sprintf("%s (started at %s, ended at %s)",
		message, started.Format(time.RFC3339Nano), ended.Format(time.RFC3339Nano)), nil
}
