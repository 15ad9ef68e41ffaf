package api

import (
	"time"

	"github.com/phrazzld/asynqq/internal/task"
)

// SubmitTaskRequest is the request body for POST /v1/tasks.
type SubmitTaskRequest struct {
	ID      string `json:"id,omitempty" validate:"omitempty,max=64,printascii"`
	Message string `json:"message" validate:"required,max=1024"`
	DelayMS int    `json:"delay_ms" validate:"gte=0,lte=60000"`
}

// SubmitTaskResponse is returned for an accepted submission.
type SubmitTaskResponse struct {
	ID     string      `json:"id"`
	Status task.Status `json:"status"`
}

// TaskResponse describes a task's state.
type TaskResponse struct {
	ID         string         `json:"id"`
	Status     task.Status    `json:"status"`
	Params     map[string]any `json:"params,omitempty"`
	Result     any            `json:"result,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// StatsResponse is the JSON response for GET /v1/stats.
type StatsResponse struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func taskToResponse(s task.Snapshot) TaskResponse {
	return TaskResponse{
		ID:         s.ID,
		Status:     s.Status,
		Params:     s.Params,
		Result:     s.Result,
		Errors:     s.Errors,
		CreatedAt:  s.CreatedAt,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}
