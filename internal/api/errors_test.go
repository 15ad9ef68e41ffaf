package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/asynqq/internal/engine"
	"github.com/phrazzld/asynqq/internal/task"
)

func TestMapErrorToStatusCode(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
		message  string
	}{
		{"duplicate id", fmt.Errorf("submit task x: %w", engine.ErrDuplicateID), http.StatusConflict, "Task ID already in use"},
		{"queue full", fmt.Errorf("submit task x: %w", task.ErrQueueFull), http.StatusServiceUnavailable, "Task queue is full"},
		{"engine closed", engine.ErrEngineStopped, http.StatusServiceUnavailable, "Engine is not accepting tasks"},
		{"unknown", errors.New("database exploded"), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MapErrorToStatusCode(tc.err))
			assert.Equal(t, tc.message, GetSafeErrorMessage(tc.err))
		})
	}

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}

func TestSanitizeValidationError(t *testing.T) {
	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("nope")))
	assert.Equal(t, "validation failed", getValidationTagMessage("email"))
}
