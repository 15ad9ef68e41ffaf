package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/asynqq/internal/engine"
	"github.com/phrazzld/asynqq/internal/task"
)

// MapErrorToStatusCode maps engine errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, engine.ErrDuplicateID):
		return http.StatusConflict

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, engine.ErrEngineStopped):
		return http.StatusServiceUnavailable

	case errors.Is(err, engine.ErrNilFunc):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, engine.ErrDuplicateID):
		return "Task ID already in use"
	case errors.Is(err, task.ErrQueueFull):
		return "Task queue is full"
	case errors.Is(err, engine.ErrEngineStopped):
		return "Engine is not accepting tasks"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validator error into a short message
// naming the first offending field.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fieldErr := validationErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fieldErr.Field(), getValidationTagMessage(fieldErr.Tag()))
	}

	// Fall back to a generic validation error message
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte":
		return "too small"
	case "max", "lte":
		return "too large"
	case "printascii":
		return "must be printable ASCII"
	default:
		return "validation failed"
	}
}
