package task

import (
	"errors"
	"fmt"
)

// Common errors returned by the task package
var (
	ErrQueueClosed  = errors.New("task queue is closed")
	ErrQueueFull    = errors.New("task queue is full")
	ErrInvalidState = errors.New("invalid task state transition")
	ErrTaskStopped  = errors.New("task stopped")
	ErrDispatch     = errors.New("task dispatch failed")
)

// ExecutionError is returned when the wrapped task function fails.
type ExecutionError struct {
	TaskID string
	Err    error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %s: %v", e.TaskID, e.Err)
}

// Unwrap returns the error raised by the task function
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking task function.
type PanicError struct {
	Value any
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
