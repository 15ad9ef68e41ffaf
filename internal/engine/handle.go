package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/asynqq/internal/task"
)

// Handle is returned by Submit and gives access to a submitted task.
type Handle struct {
	task task.Task
}

// ID returns the task id.
func (h *Handle) ID() string {
	return h.task.ID()
}

// Task returns the underlying task.
func (h *Handle) Task() task.Task {
	return h.task
}

// Await blocks until the task is terminal or ctx is done. It returns the
// task's result, the error its function returned (as *task.ExecutionError),
// a task.ErrDispatch error, or task.ErrTaskStopped.
func (h *Handle) Await(ctx context.Context) (any, error) {
	return h.task.Await(ctx)
}

// AwaitAll waits for every handle and returns the results in handle order.
// The first failure cancels the remaining waits and is returned.
func AwaitAll(ctx context.Context, handles ...*Handle) ([]any, error) {
	results := make([]any, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		g.Go(func() error {
			result, err := h.Await(gctx)
			if err != nil {
				return fmt.Errorf("task %s: %w", h.ID(), err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
