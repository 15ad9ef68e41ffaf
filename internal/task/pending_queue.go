package task

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// PendingQueue is a FIFO of tasks that have not started yet. All operations
// are serialized by a single mutex; Dequeue blocks until a task is available.
type PendingQueue struct {
	mu       sync.Mutex
	tasks    []Task
	capacity int
	closed   bool
	// ready wakes a consumer blocked in Dequeue
	ready  chan struct{}
	logger *slog.Logger
}

// NewPendingQueue creates a new pending queue. A capacity of zero or less
// means the queue is unbounded.
func NewPendingQueue(capacity int, logger *slog.Logger) *PendingQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &PendingQueue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		logger:   logger.With("component", "pending_queue"),
	}
}

// Enqueue appends a task to the queue.
// Returns an error if the queue is full or closed
func (q *PendingQueue) Enqueue(t Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.capacity > 0 && len(q.tasks) >= q.capacity {
		q.mu.Unlock()
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, q.capacity)
	}
	q.tasks = append(q.tasks, t)
	size := len(q.tasks)
	q.mu.Unlock()

	q.signal()
	q.logger.Debug("task enqueued",
		"task_id", t.ID(),
		"queue_len", size,
		"queue_cap", q.capacity)
	return nil
}

// Dequeue removes and returns the first task, blocking until one is available
// or ctx is done. It returns ErrQueueClosed once the queue is closed and empty.
func (q *PendingQueue) Dequeue(ctx context.Context) (Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			t := q.tasks[0]
			q.tasks[0] = nil
			q.tasks = q.tasks[1:]
			remaining := len(q.tasks)
			q.mu.Unlock()

			if remaining > 0 {
				q.signal()
			}
			return t, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Contains reports whether a task with the given id is queued.
func (q *PendingQueue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOf(id) >= 0
}

// Get returns the queued task with the given id.
func (q *PendingQueue) Get(id string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := q.indexOf(id); i >= 0 {
		return q.tasks[i], true
	}
	return nil, false
}

// RemoveByID removes the first queued task with the given id and returns it.
func (q *PendingQueue) RemoveByID(id string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.indexOf(id)
	if i < 0 {
		return nil, false
	}
	t := q.tasks[i]
	q.tasks = slices.Delete(q.tasks, i, i+1)
	q.logger.Debug("task removed from queue", "task_id", id, "queue_len", len(q.tasks))
	return t, true
}

// Len returns the number of queued tasks.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain removes and returns every queued task.
func (q *PendingQueue) Drain() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.tasks
	q.tasks = nil
	return drained
}

// Close prevents further enqueues and wakes a blocked consumer.
// Tasks already queued can still be dequeued.
func (q *PendingQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.signal()
	q.logger.Info("pending queue closed")
}

// signal wakes a blocked consumer without blocking the caller.
func (q *PendingQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// indexOf must be called with q.mu held.
func (q *PendingQueue) indexOf(id string) int {
	return slices.IndexFunc(q.tasks, func(t Task) bool {
		return t.ID() == id
	})
}
