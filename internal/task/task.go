package task

import (
	"context"
	"time"

	"github.com/phrazzld/asynqq/internal/events"
)

// Status represents the current state of a task
type Status string

// Possible task status values
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
		StatusStopped: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusStopped:   true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to Status) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Params is the parameter payload a task is submitted with. It is passed to
// the task function and echoed on every event.
type Params map[string]any

// Func is the unit of work wrapped by a task. The context is cancelled when the
// task is stopped; honouring it is up to the function.
type Func func(ctx context.Context, params Params) (any, error)

// Snapshot is a point-in-time copy of a task's observable state.
type Snapshot struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	Params     Params     `json:"params,omitempty"`
	Result     any        `json:"result,omitempty"`
	Errors     []string   `json:"errors,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Task represents a unit of work with identity, state and an eventual result.
// Two tasks are the same task when their IDs are equal.
type Task interface {
	// ID returns the task's unique identifier
	ID() string

	// CreatedAt returns the UTC creation time
	CreatedAt() time.Time

	// Params returns the task's parameter payload
	Params() Params

	// Status returns the current task status
	Status() Status

	// Start moves a pending task to running and executes it asynchronously.
	// It returns ErrInvalidState if the task is not pending.
	Start() error

	// Stop cancels a pending or running task. It reports whether the call
	// caused the transition; stopping a terminal task is a no-op.
	Stop() bool

	// Fail records err and moves a non-terminal task to failed. It reports
	// whether the call caused the transition.
	Fail(err error) bool

	// IsRunning reports whether the task is currently running
	IsRunning() bool

	// IsCompleted reports whether the task reached any terminal state
	IsCompleted() bool

	// Result returns the value produced by the task function, if any
	Result() any

	// Errors returns the recorded error descriptions in order
	Errors() []string

	// Done returns a channel that is closed when the task reaches a terminal state
	Done() <-chan struct{}

	// Await blocks until the task is terminal or ctx is done, then returns the
	// result, the captured failure, or ErrTaskStopped.
	Await(ctx context.Context) (any, error)

	// Snapshot returns a copy of the task's observable state
	Snapshot() Snapshot

	// Attach subscribes an observer to the task's events
	Attach(o events.Observer)

	// Detach unsubscribes an observer
	Detach(o events.Observer)

	// DetachAll unsubscribes every observer
	DetachAll()
}

// Factory builds a Task. It lets callers pick the implementation at construction time.
type Factory func(id string, fn Func, params Params, opts ...Option) Task
