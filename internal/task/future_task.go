package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/phrazzld/asynqq/internal/events"
)

// Option configures a FutureTask
type Option func(*FutureTask)

// WithLogger sets the logger used by the task
func WithLogger(logger *slog.Logger) Option {
	return func(t *FutureTask) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// FutureTask is the goroutine-backed Task implementation. Start runs the task
// function on a fresh goroutine and the done channel is closed once the single
// terminal event has been delivered.
//
// Events are delivered in transition order: a transition appends its event to
// an outbox under the task mutex, and whichever goroutine is not already
// flushing drains it. Observers may therefore call Stop on the emitting task
// from HandleEvent; they must not call Await on it.
type FutureTask struct {
	id        string
	createdAt time.Time
	params    Params
	fn        Func
	logger    *slog.Logger
	subject   events.Subject

	mu         sync.Mutex
	status     Status
	result     any
	errs       []string
	failure    error
	startedAt  *time.Time
	finishedAt *time.Time
	cancel     context.CancelFunc
	outbox     []events.Event
	flushing   bool

	done chan struct{}
}

// NewFutureTask creates a pending task that will run fn with params.
func NewFutureTask(id string, fn Func, params Params, opts ...Option) Task {
	t := &FutureTask{
		id:        id,
		createdAt: time.Now().UTC(),
		params:    maps.Clone(params),
		fn:        fn,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		status:    StatusPending,
		done:      make(chan struct{}),
	}
	if t.params == nil {
		t.params = Params{}
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("task_id", id)
	t.subject.SetLogger(t.logger)
	return t
}

var _ Factory = NewFutureTask

// ID returns the task's unique identifier
func (t *FutureTask) ID() string {
	return t.id
}

// CreatedAt returns the UTC creation time
func (t *FutureTask) CreatedAt() time.Time {
	return t.createdAt
}

// Params returns a copy of the task's parameter payload
func (t *FutureTask) Params() Params {
	return maps.Clone(t.params)
}

// String implements fmt.Stringer
func (t *FutureTask) String() string {
	return fmt.Sprintf("id=%s created_at=%s", t.id, t.createdAt.Format(time.RFC3339Nano))
}

// Status returns the current task status
func (t *FutureTask) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// IsRunning reports whether the task is currently running
func (t *FutureTask) IsRunning() bool {
	return t.Status() == StatusRunning
}

// IsCompleted reports whether the task reached any terminal state
func (t *FutureTask) IsCompleted() bool {
	return t.Status().IsTerminal()
}

// Result returns the value produced by the task function, if any
func (t *FutureTask) Result() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Errors returns the recorded error descriptions in order
func (t *FutureTask) Errors() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.errs)
}

// Done returns a channel that is closed when the task reaches a terminal state
// and its terminal event has been delivered.
func (t *FutureTask) Done() <-chan struct{} {
	return t.done
}

// Attach subscribes an observer to the task's events
func (t *FutureTask) Attach(o events.Observer) {
	t.subject.Attach(o)
}

// Detach unsubscribes an observer
func (t *FutureTask) Detach(o events.Observer) {
	t.subject.Detach(o)
}

// DetachAll unsubscribes every observer
func (t *FutureTask) DetachAll() {
	t.subject.DetachAll()
}

// Snapshot returns a copy of the task's observable state
func (t *FutureTask) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ID:         t.id,
		Status:     t.status,
		Params:     maps.Clone(t.params),
		Result:     t.result,
		Errors:     slices.Clone(t.errs),
		CreatedAt:  t.createdAt,
		StartedAt:  t.startedAt,
		FinishedAt: t.finishedAt,
	}
}

// Start moves the task to running, emits the start event and runs the task
// function on its own goroutine.
func (t *FutureTask) Start() error {
	ctx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	if !ValidTransition(t.status, StatusRunning) {
		status := t.status
		t.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: cannot start task %s in status %s", ErrInvalidState, t.id, status)
	}
	now := time.Now().UTC()
	t.status = StatusRunning
	t.startedAt = &now
	t.cancel = cancel
	t.outbox = append(t.outbox, events.NewEvent(t.id, events.TypeStart, nil, t.params))
	t.mu.Unlock()

	t.logger.Debug("task started")
	t.flush()

	go t.run(ctx)
	return nil
}

// Stop cancels the task's context and moves it to stopped. Cancellation is
// cooperative: a function that ignores its context keeps running, but its
// outcome is discarded.
func (t *FutureTask) Stop() bool {
	if !t.finish(StatusStopped, nil, nil) {
		return false
	}
	t.logger.Debug("task stopped")
	return true
}

// Fail records err and moves the task to failed.
func (t *FutureTask) Fail(err error) bool {
	if err == nil {
		err = ErrDispatch
	}
	return t.finish(StatusFailed, nil, err)
}

// Await blocks until the task is terminal or ctx is done.
func (t *FutureTask) Await(ctx context.Context) (any, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.status {
	case StatusCompleted:
		return t.result, nil
	case StatusFailed:
		return nil, t.failure
	default:
		return nil, ErrTaskStopped
	}
}

// run executes the task function and records its outcome.
func (t *FutureTask) run(ctx context.Context) {
	if ctx.Err() != nil {
		// Stopped before the goroutine got scheduled
		return
	}

	result, err := t.invoke(ctx)
	if err != nil {
		if !t.finish(StatusFailed, nil, &ExecutionError{TaskID: t.id, Err: err}) {
			t.logger.Debug("discarding failure of finished task", "error", err)
			return
		}
		t.logger.Debug("task failed", "error", err)
		return
	}

	if !t.finish(StatusCompleted, result, nil) {
		t.logger.Debug("discarding result of finished task")
		return
	}
	t.logger.Debug("task completed")
}

// invoke calls the task function, converting a panic into an error.
func (t *FutureTask) invoke(ctx context.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return t.fn(ctx, maps.Clone(t.params))
}

// finish performs the single terminal transition. It reports false when the
// task was already terminal.
func (t *FutureTask) finish(to Status, result any, failure error) bool {
	t.mu.Lock()
	if !ValidTransition(t.status, to) {
		t.mu.Unlock()
		return false
	}

	now := time.Now().UTC()
	t.status = to
	t.finishedAt = &now

	var event events.Event
	switch to {
	case StatusCompleted:
		t.result = result
		event = events.NewEvent(t.id, events.TypeResult, result, t.params)
	case StatusFailed:
		t.failure = failure
		t.errs = append(t.errs, errorText(failure))
		event = events.NewEvent(t.id, events.TypeError, failure, t.params)
	default:
		event = events.NewEvent(t.id, events.TypeStop, nil, t.params)
	}
	t.outbox = append(t.outbox, event)

	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.flush()
	return true
}

// flush delivers queued events in order. Only one goroutine flushes at a time;
// events queued while another goroutine is flushing are delivered by it.
func (t *FutureTask) flush() {
	t.mu.Lock()
	if t.flushing {
		t.mu.Unlock()
		return
	}
	t.flushing = true

	for len(t.outbox) > 0 {
		event := t.outbox[0]
		t.outbox = t.outbox[1:]
		t.mu.Unlock()

		// Observer failures are logged by the subject
		_ = t.subject.Notify(event)

		if event.Type.IsTerminal() {
			t.subject.DetachAll()
			close(t.done)
		}

		t.mu.Lock()
	}

	t.flushing = false
	t.mu.Unlock()
}

// errorText returns the description recorded in the task's error list:
// the task function's own message rather than the wrapped one.
func errorText(err error) string {
	if execErr, ok := err.(*ExecutionError); ok {
		return execErr.Err.Error()
	}
	return err.Error()
}
