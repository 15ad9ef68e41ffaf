package task

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/asynqq/internal/events"
)

// MockTask is a controllable implementation of the Task interface for testing.
// Start calls StartFn instead of running anything.
type MockTask struct {
	TaskID     string
	TaskParams Params
	StartFn    func() error

	mu       sync.Mutex
	status   Status
	errs     []string
	subject  events.Subject
	created  time.Time
	done     chan struct{}
	doneOnce sync.Once
	starts   int
}

// NewMockTask creates a pending MockTask whose Start succeeds
func NewMockTask(id string) *MockTask {
	return &MockTask{
		TaskID:     id,
		TaskParams: Params{},
		StartFn:    func() error { return nil },
		status:     StatusPending,
		created:    time.Now().UTC(),
		done:       make(chan struct{}),
	}
}

// ID returns the task's unique identifier
func (m *MockTask) ID() string { return m.TaskID }

// CreatedAt returns the creation time
func (m *MockTask) CreatedAt() time.Time { return m.created }

// Params returns the task's parameter payload
func (m *MockTask) Params() Params { return m.TaskParams }

// Status returns the current task status
func (m *MockTask) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Starts returns how many times Start was called
func (m *MockTask) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Start records the call, runs StartFn and moves the task to running on success
func (m *MockTask) Start() error {
	m.mu.Lock()
	m.starts++
	m.mu.Unlock()

	if err := m.StartFn(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.status != StatusPending {
		m.mu.Unlock()
		return ErrInvalidState
	}
	m.status = StatusRunning
	m.mu.Unlock()

	_ = m.subject.Notify(events.NewEvent(m.TaskID, events.TypeStart, nil, m.TaskParams))
	return nil
}

// Complete finishes a running task with result, as the task function would
func (m *MockTask) Complete(result any) bool {
	return m.finish(StatusCompleted, events.NewEvent(m.TaskID, events.TypeResult, result, m.TaskParams))
}

// Stop moves the task to stopped
func (m *MockTask) Stop() bool {
	return m.finish(StatusStopped, events.NewEvent(m.TaskID, events.TypeStop, nil, m.TaskParams))
}

// Fail records err and moves the task to failed
func (m *MockTask) Fail(err error) bool {
	m.mu.Lock()
	if ValidTransition(m.status, StatusFailed) {
		m.errs = append(m.errs, err.Error())
	}
	m.mu.Unlock()
	return m.finish(StatusFailed, events.NewEvent(m.TaskID, events.TypeError, err, m.TaskParams))
}

func (m *MockTask) finish(to Status, event events.Event) bool {
	m.mu.Lock()
	if !ValidTransition(m.status, to) {
		m.mu.Unlock()
		return false
	}
	m.status = to
	m.mu.Unlock()

	_ = m.subject.Notify(event)
	m.subject.DetachAll()
	m.doneOnce.Do(func() { close(m.done) })
	return true
}

// IsRunning reports whether the task is running
func (m *MockTask) IsRunning() bool { return m.Status() == StatusRunning }

// IsCompleted reports whether the task is terminal
func (m *MockTask) IsCompleted() bool { return m.Status().IsTerminal() }

// Result always returns nil
func (m *MockTask) Result() any { return nil }

// Errors returns the recorded errors
func (m *MockTask) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errs...)
}

// Done returns a channel closed at the terminal transition
func (m *MockTask) Done() <-chan struct{} { return m.done }

// Await waits for the terminal transition
func (m *MockTask) Await(ctx context.Context) (any, error) {
	select {
	case <-m.done:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot returns the task's observable state
func (m *MockTask) Snapshot() Snapshot {
	return Snapshot{ID: m.TaskID, Status: m.Status(), Params: m.TaskParams, CreatedAt: m.created, Errors: m.Errors()}
}

// Attach subscribes an observer
func (m *MockTask) Attach(o events.Observer) { m.subject.Attach(o) }

// Detach unsubscribes an observer
func (m *MockTask) Detach(o events.Observer) { m.subject.Detach(o) }

// DetachAll unsubscribes every observer
func (m *MockTask) DetachAll() { m.subject.DetachAll() }

var _ Task = (*MockTask)(nil)
