package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/asynqq/internal/config"
	"github.com/phrazzld/asynqq/internal/events"
	"github.com/phrazzld/asynqq/internal/idgen"
	"github.com/phrazzld/asynqq/internal/metrics"
	"github.com/phrazzld/asynqq/internal/task"
)

// Common errors returned by the engine
var (
	ErrDuplicateID   = errors.New("task id already in use")
	ErrEngineStopped = errors.New("engine is closed")
	ErrNilFunc       = errors.New("task function is nil")
)

// Option configures an Engine
type Option func(*Engine)

// WithTaskFactory selects the Task implementation used by Submit.
func WithTaskFactory(factory task.Factory) Option {
	return func(e *Engine) {
		if factory != nil {
			e.factory = factory
		}
	}
}

// WithMetrics attaches a metrics collector to every submitted task.
func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = collector
	}
}

// WithIDGenerator overrides the generator configured by the id format.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// SubmitOption configures a single submission
type SubmitOption func(*submission)

type submission struct {
	id       string
	callback *events.Subject
	params   task.Params
}

// WithID sets the task id instead of generating one.
func WithID(id string) SubmitOption {
	return func(s *submission) {
		s.id = id
	}
}

// WithCallback registers subject to receive the task's events until its
// terminal event.
func WithCallback(subject *events.Subject) SubmitOption {
	return func(s *submission) {
		s.callback = subject
	}
}

// WithParams sets the parameter payload passed to the task function.
func WithParams(params task.Params) SubmitOption {
	return func(s *submission) {
		s.params = params
	}
}

// Engine accepts task submissions and runs them through a dispatcher bounded
// by the configured worker ceiling.
type Engine struct {
	logger     *slog.Logger
	taskLogger *slog.Logger
	queue      *task.PendingQueue
	dispatcher *task.Dispatcher
	callbacks  *CallbackRegistry
	factory    task.Factory
	newID      idgen.Generator
	metrics    *metrics.Collector

	// mu guards live, the non-terminal tasks by id
	mu   sync.Mutex
	live map[string]task.Task
}

// New creates an Engine from cfg. The dispatcher is not running until Start is called.
func New(cfg config.EngineConfig, logger *slog.Logger, opts ...Option) (*Engine, error) {
	newID, err := idgen.ForFormat(cfg.IDFormat)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	queue := task.NewPendingQueue(cfg.QueueSize, logger)
	dispatcher := task.NewDispatcher(queue, task.DispatcherConfig{
		MaxWorkers:       cfg.MaxWorkers,
		AdmissionBackoff: cfg.AdmissionBackoff,
	}, logger)

	e := &Engine{
		logger:     logger.With("component", "engine"),
		taskLogger: logger.With("component", "task"),
		queue:      queue,
		dispatcher: dispatcher,
		callbacks:  NewCallbackRegistry(logger),
		factory:    task.NewFutureTask,
		newID:      newID,
		live:       make(map[string]task.Task),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Submit creates a pending task running fn and enqueues it. The task id is
// generated unless WithID is given; an id that belongs to a live task is
// rejected with ErrDuplicateID.
func (e *Engine) Submit(fn task.Func, opts ...SubmitOption) (*Handle, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}

	var sub submission
	for _, opt := range opts {
		opt(&sub)
	}

	t, err := e.register(sub, fn)
	if err != nil {
		return nil, err
	}

	// The engine goes last: its terminal handler frees the id, and every
	// other id-keyed observer must be done with the task by then.
	if sub.callback != nil {
		e.callbacks.Register(t.ID(), sub.callback)
		t.Attach(e.callbacks)
	}
	if e.metrics != nil {
		t.Attach(e.metrics)
	}
	t.Attach(e.dispatcher)
	t.Attach(e)

	if err := e.queue.Enqueue(t); err != nil {
		e.forget(t.ID())
		e.callbacks.Unregister(t.ID())
		t.DetachAll()
		if errors.Is(err, task.ErrQueueClosed) {
			return nil, fmt.Errorf("submit task %s: %w", t.ID(), ErrEngineStopped)
		}
		return nil, fmt.Errorf("submit task %s: %w", t.ID(), err)
	}

	if e.metrics != nil {
		e.metrics.ObserveSubmitted()
	}
	e.logger.Debug("task submitted", "task_id", t.ID(), "pending", e.queue.Len())

	return &Handle{task: t}, nil
}

// register builds the task and records it as live under a unique id.
func (e *Engine) register(sub submission, fn task.Func) (task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := sub.id
	if id == "" {
		id = e.newID()
		for e.live[id] != nil {
			id = e.newID()
		}
	} else if _, exists := e.live[id]; exists {
		return nil, fmt.Errorf("submit task %s: %w", id, ErrDuplicateID)
	}

	t := e.factory(id, fn, sub.params, task.WithLogger(e.taskLogger))
	e.live[id] = t
	return t, nil
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.live, id)
}

// Remove stops the task with the given id, whether it is pending or running.
// It reports false when the id is unknown or the task is already terminal.
func (e *Engine) Remove(id string) bool {
	if e.dispatcher.Remove(id) {
		return true
	}

	// The task may be between dequeue and admission to the running set
	t, ok := e.Lookup(id)
	if !ok {
		e.logger.Debug("remove ignored unknown task", "task_id", id)
		return false
	}
	return t.Stop()
}

// Lookup returns the live (non-terminal) task with the given id.
func (e *Engine) Lookup(id string) (task.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.live[id]
	return t, ok
}

// Start starts the dispatcher. Starting a started engine is a no-op.
func (e *Engine) Start() {
	e.logger.Info("starting engine")
	e.dispatcher.Start()
}

// Stop halts the dispatcher and stops every task that is still pending.
// Running tasks finish on their own. The engine can be started again.
func (e *Engine) Stop() {
	e.dispatcher.Stop()
	e.logger.Info("engine stopped", "running", e.dispatcher.RunningSize())
}

// Close stops the engine and rejects further submissions with ErrEngineStopped.
func (e *Engine) Close() {
	e.queue.Close()
	e.Stop()
}

// PendingSize returns the number of tasks waiting to be dispatched.
func (e *Engine) PendingSize() int {
	return e.dispatcher.PendingSize()
}

// RunningSize returns the number of tasks currently running.
func (e *Engine) RunningSize() int {
	return e.dispatcher.RunningSize()
}

// RunningIDs returns the ids of the running tasks.
func (e *Engine) RunningIDs() []string {
	return e.dispatcher.RunningIDs()
}

// HandleEvent logs task transitions and forgets tasks once they are terminal.
func (e *Engine) HandleEvent(event events.Event) error {
	logger := e.logger.With("task_id", event.TaskID)

	switch event.Type {
	case events.TypeStart:
		logger.Debug("task started")
	case events.TypeResult:
		logger.Info("task completed")
	case events.TypeError:
		logger.Warn("task failed", "error", event.Err())
	case events.TypeStop:
		logger.Info("task stopped")
	}

	if event.Type.IsTerminal() {
		e.forget(event.TaskID)
	}
	return nil
}

var (
	_ events.Observer    = (*Engine)(nil)
	_ metrics.QueueStats = (*Engine)(nil)
)
