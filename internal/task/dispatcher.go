package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/phrazzld/asynqq/internal/events"
)

// DefaultAdmissionBackoff is how long the dispatcher pauses when it is at capacity
const DefaultAdmissionBackoff = 10 * time.Millisecond

// DispatcherConfig holds configuration for the dispatcher
type DispatcherConfig struct {
	// MaxWorkers caps the number of concurrently running tasks.
	// Zero means unbounded.
	MaxWorkers int

	// AdmissionBackoff is how long to pause before re-checking capacity
	// when MaxWorkers tasks are running. If zero, defaults to 10ms.
	AdmissionBackoff time.Duration
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxWorkers:       0,
		AdmissionBackoff: DefaultAdmissionBackoff,
	}
}

// Dispatcher moves tasks from the pending queue to running while respecting
// the worker ceiling, and reclaims capacity when tasks finish.
type Dispatcher struct {
	queue  *PendingQueue
	config DispatcherConfig
	logger *slog.Logger

	// lifecycle serializes Start and Stop
	lifecycle sync.Mutex

	// mu guards running and the loop fields
	mu      sync.Mutex
	running map[string]Task
	cancel  context.CancelFunc
	loopGen uint64
	loopWG  sync.WaitGroup
}

// NewDispatcher creates a new Dispatcher consuming from queue
func NewDispatcher(queue *PendingQueue, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	// Apply defaults for invalid config values
	if config.MaxWorkers < 0 {
		logger.Warn("invalid max workers specified, using unbounded",
			"specified_count", config.MaxWorkers)
		config.MaxWorkers = 0
	}
	if config.AdmissionBackoff <= 0 {
		config.AdmissionBackoff = DefaultAdmissionBackoff
	}

	return &Dispatcher{
		queue:   queue,
		config:  config,
		logger:  logger.With("component", "dispatcher"),
		running: make(map[string]Task),
	}
}

// Start launches the dispatch loop. Calling Start on a running dispatcher is a no-op.
func (d *Dispatcher) Start() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.loopGen++

	d.loopWG.Add(1)
	go d.loop(ctx, d.loopGen)
}

// Stop halts the dispatch loop and waits for it to exit, then stops every task
// still in the pending queue. Running tasks are left to finish.
func (d *Dispatcher) Stop() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		d.loopWG.Wait()
	}

	d.mu.Lock()
	d.cancel = nil
	d.mu.Unlock()

	dropped := d.queue.Drain()
	for _, t := range dropped {
		t.Stop()
	}
	if len(dropped) > 0 {
		d.logger.Info("dropped pending tasks", "count", len(dropped))
	}
}

// Running reports whether the dispatch loop is active
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

// Remove cancels the task with the given id. A running task is stopped and
// dropped from the running set; a pending task is taken out of the queue and
// stopped without ever running. It reports false if the id is unknown.
func (d *Dispatcher) Remove(id string) bool {
	d.mu.Lock()
	t, ok := d.running[id]
	if ok {
		delete(d.running, id)
	}
	d.mu.Unlock()

	if ok {
		t.Stop()
		d.logger.Debug("removed running task", "task_id", id)
		return true
	}

	if t, ok := d.queue.RemoveByID(id); ok {
		t.Stop()
		d.logger.Debug("removed pending task", "task_id", id)
		return true
	}

	return false
}

// RunningSize returns the number of tasks currently in the running set
func (d *Dispatcher) RunningSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.running)
}

// PendingSize returns the number of tasks waiting in the queue
func (d *Dispatcher) PendingSize() int {
	return d.queue.Len()
}

// RunningIDs returns the ids of the tasks in the running set, sorted
func (d *Dispatcher) RunningIDs() []string {
	d.mu.Lock()
	ids := slices.Collect(maps.Keys(d.running))
	d.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// RunningTask returns the running task with the given id
func (d *Dispatcher) RunningTask(id string) (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.running[id]
	return t, ok
}

// HandleEvent frees the capacity slot of a tracked task once it is terminal.
func (d *Dispatcher) HandleEvent(event events.Event) error {
	if !event.Type.IsTerminal() {
		return nil
	}

	d.mu.Lock()
	_, ok := d.running[event.TaskID]
	delete(d.running, event.TaskID)
	d.mu.Unlock()

	if ok {
		d.logger.Debug("released worker slot", "task_id", event.TaskID, "event_type", event.Type)
	}
	return nil
}

var _ events.Observer = (*Dispatcher)(nil)

// loop is the consumer side of the pending queue
func (d *Dispatcher) loop(ctx context.Context, gen uint64) {
	defer d.loopWG.Done()
	defer d.exited(gen)

	d.logger.Info("starting dispatcher", "max_workers", d.config.MaxWorkers)
	defer d.logger.Info("dispatcher stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if d.atCapacity() {
			timer := time.NewTimer(d.config.AdmissionBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		t, err := d.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				d.logger.Info("pending queue closed, stopping dispatcher")
			}
			return
		}

		d.dispatch(t)
	}
}

// exited clears the loop state when the loop of generation gen returns on its
// own, such as after the queue is closed.
func (d *Dispatcher) exited(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loopGen != gen || d.cancel == nil {
		return
	}
	d.cancel()
	d.cancel = nil
}

// atCapacity reports whether the worker ceiling has been reached
func (d *Dispatcher) atCapacity() bool {
	if d.config.MaxWorkers <= 0 {
		return false
	}
	return d.RunningSize() >= d.config.MaxWorkers
}

// dispatch starts a single task. Failures are contained to the task.
func (d *Dispatcher) dispatch(t Task) {
	if t == nil || t.Status() != StatusPending {
		// Cancelled between enqueue and dequeue
		return
	}

	logger := d.logger.With("task_id", t.ID())

	// Track before starting so that a fast completion always finds its entry.
	// Attach is a no-op when the engine already attached the dispatcher.
	t.Attach(d)
	d.mu.Lock()
	d.running[t.ID()] = t
	d.mu.Unlock()

	if err := d.start(t); err != nil {
		d.mu.Lock()
		delete(d.running, t.ID())
		d.mu.Unlock()

		if errors.Is(err, ErrInvalidState) && t.Status().IsTerminal() {
			// Removed between the pending check and Start
			logger.Debug("skipping task finished before start", "status", t.Status())
			return
		}

		logger.Error("failed to start task", "error", err)
		t.Fail(fmt.Errorf("%w: %v", ErrDispatch, err))
		return
	}

	logger.Debug("task dispatched", "running", d.RunningSize())
}

// start calls t.Start, converting a panic into an error.
func (d *Dispatcher) start(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return t.Start()
}
