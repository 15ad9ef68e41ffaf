package engine

import (
	"log/slog"
	"sync"

	"github.com/phrazzld/asynqq/internal/events"
)

// CallbackRegistry routes task events to per-task subscriber subjects. A
// mapping is removed on the first terminal event for its task.
type CallbackRegistry struct {
	mu       sync.Mutex
	subjects map[string]*events.Subject
	logger   *slog.Logger
}

// NewCallbackRegistry creates an empty registry.
func NewCallbackRegistry(logger *slog.Logger) *CallbackRegistry {
	return &CallbackRegistry{
		subjects: make(map[string]*events.Subject),
		logger:   logger.With("component", "callback_registry"),
	}
}

// Register maps id to subject. A nil subject is ignored.
func (r *CallbackRegistry) Register(id string, subject *events.Subject) {
	if subject == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects[id] = subject
}

// Unregister drops the mapping for id and reports whether one existed.
func (r *CallbackRegistry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subjects[id]
	delete(r.subjects, id)
	return ok
}

// Has reports whether a subscriber is registered for id.
func (r *CallbackRegistry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subjects[id]
	return ok
}

// Len returns the number of registered subscribers.
func (r *CallbackRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subjects)
}

// HandleEvent forwards event to the subscriber registered for its task.
// Events for unknown ids are ignored.
func (r *CallbackRegistry) HandleEvent(event events.Event) error {
	r.mu.Lock()
	subject, ok := r.subjects[event.TaskID]
	if ok && event.Type.IsTerminal() {
		delete(r.subjects, event.TaskID)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}

	if err := subject.Notify(event); err != nil {
		r.logger.Warn("callback subscriber failed",
			"task_id", event.TaskID,
			"event_type", event.Type,
			"error", err)
	}
	return nil
}

var _ events.Observer = (*CallbackRegistry)(nil)
