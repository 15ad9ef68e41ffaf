package events

import (
	"maps"
	"time"
)

// Type identifies the kind of lifecycle transition an Event describes.
type Type string

// Event types emitted by tasks
const (
	TypeStart  Type = "start"
	TypeStop   Type = "stop"
	TypeError  Type = "error"
	TypeResult Type = "result"
)

// IsTerminal reports whether the event type ends a task's lifecycle.
func (t Type) IsTerminal() bool {
	return t == TypeStop || t == TypeError || t == TypeResult
}

// Event describes a single lifecycle transition of a task.
// Events are value objects and are never retained by the emitter.
type Event struct {
	// TaskID identifies the task that emitted the event
	TaskID string `json:"task_id"`

	// Type is the kind of transition
	Type Type `json:"type"`

	// Payload is the task result for TypeResult, the error for TypeError,
	// and nil otherwise
	Payload any `json:"payload,omitempty"`

	// Params echoes the task's parameter payload for consumer convenience
	Params map[string]any `json:"params,omitempty"`

	// Time is when the event was created
	Time time.Time `json:"time"`
}

// NewEvent creates an Event stamped with the current UTC time. The params map
// is copied so observers cannot mutate the task's own payload.
func NewEvent(taskID string, eventType Type, payload any, params map[string]any) Event {
	return Event{
		TaskID:  taskID,
		Type:    eventType,
		Payload: payload,
		Params:  maps.Clone(params),
		Time:    time.Now().UTC(),
	}
}

// Err returns the payload as an error for TypeError events, nil otherwise.
func (e Event) Err() error {
	if e.Type != TypeError {
		return nil
	}
	err, _ := e.Payload.(error)
	return err
}

// Observer defines an interface for components that receive events.
type Observer interface {
	// HandleEvent processes the given event.
	// A returned error is logged by the emitter and never stops delivery
	// to the remaining observers.
	HandleEvent(event Event) error
}

// FuncObserver adapts a plain function to the Observer interface.
// It is used through a pointer so that attach/detach can compare observers.
type FuncObserver struct {
	fn func(Event) error
}

// NewFuncObserver wraps fn as an Observer.
func NewFuncObserver(fn func(Event) error) *FuncObserver {
	return &FuncObserver{fn: fn}
}

// HandleEvent implements the Observer interface
func (o *FuncObserver) HandleEvent(event Event) error {
	return o.fn(event)
}
