package events

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Subject is the emitting side of the observer pattern. It keeps observers in
// insertion order and delivers every event to each of them in turn.
//
// The zero value is ready to use and discards its own diagnostics; use
// NewSubject to get failures logged.
type Subject struct {
	observers []Observer
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewSubject creates a new Subject that logs observer failures to logger.
func NewSubject(logger *slog.Logger) *Subject {
	s := &Subject{}
	s.SetLogger(logger)
	return s
}

// SetLogger sets the logger used to report observer failures.
func (s *Subject) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger != nil {
		s.logger = logger.With("component", "event_subject")
	}
}

// Attach adds an observer. Attaching an observer that is already present is a no-op.
func (s *Subject) Attach(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.observers, o) {
		return
	}
	s.observers = append(s.observers, o)
}

// Detach removes an observer. Detaching an unknown observer is a no-op.
func (s *Subject) Detach(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.observers, o); i >= 0 {
		s.observers = slices.Delete(s.observers, i, i+1)
	}
}

// DetachAll removes every observer.
func (s *Subject) DetachAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = nil
}

// Observers returns the number of attached observers.
func (s *Subject) Observers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// Notify delivers the event to all attached observers, synchronously and in
// insertion order. If an observer fails or panics the event is still delivered
// to all other observers, and the first failure is returned.
func (s *Subject) Notify(event Event) error {
	s.mu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	logger := s.logger
	s.mu.RUnlock()

	var firstErr error
	for i, o := range observers {
		if err := deliver(o, event); err != nil {
			if logger != nil {
				logger.Error("observer failed to process event",
					"error", err,
					"observer_index", i,
					"task_id", event.TaskID,
					"event_type", event.Type)
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// deliver calls the observer, converting a panic into an error.
func deliver(o Observer, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return o.HandleEvent(event)
}
