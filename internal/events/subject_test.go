package events

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	// Create a minimal logger that discards output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("notify with no observers", func(t *testing.T) {
		subject := NewSubject(logger)

		err := subject.Notify(NewEvent("1", TypeStart, nil, nil))
		assert.NoError(t, err)
	})

	t.Run("attach is idempotent", func(t *testing.T) {
		subject := NewSubject(logger)
		recorder := NewRecorder()

		subject.Attach(recorder)
		subject.Attach(recorder)
		assert.Equal(t, 1, subject.Observers())

		require.NoError(t, subject.Notify(NewEvent("1", TypeStart, nil, nil)))
		assert.Equal(t, 1, recorder.Count())
	})

	t.Run("detach is idempotent", func(t *testing.T) {
		subject := NewSubject(logger)
		recorder := NewRecorder()

		subject.Attach(recorder)
		subject.Detach(recorder)
		subject.Detach(recorder)
		assert.Equal(t, 0, subject.Observers())

		require.NoError(t, subject.Notify(NewEvent("1", TypeStart, nil, nil)))
		assert.Equal(t, 0, recorder.Count())
	})

	t.Run("detach all", func(t *testing.T) {
		subject := NewSubject(logger)
		subject.Attach(NewRecorder())
		subject.Attach(NewRecorder())

		subject.DetachAll()
		assert.Equal(t, 0, subject.Observers())
	})

	t.Run("observers are called in insertion order", func(t *testing.T) {
		subject := NewSubject(logger)

		var order []int
		for i := 0; i < 3; i++ {
			i := i
			subject.Attach(NewFuncObserver(func(Event) error {
				order = append(order, i)
				return nil
			}))
		}

		require.NoError(t, subject.Notify(NewEvent("1", TypeStart, nil, nil)))
		assert.Equal(t, []int{0, 1, 2}, order)
	})

	t.Run("failing observer does not stop delivery", func(t *testing.T) {
		subject := NewSubject(logger)

		failing := NewRecorder()
		failing.FailWith(errors.New("observer error"))
		success := NewRecorder()

		subject.Attach(failing)
		subject.Attach(success)

		err := subject.Notify(NewEvent("1", TypeResult, "ok", nil))
		assert.Error(t, err)
		assert.Equal(t, "observer error", err.Error())

		// Both observers should still have received the event
		assert.Equal(t, 1, failing.Count())
		assert.Equal(t, 1, success.Count())
	})

	t.Run("panicking observer does not stop delivery", func(t *testing.T) {
		subject := NewSubject(logger)
		success := NewRecorder()

		subject.Attach(NewFuncObserver(func(Event) error {
			panic("observer blew up")
		}))
		subject.Attach(success)

		err := subject.Notify(NewEvent("1", TypeError, errors.New("boom"), nil))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "panic")
		assert.Equal(t, 1, success.Count())
	})

	t.Run("zero value subject", func(t *testing.T) {
		var subject Subject
		recorder := NewRecorder()
		subject.Attach(recorder)

		failing := NewRecorder()
		failing.FailWith(errors.New("no logger"))
		subject.Attach(failing)

		err := subject.Notify(NewEvent("1", TypeStart, nil, nil))
		assert.Error(t, err)
		assert.Equal(t, 1, recorder.Count())
	})

	t.Run("observer may detach itself during notify", func(t *testing.T) {
		subject := NewSubject(logger)
		recorder := NewRecorder()

		var self *FuncObserver
		self = NewFuncObserver(func(Event) error {
			subject.Detach(self)
			return nil
		})
		subject.Attach(self)
		subject.Attach(recorder)

		require.NoError(t, subject.Notify(NewEvent("1", TypeStart, nil, nil)))
		assert.Equal(t, 1, subject.Observers())
		assert.Equal(t, 1, recorder.Count())
	})

	t.Run("concurrent notify and attach", func(t *testing.T) {
		subject := NewSubject(logger)
		recorder := NewRecorder()
		subject.Attach(recorder)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = subject.Notify(NewEvent("1", TypeStart, nil, nil))
			}()
			go func() {
				defer wg.Done()
				subject.Attach(NewRecorder())
			}()
		}
		wg.Wait()

		assert.Equal(t, 20, recorder.Count())
		assert.Equal(t, 21, subject.Observers())
	})
}
