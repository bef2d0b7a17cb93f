package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/garyjia/invoice-approval/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func newEvent(t event.Type) *event.Event {
	return event.NewEvent(t, "inv-1", nil)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.SubscribeNamed(event.TypeStatusChanged, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.SubscribeNamed(event.TypeStatusChanged, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})
	d.Subscribe(event.TypeNotificationCreated, func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	})

	if err := d.Dispatch(context.Background(), newEvent(event.TypeStatusChanged)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handlers ran as %v, want [first second]", order)
	}
}

func TestDispatch_ContinuesAfterFailure(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	boom := errors.New("boom")
	var ran atomic.Int32

	d.SubscribeNamed(event.TypeStatusChanged, "failing", func(ctx context.Context, evt *event.Event) error {
		ran.Add(1)
		return boom
	})
	d.SubscribeNamed(event.TypeStatusChanged, "panicking", func(ctx context.Context, evt *event.Event) error {
		ran.Add(1)
		panic("unexpected")
	})
	d.SubscribeNamed(event.TypeStatusChanged, "ok", func(ctx context.Context, evt *event.Event) error {
		ran.Add(1)
		return nil
	})

	err := d.Dispatch(context.Background(), newEvent(event.TypeStatusChanged))
	if !errors.Is(err, boom) {
		t.Errorf("Dispatch() error = %v, want it to wrap boom", err)
	}
	if ran.Load() != 3 {
		t.Errorf("ran %d handlers, want 3", ran.Load())
	}
	if logger.ErrorCount() != 2 {
		t.Errorf("logged %d errors, want 2", logger.ErrorCount())
	}
}

func TestDispatchAsync_Wait(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		d.Subscribe(event.TypeNotificationCreated, func(ctx context.Context, evt *event.Event) error {
			count.Add(1)
			return nil
		})
	}

	d.DispatchAsync(context.Background(), newEvent(event.TypeNotificationCreated))
	d.Wait()

	if count.Load() != 5 {
		t.Errorf("handled %d times, want 5", count.Load())
	}
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	var called bool

	d.SubscribeNamed(event.TypeStatusChanged, "removable", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})
	d.Unsubscribe(event.TypeStatusChanged, "removable")

	if err := d.Dispatch(context.Background(), newEvent(event.TypeStatusChanged)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if called {
		t.Error("unsubscribed handler should not run")
	}
	if n := len(d.ListHandlers(event.TypeStatusChanged)); n != 0 {
		t.Errorf("ListHandlers() returned %d handlers, want 0", n)
	}
}

func TestListHandlers_HidesFunctions(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeNamed(event.TypeExtractionCompleted, "audit", func(ctx context.Context, evt *event.Event) error { return nil })

	handlers := d.ListHandlers(event.TypeExtractionCompleted)
	if len(handlers) != 1 {
		t.Fatalf("ListHandlers() returned %d handlers, want 1", len(handlers))
	}
	if handlers[0].Name != "audit" || handlers[0].Handler != nil {
		t.Errorf("ListHandlers()[0] = %+v", handlers[0])
	}

	if err := d.Dispatch(context.Background(), newEvent(event.TypeExtractionCompleted)); err != nil {
		t.Errorf("registered handler should still run, got %v", err)
	}
}

func TestClose(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	release := make(chan struct{})
	var finished atomic.Bool

	d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
		<-release
		finished.Store(true)
		return nil
	})
	d.DispatchAsync(context.Background(), newEvent(event.TypeStatusChanged))

	done := make(chan error)
	go func() { done <- d.Close() }()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !finished.Load() {
		t.Error("Close() returned before async handler finished")
	}

	if err := d.Dispatch(context.Background(), newEvent(event.TypeStatusChanged)); !errors.Is(err, ErrClosed) {
		t.Errorf("Dispatch() after Close() error = %v, want ErrClosed", err)
	}
	if err := d.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}

	d.DispatchAsync(context.Background(), newEvent(event.TypeStatusChanged))
	if logger.ErrorCount() != 1 {
		t.Errorf("async dispatch after close should log once, got %d", logger.ErrorCount())
	}
}
