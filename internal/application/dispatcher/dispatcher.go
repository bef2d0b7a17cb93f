// Package dispatcher delivers committed domain events to subscribed handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/invoice-approval/internal/domain/event"
)

// ErrClosed is returned by Dispatch after Close
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher fans committed events out to delivery and bookkeeping handlers
type Dispatcher interface {
	Subscribe(eventType event.Type, handler Handler)
	SubscribeNamed(eventType event.Type, name string, handler Handler)
	Unsubscribe(eventType event.Type, name string)

	// Dispatch runs every handler in registration order. A failing handler does not
	// stop the others; all failures are returned joined.
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs each handler on its own goroutine and returns immediately
	DispatchAsync(ctx context.Context, evt *event.Event)

	ListHandlers(eventType event.Type) []HandlerInfo

	// Wait blocks until all async handlers started so far have returned
	Wait()

	// Close rejects new events and waits for running async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type eventDispatcher struct {
	logger Logger

	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo

	inflight sync.WaitGroup
	closed   atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher returns an in-process dispatcher with no subscribers
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		logger:   nopLogger{},
		handlers: make(map[event.Type][]HandlerInfo),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers an anonymous handler named after its position
func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.Lock()
	name := fmt.Sprintf("%s#%d", eventType, len(d.handlers[eventType]))
	d.handlers[eventType] = append(d.handlers[eventType], HandlerInfo{Name: name, EventType: eventType, Handler: handler})
	d.mu.Unlock()
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	d.handlers[eventType] = append(d.handlers[eventType], HandlerInfo{Name: name, EventType: eventType, Handler: handler})
	d.mu.Unlock()
	d.logger.Info("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var kept []HandlerInfo
	for _, h := range d.handlers[eventType] {
		if h.Name != name {
			kept = append(kept, h)
		}
	}
	d.handlers[eventType] = kept
}

func (d *eventDispatcher) subscribers(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]HandlerInfo(nil), d.handlers[eventType]...)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	var errs []error
	for _, h := range d.subscribers(evt.Type) {
		if err := d.deliver(ctx, evt, h); err != nil {
			errs = append(errs, fmt.Errorf("handler %s: %w", h.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		d.logger.Error("Dropping event, dispatcher is closed", "event_type", evt.Type, "invoice_id", evt.InvoiceID)
		return
	}

	for _, h := range d.subscribers(evt.Type) {
		d.inflight.Add(1)
		go func(h HandlerInfo) {
			defer d.inflight.Done()
			_ = d.deliver(ctx, evt, h)
		}(h)
	}
}

// ListHandlers describes the subscribers of eventType without exposing the functions
func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	out := d.subscribers(eventType)
	for i := range out {
		out[i].Handler = nil
	}
	return out
}

func (d *eventDispatcher) Wait() {
	d.inflight.Wait()
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	d.inflight.Wait()
	d.logger.Info("Dispatcher closed")
	return nil
}

// deliver runs one handler, turning a panic into an error, and logs any failure
func (d *eventDispatcher) deliver(ctx context.Context, evt *event.Event, h HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			d.logger.Error("Handler error",
				"event_type", evt.Type,
				"invoice_id", evt.InvoiceID,
				"handler_name", h.Name,
				"error", err)
		}
	}()
	return h.Handler(ctx, evt)
}
