package event

import (
	"context"
	"log"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(ctx context.Context, event Event) error

// EventBus is the pub/sub interface carrying outcomes from clients to
// observers (verdict, metrics, alerting).
type EventBus interface {
	// Publish publishes an event.
	Publish(ctx context.Context, event Event) error
	// Subscribe subscribes a handler to a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error
	// SubscribeAll subscribes a handler to all events.
	SubscribeAll(handler EventHandler) error
}

// Logger is the minimal logging interface used by the bus.
type Logger interface {
	Printf(format string, v ...any)
}

type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}

// MemoryEventBus is the in-memory EventBus implementation.
type MemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
	logger      Logger
}

// MemoryEventBusOption configures a MemoryEventBus.
type MemoryEventBusOption func(*MemoryEventBus)

// WithLogger sets a custom logger for the event bus.
func WithLogger(logger Logger) MemoryEventBusOption {
	return func(b *MemoryEventBus) {
		b.logger = logger
	}
}

// NewMemoryEventBus creates a new in-memory event bus.
func NewMemoryEventBus(opts ...MemoryEventBusOption) *MemoryEventBus {
	bus := &MemoryEventBus{
		handlers:    make(map[EventType][]EventHandler),
		allHandlers: make([]EventHandler, 0),
		logger:      &defaultLogger{},
	}

	for _, opt := range opts {
		opt(bus)
	}

	return bus
}

// Publish publishes an event to all subscribed handlers.
// Handler errors are logged but never block the publishing client.
func (b *MemoryEventBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	// Copy handlers to avoid holding the lock during execution
	typeHandlers := make([]EventHandler, len(b.handlers[event.Type]))
	copy(typeHandlers, b.handlers[event.Type])
	allHandlers := make([]EventHandler, len(b.allHandlers))
	copy(allHandlers, b.allHandlers)
	b.mu.RUnlock()

	for _, handler := range typeHandlers {
		b.executeHandler(ctx, handler, event)
	}

	for _, handler := range allHandlers {
		b.executeHandler(ctx, handler, event)
	}

	return nil
}

// executeHandler executes a single handler and logs any errors.
// A panicking or failing observer must not take down the workload.
func (b *MemoryEventBus) executeHandler(ctx context.Context, handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("[EventBus] handler panic for event %s: %v", event.Type, r)
		}
	}()

	if err := handler(ctx, event); err != nil {
		b.logger.Printf("[EventBus] handler error for event %s (client=%s): %v", event.Type, event.ClientID, err)
	}
}

// Subscribe subscribes a handler to a specific event type.
// Multiple handlers can be registered for the same event type.
func (b *MemoryEventBus) Subscribe(eventType EventType, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SubscribeAll subscribes a handler to all events.
func (b *MemoryEventBus) SubscribeAll(handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Unsubscribe removes all handlers for a specific event type.
func (b *MemoryEventBus) Unsubscribe(eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, eventType)
}

// UnsubscribeAll removes all handlers.
func (b *MemoryEventBus) UnsubscribeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[EventType][]EventHandler)
	b.allHandlers = make([]EventHandler, 0)
}

// HandlerCount returns the number of handlers for a specific event type.
func (b *MemoryEventBus) HandlerCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers[eventType])
}

// AllHandlerCount returns the number of all-event handlers.
func (b *MemoryEventBus) AllHandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.allHandlers)
}

// NoOpEventBus discards all events. Used when observers are disabled.
type NoOpEventBus struct{}

// NewNoOpEventBus creates a new no-op event bus.
func NewNoOpEventBus() *NoOpEventBus {
	return &NoOpEventBus{}
}

// Publish does nothing.
func (b *NoOpEventBus) Publish(_ context.Context, _ Event) error {
	return nil
}

// Subscribe does nothing.
func (b *NoOpEventBus) Subscribe(_ EventType, _ EventHandler) error {
	return nil
}

// SubscribeAll does nothing.
func (b *NoOpEventBus) SubscribeAll(_ EventHandler) error {
	return nil
}
