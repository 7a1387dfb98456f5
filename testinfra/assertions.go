package testinfra

import (
	"context"
	"errors"
	"sync"
	"testing"

	"skew/event"
)

// EventCollector collects events for testing
type EventCollector struct {
	events []event.Event
	mu     sync.Mutex
}

// NewEventCollector creates a new event collector
func NewEventCollector() *EventCollector {
	return &EventCollector{
		events: make([]event.Event, 0),
	}
}

// Handle handles an event by collecting it (matches event.EventHandler signature)
func (c *EventCollector) Handle(ctx context.Context, e event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

// Events returns a copy of all collected events
func (c *EventCollector) Events() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Clear clears all collected events
func (c *EventCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}

// HasEventType checks if an event of the given type was collected
func (c *EventCollector) HasEventType(eventType event.EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

// CountEventType counts events of the given type
func (c *EventCollector) CountEventType(eventType event.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, e := range c.events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// AssertEventPublished asserts that an event of the given type was published
func AssertEventPublished(t testing.TB, collector *EventCollector, eventType event.EventType) {
	t.Helper()
	if !collector.HasEventType(eventType) {
		t.Errorf("Expected event %s to be published, but it was not", eventType)
	}
}

// AssertEventNotPublished asserts that an event of the given type was not published
func AssertEventNotPublished(t testing.TB, collector *EventCollector, eventType event.EventType) {
	t.Helper()
	if collector.HasEventType(eventType) {
		t.Errorf("Expected event %s to not be published, but it was", eventType)
	}
}

// AssertEventCount asserts the count of events of the given type
func AssertEventCount(t testing.TB, collector *EventCollector, eventType event.EventType, expected int) {
	t.Helper()
	actual := collector.CountEventType(eventType)
	if actual != expected {
		t.Errorf("Expected %d events of type %s, got %d", expected, eventType, actual)
	}
}

// AssertNoError asserts that there is no error
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}

// AssertError asserts that there is an error
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Error("Expected an error, got nil")
	}
}

// AssertErrorIs asserts that err matches target via errors.Is
func AssertErrorIs(t testing.TB, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("Expected error %v, got %v", target, err)
	}
}

// AssertTrue asserts that a condition is true
func AssertTrue(t testing.TB, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("Assertion failed: %s", msg)
	}
}

// AssertFalse asserts that a condition is false
func AssertFalse(t testing.TB, condition bool, msg string) {
	t.Helper()
	if condition {
		t.Errorf("Assertion failed: %s", msg)
	}
}

// AssertEqual asserts that two values are equal
func AssertEqual[T comparable](t testing.TB, expected, actual T) {
	t.Helper()
	if expected != actual {
		t.Errorf("Expected %v, got %v", expected, actual)
	}
}

// AssertNotEqual asserts that two values are not equal
func AssertNotEqual[T comparable](t testing.TB, expected, actual T) {
	t.Helper()
	if expected == actual {
		t.Errorf("Expected values to be different, both are %v", expected)
	}
}
