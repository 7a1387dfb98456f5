// Package event provides event definitions and the event bus for the harness.
package event

import (
	"time"
)

// EventType identifies a harness event.
type EventType string

const (
	// Run lifecycle events
	EventRunStarted EventType = "run.started"
	EventRunStopped EventType = "run.stopped"

	// Client lifecycle events
	EventClientReady    EventType = "client.ready"
	EventClientDisabled EventType = "client.disabled"

	// Probe outcome events
	EventProbeBlocked   EventType = "probe.blocked"
	EventProbeViolated  EventType = "probe.violated"
	EventProbeAmbiguous EventType = "probe.ambiguous"

	// Scenario events
	EventScenarioStage  EventType = "scenario.stage"
	EventScenarioFailed EventType = "scenario.failed"

	// Alert events
	EventAlertWarning  EventType = "alert.warning"
	EventAlertCritical EventType = "alert.critical"
)

// Event is a single occurrence on the bus.
type Event struct {
	Type       EventType      // event type
	RunID      string         // harness run ID
	ClientID   string         // virtual client ID (client/probe events)
	MemberID   string         // member under probe (probe events)
	StatusCode int            // raw HTTP status (probe events)
	Timestamp  time.Time      // when the event was created
	Data       map[string]any // additional payload
	Error      error          // error detail (failure events)
}

// NewEvent creates a new event with the given type and sets the timestamp.
func NewEvent(eventType EventType) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      make(map[string]any),
	}
}

// WithRunID sets the run ID on the event.
func (e Event) WithRunID(runID string) Event {
	e.RunID = runID
	return e
}

// WithClientID sets the client ID on the event.
func (e Event) WithClientID(clientID string) Event {
	e.ClientID = clientID
	return e
}

// WithMemberID sets the member ID on the event.
func (e Event) WithMemberID(memberID string) Event {
	e.MemberID = memberID
	return e
}

// WithStatusCode sets the raw HTTP status on the event.
func (e Event) WithStatusCode(code int) Event {
	e.StatusCode = code
	return e
}

// WithError sets the error on the event.
func (e Event) WithError(err error) Event {
	e.Error = err
	return e
}

// WithData sets a key-value pair in the event data.
func (e Event) WithData(key string, value any) Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}
