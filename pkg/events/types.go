// Package events provides the typed in-process event bus that connects the
// MaintFlow agents, plus the event definitions themselves.
//
// Events are a tagged sum: every concrete event embeds BaseEvent, which
// carries the event_type discriminant. Subscribers register by type tag and
// downcast the delivered event to the concrete variant. Dispatch is
// concurrent across subscribers with per-subscriber retry; handlers that
// exhaust their retries end up in the dead-letter sink, never back on the
// caller of Publish.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type tags. Subscribers register against these.
const (
	TypeSensorDataReceived         = "SensorDataReceivedEvent"
	TypeDataProcessed              = "DataProcessedEvent"
	TypeDataProcessingFailed       = "DataProcessingFailedEvent"
	TypeAnomalyDetected            = "AnomalyDetectedEvent"
	TypeAnomalyValidated           = "AnomalyValidatedEvent"
	TypeMaintenancePredicted       = "MaintenancePredictedEvent"
	TypeHumanDecisionRequired      = "HumanDecisionRequiredEvent"
	TypeHumanDecisionResponse      = "HumanDecisionResponseEvent"
	TypeScheduleMaintenanceCommand = "ScheduleMaintenanceCommand"
	TypeMaintenanceScheduled       = "MaintenanceScheduledEvent"
	TypeMaintenanceCompleted       = "MaintenanceCompletedEvent"
)

// Event is the contract every bus event satisfies. Concrete events embed
// BaseEvent, so implementing this interface is free.
type Event interface {
	// Base returns the shared envelope: ID, type tag, timestamp, correlation.
	Base() *BaseEvent
}

// BaseEvent is the envelope embedded in every concrete event.
type BaseEvent struct {
	EventID       string    `json:"event_id"`                 // unique, generated
	EventType     string    `json:"event_type"`               // type tag, see constants above
	Timestamp     time.Time `json:"timestamp"`                // UTC
	CorrelationID string    `json:"correlation_id,omitempty"` // propagated end-to-end
}

// Base implements Event.
func (b *BaseEvent) Base() *BaseEvent { return b }

// NewBase creates a fresh envelope for a new logical flow.
// An empty correlationID is replaced with a generated one so that every flow
// is traceable from its first event.
func NewBase(eventType, correlationID string) BaseEvent {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return BaseEvent{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// DeriveBase creates an envelope for an event derived from source, carrying
// the source's correlation ID forward. This is the only sanctioned way to
// build follow-on events: it keeps the correlation invariant intact.
func DeriveBase(eventType string, source Event) BaseEvent {
	var correlationID string
	if source != nil {
		correlationID = source.Base().CorrelationID
	}
	return NewBase(eventType, correlationID)
}
