package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/leave-approval/internal/domain/entity"
)

// Payload keys shared by publishers and handlers
const (
	KeyIntent    = "intent"
	KeyFrom      = "from"
	KeyTo        = "to"
	KeyAction    = "action"
	KeyStage     = "stage"
	KeyMessageID = "message_id"
	KeyError     = "error"
)

// Event represents a domain event
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RequestID     string                 `json:"request_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, requestID string, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, requestID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, requestID string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		RequestID:     requestID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// NewNotificationRequested wraps an intent for asynchronous delivery
func NewNotificationRequested(intent entity.NotificationIntent, correlationID string) *Event {
	return NewEventWithCorrelation(TypeNotificationRequested, intent.RequestID, map[string]interface{}{
		KeyIntent: intent,
	}, correlationID)
}

// WithPayload returns a copy of the event with an added payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case interface{ String() string }:
			return v.String()
		}
	}
	return ""
}

// Intent returns the notification intent carried by the event, if any
func (e *Event) Intent() (entity.NotificationIntent, bool) {
	switch v := e.Payload[KeyIntent].(type) {
	case entity.NotificationIntent:
		return v, true
	case *entity.NotificationIntent:
		if v != nil {
			return *v, true
		}
	}
	return entity.NotificationIntent{}, false
}
