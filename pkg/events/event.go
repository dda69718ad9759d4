package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "FORM_SUBMITTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	Timestamp() time.Time
}

const (
	TypeSessionState       = "SESSION_STATE_CHANGED"
	TypeFormSubmitted      = "FORM_SUBMITTED"
	TypeFormSubmitFailed   = "FORM_SUBMIT_FAILED"
	TypeDetectionCompleted = "DETECTION_COMPLETED"
	TypeDetectionFailed    = "DETECTION_FAILED"
	TypeMediaReleased      = "MEDIA_RELEASED"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// New stamps an event with the current time.
func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}
