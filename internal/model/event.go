// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventPowerChanged    EventType = "POWER_CHANGED"
	EventPropertyUpdated EventType = "PROPERTY_UPDATED"
	EventOptionUpdated   EventType = "OPTION_UPDATED"
	EventFunctionUpdated EventType = "FUNCTION_UPDATED"
	EventBusyChanged     EventType = "BUSY_CHANGED"
	EventCommandExecuted EventType = "COMMAND_EXECUTED"
	EventProjectorError  EventType = "PROJECTOR_ERROR"
)

// Severity levels
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// ProjectorEvent represents an event in the system
type ProjectorEvent struct {
	ID          uuid.UUID  `json:"id"`
	EventType   EventType  `json:"event_type"`
	ProjectorID string     `json:"projector_id"`
	Data        JSONObject `json:"data"`
	Timestamp   time.Time  `json:"timestamp"`
	Source      string     `json:"source"`
	Severity    string     `json:"severity"` // INFO, WARNING, ERROR
}

// NewProjectorEvent creates an INFO event stamped with a fresh id
func NewProjectorEvent(eventType EventType, projectorID, source string, data JSONObject) *ProjectorEvent {
	return &ProjectorEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		ProjectorID: projectorID,
		Data:        data,
		Timestamp:   time.Now(),
		Source:      source,
		Severity:    SeverityInfo,
	}
}

// WithSeverity sets the severity and returns the event
func (e *ProjectorEvent) WithSeverity(severity string) *ProjectorEvent {
	e.Severity = severity
	return e
}
