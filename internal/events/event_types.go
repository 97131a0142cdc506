package events

import (
	"time"

	"github.com/civicstack/form-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSubmissionCreated   EventType = "submission_created"
	EventSubmissionStatus    EventType = "submission_status_changed"
	EventSubmissionAssigned  EventType = "submission_assigned"
	EventSubmissionEscalated EventType = "submission_escalated"
	EventSubmissionResolved  EventType = "submission_resolved"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type       domain.SubjectType `json:"type"`
	CitizenID  *string            `json:"citizen_id,omitempty"`
	OperatorID *string            `json:"operator_id,omitempty"`
	System     bool               `json:"system,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	SubmissionID string      `json:"submission_id"`
	Actor        Actor       `json:"actor"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// SubmissionCreatedPayload payload.
type SubmissionCreatedPayload struct {
	FormID   string    `json:"form_id"`
	Category string    `json:"category"`
	SLADue   time.Time `json:"sla_due"`
}

// SubmissionStatusPayload payload.
type SubmissionStatusPayload struct {
	OldStatus domain.SubmissionStatus `json:"old_status"`
	NewStatus domain.SubmissionStatus `json:"new_status"`
	Note      string                  `json:"note,omitempty"`
}

// SubmissionAssignedPayload payload.
type SubmissionAssignedPayload struct {
	AssignedTo *string `json:"assigned_to,omitempty"`
}

// SubmissionEscalatedPayload payload.
type SubmissionEscalatedPayload struct {
	SLADue     time.Time               `json:"sla_due"`
	OldStatus  domain.SubmissionStatus `json:"old_status"`
	OverdueFor time.Duration           `json:"overdue_for"`
}
