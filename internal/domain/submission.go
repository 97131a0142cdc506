package domain

import "time"

// SubmissionStatus enumerates lifecycle states for submissions. The set is
// closed: no other status values are permitted anywhere in the system.
type SubmissionStatus string

const (
	StatusPending    SubmissionStatus = "PENDING"
	StatusInProgress SubmissionStatus = "IN_PROGRESS"
	StatusResolved   SubmissionStatus = "RESOLVED"
	StatusRejected   SubmissionStatus = "REJECTED"
	StatusEscalated  SubmissionStatus = "ESCALATED"
)

// AllStatuses lists every member of the closed status set.
var AllStatuses = []SubmissionStatus{
	StatusPending,
	StatusInProgress,
	StatusResolved,
	StatusRejected,
	StatusEscalated,
}

// Terminal reports whether no further transition is permitted from s.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// allowedTransitions is the single authoritative transition table.
// ESCALATED appears as a target only for PENDING and IN_PROGRESS; the
// escalation engine is the sole caller allowed to use it (operator-facing
// transition paths reject ESCALATED before consulting this table).
var allowedTransitions = map[SubmissionStatus][]SubmissionStatus{
	StatusPending:    {StatusInProgress, StatusResolved, StatusRejected, StatusEscalated},
	StatusInProgress: {StatusResolved, StatusRejected, StatusEscalated},
	StatusEscalated:  {StatusInProgress, StatusResolved, StatusRejected},
	StatusResolved:   {},
	StatusRejected:   {},
}

// CanTransition reports whether the state machine permits current -> next.
func CanTransition(current, next SubmissionStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Submission is the aggregate for one citizen submission against a form.
//
// SLADue is computed once at creation from the SLA configuration in force at
// that moment and is never recomputed, even if the configuration changes
// later. FieldSnapshot freezes the form's descriptor list at submit time so
// historical data stays resolvable after the live form is edited. Version
// backs the optimistic write discipline: every status or assignment write
// must carry the version it read.
type Submission struct {
	ID            string
	FormID        string
	Data          map[string]any
	Status        SubmissionStatus
	AssignedTo    *string
	FieldSnapshot []FieldDescriptor
	CreatedAt     time.Time
	SLADue        time.Time
	ResolvedAt    *time.Time
	Version       int64
}
