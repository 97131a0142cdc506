package domain

import "time"

// HistoryEntry is one append-only record in a submission's audit trail.
// Entries are never mutated or removed.
type HistoryEntry struct {
	ID           string
	SubmissionID string
	Status       SubmissionStatus
	ActorID      *string
	Note         string
	CreatedAt    time.Time
}
