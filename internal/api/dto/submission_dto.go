package dto

import (
	"time"

	"github.com/civicstack/form-engine/internal/domain"
)

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	Status domain.SubmissionStatus `json:"status"`
	Note   string                  `json:"note"`
}

// AssignRequest changes the assignee; null unassigns.
type AssignRequest struct {
	AssignedTo *string `json:"assigned_to"`
}

// SubmissionResponse is the wire form of a submission.
type SubmissionResponse struct {
	ID         string                  `json:"id"`
	FormID     string                  `json:"form_id"`
	Data       map[string]any          `json:"data"`
	Status     domain.SubmissionStatus `json:"status"`
	AssignedTo *string                 `json:"assigned_to,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
	SLADue     time.Time               `json:"sla_due"`
	SLAState   string                  `json:"sla_state,omitempty"`
	ResolvedAt *time.Time              `json:"resolved_at,omitempty"`
}

// NewSubmissionResponse maps a domain submission.
func NewSubmissionResponse(submission *domain.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:         submission.ID,
		FormID:     submission.FormID,
		Data:       submission.Data,
		Status:     submission.Status,
		AssignedTo: submission.AssignedTo,
		CreatedAt:  submission.CreatedAt,
		SLADue:     submission.SLADue,
		ResolvedAt: submission.ResolvedAt,
	}
}

// HistoryEntryResponse is one trail entry.
type HistoryEntryResponse struct {
	Status    domain.SubmissionStatus `json:"status"`
	ActorID   *string                 `json:"actor_id,omitempty"`
	Note      string                  `json:"note,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewHistoryResponse maps trail entries.
func NewHistoryResponse(entries []domain.HistoryEntry) []HistoryEntryResponse {
	result := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, HistoryEntryResponse{
			Status:    entry.Status,
			ActorID:   entry.ActorID,
			Note:      entry.Note,
			CreatedAt: entry.CreatedAt,
		})
	}
	return result
}
