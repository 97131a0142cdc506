package dto

import (
	"time"

	"github.com/civicstack/form-engine/internal/domain"
)

// SaveFormRequest carries an authored form definition.
type SaveFormRequest struct {
	Title    string                   `json:"title"`
	Fields   []domain.FieldDescriptor `json:"fields"`
	Settings domain.FormSettings      `json:"settings"`
}

// FormResponse is the wire form of a definition.
type FormResponse struct {
	ID        string                   `json:"id"`
	Title     string                   `json:"title"`
	Fields    []domain.FieldDescriptor `json:"fields"`
	Settings  domain.FormSettings      `json:"settings"`
	Active    bool                     `json:"active"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// NewFormResponse maps a domain form.
func NewFormResponse(form *domain.FormDefinition) FormResponse {
	return FormResponse{
		ID:        form.ID,
		Title:     form.Title,
		Fields:    form.Fields,
		Settings:  form.Settings,
		Active:    form.Active,
		CreatedAt: form.CreatedAt,
		UpdatedAt: form.UpdatedAt,
	}
}

// SLAConfigRequest carries per-category due-date rules.
type SLAConfigRequest struct {
	SLADays                 int  `json:"sla_days"`
	EscalationThresholdDays int  `json:"escalation_threshold_days"`
	UseBusinessDays         bool `json:"use_business_days"`
	BufferDays              int  `json:"buffer_days"`
}
