package service

import (
	"context"
	"strings"

	"github.com/civicstack/form-engine/internal/audit"
	"github.com/civicstack/form-engine/internal/domain"
	"github.com/civicstack/form-engine/internal/forms"
	"github.com/civicstack/form-engine/internal/repository"
	apperrors "github.com/civicstack/form-engine/pkg/util/errorutil"
)

// FormService coordinates form authoring. Every save path compiles the
// descriptor list first, so structural problems surface to the author
// before any citizen can submit against the form.
type FormService struct {
	formsRepo  repository.FormRepository
	slaConfigs repository.SLAConfigRepository
	auditLog   audit.Recorder
}

// FormInput describes an authored form definition.
type FormInput struct {
	Title    string
	Fields   []domain.FieldDescriptor
	Settings domain.FormSettings
}

// NewFormService constructs the service.
func NewFormService(formsRepo repository.FormRepository, slaConfigs repository.SLAConfigRepository, auditLog audit.Recorder) *FormService {
	return &FormService{formsRepo: formsRepo, slaConfigs: slaConfigs, auditLog: auditLog}
}

// SaveForm compiles and persists a new form definition.
func (s *FormService) SaveForm(ctx context.Context, actorID string, input FormInput) (*domain.FormDefinition, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if _, err := forms.Compile(input.Fields); err != nil {
		return nil, err
	}
	form := &domain.FormDefinition{
		Title:    strings.TrimSpace(input.Title),
		Fields:   input.Fields,
		Settings: input.Settings,
		Active:   true,
	}
	if err := s.formsRepo.Create(ctx, form); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "form.create", form.ID, map[string]any{
		"title":    form.Title,
		"category": form.Settings.Category,
		"fields":   len(form.Fields),
	})
	return form, nil
}

// UpdateForm replaces a form's definition. Submissions created earlier keep
// their own field snapshot, so replacement cannot orphan historical data.
func (s *FormService) UpdateForm(ctx context.Context, actorID, formID string, input FormInput) (*domain.FormDefinition, error) {
	form, err := s.formsRepo.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if _, err := forms.Compile(input.Fields); err != nil {
		return nil, err
	}
	form.Title = strings.TrimSpace(input.Title)
	form.Fields = input.Fields
	form.Settings = input.Settings
	if err := s.formsRepo.Update(ctx, form); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "form.update", form.ID, map[string]any{
		"title":  form.Title,
		"fields": len(form.Fields),
	})
	return form, nil
}

// GetForm fetches a single form definition.
func (s *FormService) GetForm(ctx context.Context, formID string) (*domain.FormDefinition, error) {
	return s.formsRepo.GetByID(ctx, formID)
}

// ListForms returns form definitions.
func (s *FormService) ListForms(ctx context.Context, activeOnly bool, limit, offset int) ([]domain.FormDefinition, error) {
	return s.formsRepo.List(ctx, activeOnly, limit, offset)
}

// DeactivateForm retires a form without deleting it; existing submissions
// are never cascade-deleted.
func (s *FormService) DeactivateForm(ctx context.Context, actorID, formID string) error {
	if err := s.formsRepo.Deactivate(ctx, formID); err != nil {
		return err
	}
	s.record(ctx, actorID, "form.deactivate", formID, nil)
	return nil
}

// UpsertSLAConfig stores per-category due-date rules. The change applies
// prospectively only: due times already stamped on submissions are final.
func (s *FormService) UpsertSLAConfig(ctx context.Context, actorID string, cfg domain.SLAConfig) error {
	if cfg.SLADays < 0 || cfg.BufferDays < 0 || cfg.EscalationThresholdDays < 0 {
		return apperrors.NewValidationError("day counts must not be negative", nil)
	}
	previous, err := s.slaConfigs.Get(ctx, cfg.Category)
	if err != nil {
		return err
	}
	if err := s.slaConfigs.Upsert(ctx, cfg); err != nil {
		return err
	}
	if s.auditLog != nil {
		_ = s.auditLog.Record(ctx, actorID, "sla_config.update", "sla_config", cfg.Category, map[string]any{
			"old": previous,
			"new": cfg,
		})
	}
	return nil
}

// GetSLAConfig returns the effective config for a category.
func (s *FormService) GetSLAConfig(ctx context.Context, category string) (domain.SLAConfig, error) {
	return s.slaConfigs.Get(ctx, category)
}

func (s *FormService) record(ctx context.Context, actorID, action, resourceID string, diff map[string]any) {
	if s.auditLog == nil {
		return
	}
	_ = s.auditLog.Record(ctx, actorID, action, "form", resourceID, diff)
}
