package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicstack/form-engine/internal/audit"
	"github.com/civicstack/form-engine/internal/domain"
	"github.com/civicstack/form-engine/internal/repository"
	apperrors "github.com/civicstack/form-engine/pkg/util/errorutil"
)

func newFormService() (*FormService, *repository.MemoryFormRepository, *audit.MemoryRecorder) {
	formsRepo := repository.NewMemoryFormRepository()
	recorder := audit.NewMemoryRecorder()
	return NewFormService(formsRepo, repository.NewMemorySLAConfigRepository(), recorder), formsRepo, recorder
}

func TestSaveFormCompilesBeforePersisting(t *testing.T) {
	service, formsRepo, recorder := newFormService()

	_, err := service.SaveForm(context.Background(), "admin-1", FormInput{
		Title: "Broken",
		Fields: []domain.FieldDescriptor{
			{ID: "pick", Type: domain.FieldTypeSingleChoice},
		},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "FORM_CONFIG_INVALID"))

	listed, err := formsRepo.List(context.Background(), false, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)
	assert.Empty(t, recorder.Entries)

	form, err := service.SaveForm(context.Background(), "admin-1", FormInput{
		Title: "  Noise complaint  ",
		Fields: []domain.FieldDescriptor{
			{ID: "description", Type: domain.FieldTypeText, Required: true},
		},
		Settings: domain.FormSettings{Category: "noise", SLADays: 5, AllowAnonymous: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Noise complaint", form.Title)
	assert.True(t, form.Active)
	require.Len(t, recorder.Entries, 1)
	assert.Equal(t, "form.create", recorder.Entries[0].Action)
}

func TestSaveFormRequiresTitle(t *testing.T) {
	service, _, _ := newFormService()
	_, err := service.SaveForm(context.Background(), "admin-1", FormInput{Title: "   "})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestUpdateFormReplacesDefinition(t *testing.T) {
	service, _, _ := newFormService()
	form, err := service.SaveForm(context.Background(), "admin-1", FormInput{
		Title:  "v1",
		Fields: []domain.FieldDescriptor{{ID: "a", Type: domain.FieldTypeText}},
	})
	require.NoError(t, err)

	updated, err := service.UpdateForm(context.Background(), "admin-1", form.ID, FormInput{
		Title: "v2",
		Fields: []domain.FieldDescriptor{
			{ID: "a", Type: domain.FieldTypeText},
			{ID: "b", Type: domain.FieldTypeNumber},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Title)
	assert.Len(t, updated.Fields, 2)

	// A structurally invalid replacement is rejected whole.
	_, err = service.UpdateForm(context.Background(), "admin-1", form.ID, FormInput{
		Title:  "v3",
		Fields: []domain.FieldDescriptor{{ID: "a", Type: domain.FieldType("MATRIX")}},
	})
	require.Error(t, err)
	current, err := service.GetForm(context.Background(), form.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", current.Title)
}

func TestDeactivateFormKeepsRecord(t *testing.T) {
	service, _, _ := newFormService()
	form, err := service.SaveForm(context.Background(), "admin-1", FormInput{
		Title:  "Retiring",
		Fields: []domain.FieldDescriptor{{ID: "a", Type: domain.FieldTypeText}},
	})
	require.NoError(t, err)

	require.NoError(t, service.DeactivateForm(context.Background(), "admin-1", form.ID))

	stored, err := service.GetForm(context.Background(), form.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	active, err := service.ListForms(context.Background(), true, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestUpsertSLAConfig(t *testing.T) {
	service, _, recorder := newFormService()

	err := service.UpsertSLAConfig(context.Background(), "admin-1", domain.SLAConfig{
		Category: "noise", SLADays: -1,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	require.NoError(t, service.UpsertSLAConfig(context.Background(), "admin-1", domain.SLAConfig{
		Category: "noise", SLADays: 3, EscalationThresholdDays: 1, UseBusinessDays: true,
	}))
	cfg, err := service.GetSLAConfig(context.Background(), "noise")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.SLADays)
	assert.True(t, cfg.UseBusinessDays)

	// Unknown categories fall back to the default rule set.
	fallback, err := service.GetSLAConfig(context.Background(), "unmapped")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSLAConfig("unmapped"), fallback)

	require.Len(t, recorder.Entries, 1)
	assert.Equal(t, "sla_config.update", recorder.Entries[0].Action)
}
