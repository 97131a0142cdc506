package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicstack/form-engine/internal/domain"
)

func TestVisibleFieldsOperators(t *testing.T) {
	fields := []domain.FieldDescriptor{
		{ID: "category", Type: domain.FieldTypeText},
		{ID: "eq", Type: domain.FieldTypeText, Conditional: &domain.Condition{
			DependsOn: "category", Operator: domain.OperatorEquals, Value: "noise",
		}},
		{ID: "neq", Type: domain.FieldTypeText, Conditional: &domain.Condition{
			DependsOn: "category", Operator: domain.OperatorNotEquals, Value: "noise",
		}},
		{ID: "has", Type: domain.FieldTypeText, Conditional: &domain.Condition{
			DependsOn: "category", Operator: domain.OperatorContains, Value: "oi",
		}},
		{ID: "hasnot", Type: domain.FieldTypeText, Conditional: &domain.Condition{
			DependsOn: "category", Operator: domain.OperatorNotContains, Value: "oi",
		}},
	}

	visible := VisibleFields(fields, map[string]any{"category": "noise"})
	assert.Contains(t, visible, "eq")
	assert.NotContains(t, visible, "neq")
	assert.Contains(t, visible, "has")
	assert.NotContains(t, visible, "hasnot")

	visible = VisibleFields(fields, map[string]any{"category": "trash"})
	assert.NotContains(t, visible, "eq")
	assert.Contains(t, visible, "neq")
	assert.NotContains(t, visible, "has")
	assert.Contains(t, visible, "hasnot")
}

func TestVisibleFieldsEqualityIsStrict(t *testing.T) {
	fields := []domain.FieldDescriptor{
		{ID: "count", Type: domain.FieldTypeNumber},
		{ID: "extra", Type: domain.FieldTypeText, Conditional: &domain.Condition{
			DependsOn: "count", Operator: domain.OperatorEquals, Value: float64(3),
		}},
	}

	visible := VisibleFields(fields, map[string]any{"count": float64(3)})
	assert.Contains(t, visible, "extra")

	// "3" is not 3: no coercion for equality operators.
	visible = VisibleFields(fields, map[string]any{"count": "3"})
	assert.NotContains(t, visible, "extra")
}

func TestVisibleFieldsContainsCoercesBooleans(t *testing.T) {
	fields := []domain.FieldDescriptor{
		{ID: "agreed", Type: domain.FieldTypeBoolean},
		{ID: "signature", Type: domain.FieldTypeText, Conditional: &domain.Condition{
			DependsOn: "agreed", Operator: domain.OperatorContains, Value: "true",
		}},
	}

	visible := VisibleFields(fields, map[string]any{"agreed": true})
	assert.Contains(t, visible, "signature")

	visible = VisibleFields(fields, map[string]any{"agreed": false})
	assert.NotContains(t, visible, "signature")
}

func TestVisibilityHidesTransitively(t *testing.T) {
	fields := []domain.FieldDescriptor{
		{ID: "a", Type: domain.FieldTypeText},
		{ID: "b", Type: domain.FieldTypeText, Conditional: &domain.Condition{
			DependsOn: "a", Operator: domain.OperatorEquals, Value: "yes",
		}},
		{ID: "c", Type: domain.FieldTypeText, Conditional: &domain.Condition{
			DependsOn: "b", Operator: domain.OperatorEquals, Value: "deep",
		}},
	}

	// b hidden pulls c down with it even though c's own condition matches.
	visible := VisibleFields(fields, map[string]any{"a": "no", "b": "deep"})
	assert.Contains(t, visible, "a")
	assert.NotContains(t, visible, "b")
	assert.NotContains(t, visible, "c")

	visible = VisibleFields(fields, map[string]any{"a": "yes", "b": "deep"})
	assert.Contains(t, visible, "b")
	assert.Contains(t, visible, "c")
}

func TestValidateSkipsAndDropsInvisibleFields(t *testing.T) {
	validator, err := Compile([]domain.FieldDescriptor{
		{ID: "needs_followup", Type: domain.FieldTypeBoolean},
		{ID: "followup_email", Type: domain.FieldTypeEmail, Required: true, Conditional: &domain.Condition{
			DependsOn: "needs_followup", Operator: domain.OperatorEquals, Value: true,
		}},
	})
	require.NoError(t, err)

	// Hidden required field is not demanded, and a stale value for it is
	// dropped from the clean data.
	clean, err := validator.Validate(map[string]any{
		"needs_followup": false,
		"followup_email": "stale@example.org",
	})
	require.NoError(t, err)
	assert.NotContains(t, clean, "followup_email")

	// Visible again: the requirement and the check both apply.
	_, err = validator.Validate(map[string]any{"needs_followup": true})
	require.Error(t, err)

	clean, err = validator.Validate(map[string]any{
		"needs_followup": true,
		"followup_email": "ada@example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", clean["followup_email"])
}
