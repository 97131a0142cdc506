package forms

import (
	"fmt"
	"regexp"

	"github.com/civicstack/form-engine/internal/domain"
	apperrors "github.com/civicstack/form-engine/pkg/util/errorutil"
)

// Validator is the executable form of a descriptor list. It is immutable
// after Compile and safe for concurrent use: each Validate call works only
// on its own arguments.
type Validator struct {
	fields []domain.FieldDescriptor
	checks map[string]checkFunc
}

// Compile turns a descriptor list into a Validator. Structural problems
// (unknown type, choice field without options, conditional referencing an
// undeclared or later field) fail here, before any submission is processed,
// so the form author sees them at save time.
func Compile(fields []domain.FieldDescriptor) (*Validator, error) {
	if err := validateStructure(fields); err != nil {
		return nil, err
	}
	checks := make(map[string]checkFunc, len(fields))
	for _, field := range fields {
		checks[field.ID] = buildCheck(field)
	}
	return &Validator{fields: fields, checks: checks}, nil
}

// Fields returns the descriptor list this validator was compiled from.
func (v *Validator) Fields() []domain.FieldDescriptor {
	return v.fields
}

// Validate checks a payload against the compiled fields. Visibility is
// applied first: invisible fields are neither validated nor included in the
// returned data. On rejection the error is a VALIDATION_FAILED DomainError
// whose details map field ids to reason codes.
func (v *Validator) Validate(payload map[string]any) (map[string]any, error) {
	visible := VisibleFields(v.fields, payload)
	fieldErrors := FieldErrors{}
	clean := make(map[string]any)

	for _, field := range v.fields {
		if _, ok := visible[field.ID]; !ok {
			continue
		}
		value, present := payload[field.ID]
		if !present || isEmpty(value) {
			if field.Required {
				fieldErrors[field.ID] = FieldError{Reason: ReasonRequired, Message: "this field is required"}
			}
			continue
		}
		if fieldErr := v.checks[field.ID](value); fieldErr != nil {
			fieldErrors[field.ID] = *fieldErr
			continue
		}
		clean[field.ID] = value
	}

	if len(fieldErrors) > 0 {
		return nil, apperrors.NewValidationError("submission payload rejected", fieldErrors.Details())
	}
	return clean, nil
}

// validateStructure enforces descriptor invariants and builds the
// conditional dependency adjacency explicitly, keyed by field id, instead of
// trusting array order as an implicit contract.
func validateStructure(fields []domain.FieldDescriptor) error {
	declared := make(map[string]int, len(fields))
	for position, field := range fields {
		if field.ID == "" {
			return configErr(fmt.Sprintf("field at position %d has no id", position), "", nil)
		}
		if _, duplicate := declared[field.ID]; duplicate {
			return configErr("duplicate field id", field.ID, nil)
		}
		if !domain.KnownFieldType(field.Type) {
			return configErr(fmt.Sprintf("unknown field type %q", field.Type), field.ID, nil)
		}
		if field.Type.IsChoice() && len(field.Options) == 0 {
			return configErr("choice field declares no options", field.ID, nil)
		}
		if field.Validation != nil {
			if err := validateBounds(field); err != nil {
				return err
			}
		}
		if field.Conditional != nil {
			if err := validateConditional(field, declared); err != nil {
				return err
			}
		}
		declared[field.ID] = position
	}
	return nil
}

func validateBounds(field domain.FieldDescriptor) error {
	rules := field.Validation
	if rules.Min != nil && rules.Max != nil && *rules.Min > *rules.Max {
		return configErr("min greater than max", field.ID, nil)
	}
	if rules.MinLength != nil && rules.MaxLength != nil && *rules.MinLength > *rules.MaxLength {
		return configErr("minLength greater than maxLength", field.ID, nil)
	}
	if rules.Pattern != "" {
		if _, err := regexp.Compile(rules.Pattern); err != nil {
			return configErr("invalid pattern", field.ID, map[string]any{"pattern": rules.Pattern})
		}
	}
	return nil
}

// validateConditional rejects forward, self and dangling references: a
// dependency must be declared strictly earlier in the same form, which is
// what rules out cycles.
func validateConditional(field domain.FieldDescriptor, declared map[string]int) error {
	cond := field.Conditional
	if !domain.KnownOperator(cond.Operator) {
		return configErr(fmt.Sprintf("unknown conditional operator %q", cond.Operator), field.ID, nil)
	}
	if cond.DependsOn == field.ID {
		return configErr("field depends on itself", field.ID, nil)
	}
	if _, earlier := declared[cond.DependsOn]; !earlier {
		return configErr(
			fmt.Sprintf("conditional references %q which is not declared earlier", cond.DependsOn),
			field.ID,
			map[string]any{"dependsOn": cond.DependsOn})
	}
	return nil
}

func configErr(message, fieldID string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	if fieldID != "" {
		details["fieldId"] = fieldID
	}
	return apperrors.NewConfigurationError(message, details)
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if text, ok := value.(string); ok {
		return text == ""
	}
	return false
}
