package forms

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/civicstack/form-engine/internal/domain"
)

// VisibleFields evaluates conditional rules against the current payload and
// returns the set of field ids that are currently relevant. Fields are
// evaluated in declaration order, so a field's visibility can only depend on
// fields already evaluated; a field whose dependency is itself invisible is
// invisible too, regardless of how its own condition would evaluate.
func VisibleFields(fields []domain.FieldDescriptor, payload map[string]any) map[string]struct{} {
	visible := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if field.Conditional == nil {
			visible[field.ID] = struct{}{}
			continue
		}
		if _, ok := visible[field.Conditional.DependsOn]; !ok {
			continue
		}
		if conditionHolds(*field.Conditional, payload[field.Conditional.DependsOn]) {
			visible[field.ID] = struct{}{}
		}
	}
	return visible
}

func conditionHolds(cond domain.Condition, actual any) bool {
	switch cond.Operator {
	case domain.OperatorEquals:
		return strictEqual(actual, cond.Value)
	case domain.OperatorNotEquals:
		return !strictEqual(actual, cond.Value)
	case domain.OperatorContains:
		return strings.Contains(coerceString(actual), coerceString(cond.Value))
	case domain.OperatorNotContains:
		return !strings.Contains(coerceString(actual), coerceString(cond.Value))
	}
	return false
}

func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}

// coerceString stringifies both operands of the substring operators. A
// boolean dependency compared with contains is therefore defined behavior:
// it matches against "true"/"false".
func coerceString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
