package domain

// FieldType enumerates the supported form field kinds.
type FieldType string

const (
	FieldTypeText         FieldType = "TEXT"
	FieldTypeLongText     FieldType = "LONG_TEXT"
	FieldTypeEmail        FieldType = "EMAIL"
	FieldTypePhone        FieldType = "PHONE"
	FieldTypeNumber       FieldType = "NUMBER"
	FieldTypeSingleChoice FieldType = "SINGLE_CHOICE"
	FieldTypeMultiChoice  FieldType = "MULTI_CHOICE"
	FieldTypeBoolean      FieldType = "BOOLEAN"
	FieldTypeFile         FieldType = "FILE"
	FieldTypeDate         FieldType = "DATE"
	FieldTypeTime         FieldType = "TIME"
	FieldTypeDateTime     FieldType = "DATE_TIME"
	FieldTypeURL          FieldType = "URL"
	FieldTypeGeoPoint     FieldType = "GEO_POINT"
)

// KnownFieldType reports whether t is part of the closed field-type set.
func KnownFieldType(t FieldType) bool {
	switch t {
	case FieldTypeText, FieldTypeLongText, FieldTypeEmail, FieldTypePhone,
		FieldTypeNumber, FieldTypeSingleChoice, FieldTypeMultiChoice,
		FieldTypeBoolean, FieldTypeFile, FieldTypeDate, FieldTypeTime,
		FieldTypeDateTime, FieldTypeURL, FieldTypeGeoPoint:
		return true
	}
	return false
}

// IsChoice reports whether t requires a declared options list.
func (t FieldType) IsChoice() bool {
	return t == FieldTypeSingleChoice || t == FieldTypeMultiChoice
}

// ConditionOperator enumerates conditional-visibility comparisons.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
)

// KnownOperator reports whether op is a supported comparison.
func KnownOperator(op ConditionOperator) bool {
	switch op {
	case OperatorEquals, OperatorNotEquals, OperatorContains, OperatorNotContains:
		return true
	}
	return false
}

// FieldOption is one selectable label/value pair for choice fields.
type FieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ValidationRules carries the optional numeric/length/pattern bounds of a field.
type ValidationRules struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

// Condition makes a field's visibility depend on an earlier field's value.
type Condition struct {
	DependsOn string            `json:"dependsOn"`
	Operator  ConditionOperator `json:"operator"`
	Value     any               `json:"value"`
}

// FileRules constrains file-type field values.
type FileRules struct {
	MaxSizeBytes     int64    `json:"maxSizeBytes,omitempty"`
	AllowedMIMETypes []string `json:"allowedMimeTypes,omitempty"`
	MaxFiles         int      `json:"maxFiles,omitempty"`
}

// FieldDescriptor is the declarative specification of a single form field.
// Declaration order within a form is significant: it is both display order
// and conditional-evaluation order.
type FieldDescriptor struct {
	ID          string           `json:"id"`
	Type        FieldType        `json:"type"`
	Label       string           `json:"label"`
	Required    bool             `json:"required"`
	Validation  *ValidationRules `json:"validation,omitempty"`
	Options     []FieldOption    `json:"options,omitempty"`
	Conditional *Condition       `json:"conditional,omitempty"`
	FileRules   *FileRules       `json:"fileRules,omitempty"`
}
