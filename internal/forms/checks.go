package forms

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/civicstack/form-engine/internal/domain"
)

// Reason codes reported alongside field ids so clients can highlight the
// exact offending field without parsing message strings.
const (
	ReasonRequired       = "required"
	ReasonBadType        = "bad_type"
	ReasonTooShort       = "too_short"
	ReasonTooLong        = "too_long"
	ReasonBelowMin       = "below_min"
	ReasonAboveMax       = "above_max"
	ReasonPattern        = "pattern_mismatch"
	ReasonNotAnOption    = "not_an_option"
	ReasonBadFormat      = "bad_format"
	ReasonFileTooLarge   = "file_too_large"
	ReasonMIMENotAllowed = "mime_not_allowed"
	ReasonTooManyFiles   = "too_many_files"
	ReasonOutOfRange     = "out_of_range"
)

// FieldError describes why a single field was rejected.
type FieldError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// FieldErrors maps field id to its first rejection.
type FieldErrors map[string]FieldError

// Details converts errors into DomainError detail payloads.
func (fe FieldErrors) Details() map[string]any {
	details := make(map[string]any, len(fe))
	for id, fieldErr := range fe {
		details[id] = fieldErr
	}
	return details
}

// checkFunc validates one present payload value.
type checkFunc func(value any) *FieldError

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ().-]{5,19}$`)

// buildCheck maps a field descriptor to its value check. Called only after
// the descriptor passed structural validation.
func buildCheck(field domain.FieldDescriptor) checkFunc {
	switch field.Type {
	case domain.FieldTypeText, domain.FieldTypeLongText:
		return textCheck(field.Validation)
	case domain.FieldTypeEmail:
		return emailCheck()
	case domain.FieldTypePhone:
		return phoneCheck()
	case domain.FieldTypeNumber:
		return numberCheck(field.Validation)
	case domain.FieldTypeSingleChoice:
		return singleChoiceCheck(field.Options)
	case domain.FieldTypeMultiChoice:
		return multiChoiceCheck(field.Options)
	case domain.FieldTypeBoolean:
		return booleanCheck()
	case domain.FieldTypeFile:
		return fileCheck(field.FileRules)
	case domain.FieldTypeDate:
		return timestampCheck("2006-01-02", "date must be YYYY-MM-DD")
	case domain.FieldTypeTime:
		return timeOfDayCheck()
	case domain.FieldTypeDateTime:
		return timestampCheck(time.RFC3339, "must be an ISO-8601 timestamp")
	case domain.FieldTypeURL:
		return urlCheck()
	case domain.FieldTypeGeoPoint:
		return geoPointCheck()
	}
	// unreachable: Compile rejects unknown field types
	return func(any) *FieldError { return nil }
}

func textCheck(rules *domain.ValidationRules) checkFunc {
	var pattern *regexp.Regexp
	if rules != nil && rules.Pattern != "" {
		pattern = regexp.MustCompile(rules.Pattern)
	}
	return func(value any) *FieldError {
		text, ok := value.(string)
		if !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected a string"}
		}
		if rules != nil {
			if rules.MinLength != nil && len(text) < *rules.MinLength {
				return &FieldError{Reason: ReasonTooShort, Message: fmt.Sprintf("must be at least %d characters", *rules.MinLength)}
			}
			if rules.MaxLength != nil && len(text) > *rules.MaxLength {
				return &FieldError{Reason: ReasonTooLong, Message: fmt.Sprintf("must be at most %d characters", *rules.MaxLength)}
			}
		}
		if pattern != nil && !pattern.MatchString(text) {
			return &FieldError{Reason: ReasonPattern, Message: "does not match the required pattern"}
		}
		return nil
	}
}

func emailCheck() checkFunc {
	return func(value any) *FieldError {
		text, ok := value.(string)
		if !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected a string"}
		}
		if _, err := mail.ParseAddress(text); err != nil {
			return &FieldError{Reason: ReasonBadFormat, Message: "not a valid email address"}
		}
		return nil
	}
}

func phoneCheck() checkFunc {
	return func(value any) *FieldError {
		text, ok := value.(string)
		if !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected a string"}
		}
		if !phonePattern.MatchString(strings.TrimSpace(text)) {
			return &FieldError{Reason: ReasonBadFormat, Message: "not a valid phone number"}
		}
		return nil
	}
}

func numberCheck(rules *domain.ValidationRules) checkFunc {
	return func(value any) *FieldError {
		num, ok := asFloat(value)
		if !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected a number"}
		}
		if rules != nil {
			if rules.Min != nil && num < *rules.Min {
				return &FieldError{Reason: ReasonBelowMin, Message: fmt.Sprintf("must be at least %v", *rules.Min)}
			}
			if rules.Max != nil && num > *rules.Max {
				return &FieldError{Reason: ReasonAboveMax, Message: fmt.Sprintf("must be at most %v", *rules.Max)}
			}
		}
		return nil
	}
}

func singleChoiceCheck(options []domain.FieldOption) checkFunc {
	allowed := optionValueSet(options)
	return func(value any) *FieldError {
		text, ok := value.(string)
		if !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected a string option value"}
		}
		if _, exists := allowed[text]; !exists {
			return &FieldError{Reason: ReasonNotAnOption, Message: "not one of the declared options"}
		}
		return nil
	}
}

func multiChoiceCheck(options []domain.FieldOption) checkFunc {
	allowed := optionValueSet(options)
	return func(value any) *FieldError {
		selected, ok := asStringSlice(value)
		if !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected a list of option values"}
		}
		for _, item := range selected {
			if _, exists := allowed[item]; !exists {
				return &FieldError{Reason: ReasonNotAnOption, Message: fmt.Sprintf("%q is not one of the declared options", item)}
			}
		}
		return nil
	}
}

func booleanCheck() checkFunc {
	return func(value any) *FieldError {
		if _, ok := value.(bool); !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected a boolean"}
		}
		return nil
	}
}

func fileCheck(rules *domain.FileRules) checkFunc {
	return func(value any) *FieldError {
		files, ok := asFileList(value)
		if !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected a file reference {name,size,type}"}
		}
		maxFiles := 1
		if rules != nil && rules.MaxFiles > 0 {
			maxFiles = rules.MaxFiles
		}
		if len(files) > maxFiles {
			return &FieldError{Reason: ReasonTooManyFiles, Message: fmt.Sprintf("at most %d file(s) allowed", maxFiles)}
		}
		for _, file := range files {
			if fieldErr := checkOneFile(file, rules); fieldErr != nil {
				return fieldErr
			}
		}
		return nil
	}
}

func checkOneFile(file map[string]any, rules *domain.FileRules) *FieldError {
	name, _ := file["name"].(string)
	size, sizeOK := asFloat(file["size"])
	mimeType, _ := file["type"].(string)
	if name == "" || !sizeOK || mimeType == "" {
		return &FieldError{Reason: ReasonBadType, Message: "file reference needs name, size and type"}
	}
	if rules == nil {
		return nil
	}
	if rules.MaxSizeBytes > 0 && int64(size) > rules.MaxSizeBytes {
		return &FieldError{Reason: ReasonFileTooLarge, Message: fmt.Sprintf("file exceeds %d bytes", rules.MaxSizeBytes)}
	}
	if len(rules.AllowedMIMETypes) > 0 {
		for _, allowed := range rules.AllowedMIMETypes {
			if strings.EqualFold(allowed, mimeType) {
				return nil
			}
		}
		return &FieldError{Reason: ReasonMIMENotAllowed, Message: fmt.Sprintf("MIME type %q not allowed", mimeType)}
	}
	return nil
}

func timestampCheck(layout, message string) checkFunc {
	return func(value any) *FieldError {
		text, ok := value.(string)
		if !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected a string"}
		}
		if _, err := time.Parse(layout, text); err != nil {
			return &FieldError{Reason: ReasonBadFormat, Message: message}
		}
		return nil
	}
}

func timeOfDayCheck() checkFunc {
	return func(value any) *FieldError {
		text, ok := value.(string)
		if !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected a string"}
		}
		if _, err := time.Parse("15:04", text); err == nil {
			return nil
		}
		if _, err := time.Parse("15:04:05", text); err == nil {
			return nil
		}
		return &FieldError{Reason: ReasonBadFormat, Message: "time must be HH:MM or HH:MM:SS"}
	}
}

func urlCheck() checkFunc {
	return func(value any) *FieldError {
		text, ok := value.(string)
		if !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected a string"}
		}
		parsed, err := url.Parse(text)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return &FieldError{Reason: ReasonBadFormat, Message: "not a valid http(s) URL"}
		}
		return nil
	}
}

func geoPointCheck() checkFunc {
	return func(value any) *FieldError {
		point, ok := value.(map[string]any)
		if !ok {
			return &FieldError{Reason: ReasonBadType, Message: "expected {lat,lng}"}
		}
		lat, latOK := asFloat(point["lat"])
		lng, lngOK := asFloat(point["lng"])
		if !latOK || !lngOK {
			return &FieldError{Reason: ReasonBadType, Message: "expected numeric lat and lng"}
		}
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return &FieldError{Reason: ReasonOutOfRange, Message: "coordinates out of range"}
		}
		return nil
	}
}

func optionValueSet(options []domain.FieldOption) map[string]struct{} {
	set := make(map[string]struct{}, len(options))
	for _, option := range options {
		set[option.Value] = struct{}{}
	}
	return set
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func asStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			text, ok := item.(string)
			if !ok {
				return nil, false
			}
			result = append(result, text)
		}
		return result, true
	}
	return nil, false
}

func asFileList(value any) ([]map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return []map[string]any{v}, true
	case []any:
		result := make([]map[string]any, 0, len(v))
		for _, item := range v {
			file, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			result = append(result, file)
		}
		return result, true
	}
	return nil, false
}
