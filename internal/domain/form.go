package domain

import "time"

// FormSettings controls intake behavior for one form.
type FormSettings struct {
	Category       string `json:"category"`
	SLADays        int    `json:"slaDays"`
	RequiresAuth   bool   `json:"requiresAuth"`
	AllowAnonymous bool   `json:"allowAnonymous"`
}

// FormDefinition is a run-time authored form: an ordered list of field
// descriptors plus intake settings. Forms are deactivated rather than
// deleted once submissions reference them.
type FormDefinition struct {
	ID        string
	Title     string
	Fields    []FieldDescriptor
	Settings  FormSettings
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FieldByID returns the descriptor with the given id, if declared.
func (f *FormDefinition) FieldByID(id string) (*FieldDescriptor, bool) {
	for i := range f.Fields {
		if f.Fields[i].ID == id {
			return &f.Fields[i], true
		}
	}
	return nil, false
}
