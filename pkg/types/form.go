package types

import (
	"slices"
	"time"
)

// FieldType is the closed set of input kinds a FieldDefinition can take.
type FieldType string

// Field types.
const (
	FieldText        FieldType = "text"
	FieldEmail       FieldType = "email"
	FieldPhone       FieldType = "phone"
	FieldNumber      FieldType = "number"
	FieldDate        FieldType = "date"
	FieldTime        FieldType = "time"
	FieldTextarea    FieldType = "textarea"
	FieldSelect      FieldType = "select"
	FieldMultiselect FieldType = "multiselect"
	FieldRadio       FieldType = "radio"
	FieldCheckbox    FieldType = "checkbox"
	FieldRating      FieldType = "rating"
	FieldFile        FieldType = "file"
	FieldSection     FieldType = "section"
)

// AllFieldTypes lists every field type in builder palette order.
var AllFieldTypes = []FieldType{
	FieldText, FieldEmail, FieldPhone, FieldNumber, FieldDate, FieldTime,
	FieldTextarea, FieldSelect, FieldMultiselect, FieldRadio, FieldCheckbox,
	FieldRating, FieldFile, FieldSection,
}

// Rating field star ceilings: the default when a field sets none, and the
// largest a field may use.
const (
	DefaultRatingMax = 5
	RatingMaxLimit   = 10
)

// Known reports whether t is one of the defined field types.
func (t FieldType) Known() bool { return slices.Contains(AllFieldTypes, t) }

// IsChoice reports whether the type takes an options list.
func (t FieldType) IsChoice() bool {
	return t == FieldSelect || t == FieldRadio || t == FieldMultiselect
}

// IsSection reports whether the type is a display-only section heading.
func (t FieldType) IsSection() bool { return t == FieldSection }

// FieldDefinition is one typed input inside a Form. Optional attributes are
// only meaningful for the types that use them; Publish strips the rest.
type FieldDefinition struct {
	ID          string    `json:"id" yaml:"id"`
	Type        FieldType `json:"type" yaml:"type"`
	Label       string    `json:"label" yaml:"label"`
	Required    bool      `json:"required" yaml:"required"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Options     []string  `json:"options,omitempty" yaml:"options,omitempty"`
	Min         *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64  `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength   *int      `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength   *int      `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Accept      string    `json:"accept,omitempty" yaml:"accept,omitempty"`
	SectionText string    `json:"section_text,omitempty" yaml:"section_text,omitempty"`
}

// Clone returns a deep copy.
func (d FieldDefinition) Clone() FieldDefinition {
	out := d
	out.Options = slices.Clone(d.Options)
	if d.Min != nil {
		v := *d.Min
		out.Min = &v
	}
	if d.Max != nil {
		v := *d.Max
		out.Max = &v
	}
	if d.MinLength != nil {
		v := *d.MinLength
		out.MinLength = &v
	}
	if d.MaxLength != nil {
		v := *d.MaxLength
		out.MaxLength = &v
	}
	return out
}

// RatingMax returns the star ceiling of a rating field, clamped to
// RatingMaxLimit.
func (d FieldDefinition) RatingMax() int {
	if d.Max == nil || *d.Max < 1 || *d.Max != *d.Max {
		return DefaultRatingMax
	}
	if *d.Max > RatingMaxLimit {
		return RatingMaxLimit
	}
	return int(*d.Max)
}

// Form is a published form schema: an ordered list of field definitions
// owned by a tenant and attached to a field node. Field order and types do
// not change after publish.
type Form struct {
	FormID      string            `json:"form_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	FieldID     string            `json:"field_id"`
	OwnerID     string            `json:"owner_id"`
	Fields      []FieldDefinition `json:"fields"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (f *Form) EntityID() string      { return f.FormID }
func (f *Form) SetEntityID(id string) { f.FormID = id }
func (f *Form) TenantID() string      { return f.OwnerID }

// Field returns the definition with the given id.
func (f *Form) Field(id string) (FieldDefinition, bool) {
	for _, d := range f.Fields {
		if d.ID == id {
			return d, true
		}
	}
	return FieldDefinition{}, false
}

// InputFields returns the non-section definitions in order.
func (f *Form) InputFields() []FieldDefinition {
	out := make([]FieldDefinition, 0, len(f.Fields))
	for _, d := range f.Fields {
		if !d.Type.IsSection() {
			out = append(out, d)
		}
	}
	return out
}
