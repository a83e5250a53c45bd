package schema

import (
	"slices"
	"strings"
	"sync"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// TypeSpec describes how one field type behaves inside the builder and the
// submission validator. Defaults seeds a newly added field, Normalize keeps
// only the attributes meaningful to the type at publish time, and Present
// reports whether posted values satisfy a required field of this type.
type TypeSpec struct {
	Type      types.FieldType
	Defaults  func(d *types.FieldDefinition)
	Normalize func(d types.FieldDefinition) types.FieldDefinition
	Present   func(values []string) bool
}

// Registry maps field types to their TypeSpec. Lookups of unknown types
// resolve to the text spec.
type Registry struct {
	mu    sync.RWMutex
	specs map[types.FieldType]TypeSpec
}

// DefaultRegistry holds the built-in field types.
var DefaultRegistry = NewRegistry()

// NewRegistry returns a registry populated with every built-in type.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[types.FieldType]TypeSpec)}
	for _, spec := range builtinSpecs() {
		r.Register(spec)
	}
	return r
}

// Register adds or replaces the spec for spec.Type. Nil hooks fall back to
// the text behaviour.
func (r *Registry) Register(spec TypeSpec) {
	if spec.Defaults == nil {
		spec.Defaults = func(*types.FieldDefinition) {}
	}
	if spec.Normalize == nil {
		spec.Normalize = normalizeText
	}
	if spec.Present == nil {
		spec.Present = presentNonBlank
	}
	r.mu.Lock()
	r.specs[spec.Type] = spec
	r.mu.Unlock()
}

// Known reports whether t has a registered spec.
func (r *Registry) Known(t types.FieldType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.specs[t]
	return ok
}

// Lookup returns the spec for t, or the text spec when t is not registered.
func (r *Registry) Lookup(t types.FieldType) TypeSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if spec, ok := r.specs[t]; ok {
		return spec
	}
	return r.specs[types.FieldText]
}

func builtinSpecs() []TypeSpec {
	specs := []TypeSpec{
		{Type: types.FieldText},
		{Type: types.FieldEmail},
		{Type: types.FieldPhone},
		{Type: types.FieldDate, Normalize: normalizeBare},
		{Type: types.FieldTime, Normalize: normalizeBare},
		{Type: types.FieldNumber, Normalize: normalizeNumber},
		{Type: types.FieldTextarea, Normalize: normalizeTextarea},
		{Type: types.FieldCheckbox, Normalize: normalizeBare, Present: presentChecked},
		{Type: types.FieldRating, Defaults: defaultRating, Normalize: normalizeRating},
		{Type: types.FieldFile, Normalize: normalizeFile},
		{Type: types.FieldSection, Normalize: normalizeSection, Present: func([]string) bool { return true }},
		{Type: types.FieldSelect, Defaults: defaultOptions, Normalize: normalizeChoice},
		{Type: types.FieldRadio, Defaults: defaultOptions, Normalize: normalizeChoice, Present: presentExactlyOne},
		{Type: types.FieldMultiselect, Defaults: defaultOptions, Normalize: normalizeChoice, Present: presentAny},
	}
	return specs
}

func defaultOptions(d *types.FieldDefinition) { d.Options = []string{"Option 1"} }

func defaultRating(d *types.FieldDefinition) {
	m := float64(types.DefaultRatingMax)
	d.Max = &m
}

func base(d types.FieldDefinition) types.FieldDefinition {
	return types.FieldDefinition{ID: d.ID, Type: d.Type, Label: d.Label, Required: d.Required}
}

func normalizeBare(d types.FieldDefinition) types.FieldDefinition { return base(d) }

func normalizeText(d types.FieldDefinition) types.FieldDefinition {
	out := base(d)
	out.Placeholder = d.Placeholder
	return out
}

func normalizeNumber(d types.FieldDefinition) types.FieldDefinition {
	out := normalizeText(d)
	c := d.Clone()
	out.Min, out.Max = c.Min, c.Max
	return out
}

func normalizeTextarea(d types.FieldDefinition) types.FieldDefinition {
	out := normalizeText(d)
	c := d.Clone()
	out.MinLength, out.MaxLength = c.MinLength, c.MaxLength
	return out
}

func normalizeRating(d types.FieldDefinition) types.FieldDefinition {
	out := base(d)
	m := float64(d.RatingMax())
	out.Max = &m
	return out
}

func normalizeFile(d types.FieldDefinition) types.FieldDefinition {
	out := base(d)
	out.Accept = strings.TrimSpace(d.Accept)
	return out
}

func normalizeSection(d types.FieldDefinition) types.FieldDefinition {
	out := base(d)
	out.Required = false
	out.SectionText = d.SectionText
	return out
}

func normalizeChoice(d types.FieldDefinition) types.FieldDefinition {
	out := base(d)
	out.Options = nonBlank(d.Options)
	return out
}

// nonBlank returns the options whose trimmed value is non-empty, keeping the
// original spelling.
func nonBlank(opts []string) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		if strings.TrimSpace(o) != "" {
			out = append(out, o)
		}
	}
	return out
}

func presentNonBlank(values []string) bool {
	return len(values) > 0 && strings.TrimSpace(values[0]) != ""
}

func presentAny(values []string) bool {
	return slices.ContainsFunc(values, func(v string) bool { return strings.TrimSpace(v) != "" })
}

func presentExactlyOne(values []string) bool {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n == 1
}

func presentChecked(values []string) bool {
	return slices.ContainsFunc(values, IsChecked)
}

// IsChecked reports whether a posted checkbox value means "checked".
func IsChecked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
