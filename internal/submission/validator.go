package submission

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/fieldforms/internal/schema"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// MultiMarker is the key suffix browsers use for repeated values.
const MultiMarker = "[]"

// RawInput is a posted payload: each key maps to the values sent under it,
// in order, as a browser form post delivers them.
type RawInput map[string][]string

// FromValues converts url.Values.
func FromValues(v url.Values) RawInput {
	out := make(RawInput, len(v))
	for k, vals := range v {
		out[k] = slices.Clone(vals)
	}
	return out
}

// FromJSON converts a decoded JSON object. Arrays become repeated values,
// booleans become "true"/"false", numbers use their shortest form and
// nulls are dropped.
func FromJSON(obj map[string]any) RawInput {
	out := make(RawInput, len(obj))
	for k, v := range obj {
		switch x := v.(type) {
		case nil:
			continue
		case []any:
			vals := make([]string, 0, len(x))
			for _, e := range x {
				if e != nil {
					vals = append(vals, scalarString(e))
				}
			}
			out[k] = vals
		case []string:
			out[k] = slices.Clone(x)
		default:
			out[k] = []string{scalarString(x)}
		}
	}
	return out
}

func scalarString(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return types.ValueString(v)
}

// values returns everything posted for a field, under both the bare ID and
// the multi marker.
func (r RawInput) values(id string) []string {
	return append(slices.Clone(r[id]), r[id+MultiMarker]...)
}

// Validator checks raw input against a form using a type registry.
type Validator struct {
	registry *schema.Registry
}

// NewValidator returns a validator backed by r, or schema.DefaultRegistry
// when r is nil.
func NewValidator(r *schema.Registry) *Validator {
	if r == nil {
		r = schema.DefaultRegistry
	}
	return &Validator{registry: r}
}

var defaultValidator = NewValidator(nil)

// Validate checks raw against form with the default registry.
func Validate(form *types.Form, raw RawInput, isDraft bool) (map[string]any, error) {
	return defaultValidator.Validate(form, raw, isDraft)
}

// Validate returns the normalized data record for raw. Drafts always
// succeed. For a final submission every required non-section field must
// be present; all failing field IDs are returned, in form order, in a
// *types.MissingRequiredFieldError.
func (v *Validator) Validate(form *types.Form, raw RawInput, isDraft bool) (map[string]any, error) {
	if !isDraft {
		var missing []string
		for _, d := range form.Fields {
			if !d.Required || d.Type.IsSection() {
				continue
			}
			if !v.registry.Lookup(d.Type).Present(raw.values(d.ID)) {
				missing = append(missing, d.ID)
			}
		}
		if len(missing) > 0 {
			return nil, &types.MissingRequiredFieldError{FieldIDs: missing}
		}
	}
	return v.normalize(form, raw), nil
}

// normalize groups marker keys into arrays, gives every checkbox an
// explicit "true"/"false", and keeps keys the form does not define.
func (v *Validator) normalize(form *types.Form, raw RawInput) map[string]any {
	data := make(map[string]any, len(raw))
	for k, vals := range raw {
		if id, ok := strings.CutSuffix(k, MultiMarker); ok {
			data[id] = appendAll(data[id], vals)
			continue
		}
		if _, grouped := raw[k+MultiMarker]; grouped {
			data[k] = appendAll(data[k], vals)
			continue
		}
		switch len(vals) {
		case 0:
		case 1:
			data[k] = vals[0]
		default:
			data[k] = toAny(vals)
		}
	}

	for _, d := range form.Fields {
		switch d.Type {
		case types.FieldCheckbox:
			if slices.ContainsFunc(raw.values(d.ID), schema.IsChecked) {
				data[d.ID] = "true"
			} else {
				data[d.ID] = "false"
			}
		case types.FieldMultiselect:
			var picked []any
			for _, s := range raw.values(d.ID) {
				if strings.TrimSpace(s) != "" {
					picked = append(picked, s)
				}
			}
			if picked != nil {
				data[d.ID] = picked
			} else {
				delete(data, d.ID)
			}
		}
	}
	return data
}

func appendAll(existing any, vals []string) []any {
	out, _ := existing.([]any)
	if s, ok := existing.(string); ok {
		out = []any{s}
	}
	return append(out, toAny(vals)...)
}

func toAny(vals []string) []any {
	out := make([]any, len(vals))
	for i, s := range vals {
		out[i] = s
	}
	return out
}
