package render

import (
	"slices"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Entry returns one widget per field definition, in form order. prefill
// supplies existing values, typically from a draft, keyed by field ID.
// Unknown field types render as plain text inputs.
func Entry(form *types.Form, prefill map[string]any) []Widget {
	out := make([]Widget, 0, len(form.Fields))
	for _, d := range form.Fields {
		w := widgetFor(d.Type)(d)
		if v, ok := prefill[d.ID]; ok && !d.Type.IsSection() {
			w.Value = copyValue(v)
		}
		out = append(out, w)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case []any:
		return slices.Clone(x)
	case []string:
		return slices.Clone(x)
	}
	return v
}
