package render

import (
	"strconv"
	"strings"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Display glyphs.
const (
	Missing    = "-"
	CheckedYes = "✓ Yes"
	CheckedNo  = "✗ No"
	StarFull   = "⭐"
	StarEmpty  = "☆"
)

// Row is one line of a read-only submission view. Heading rows come from
// section fields and carry no value.
type Row struct {
	ID      string          `json:"id"`
	Type    types.FieldType `json:"type"`
	Label   string          `json:"label"`
	Value   string          `json:"value,omitempty"`
	Heading bool            `json:"heading,omitempty"`
	Text    string          `json:"text,omitempty"`
}

// Display returns label/value rows for data in form order.
func Display(form *types.Form, data map[string]any) []Row {
	out := make([]Row, 0, len(form.Fields))
	for _, d := range form.Fields {
		if d.Type.IsSection() {
			out = append(out, Row{ID: d.ID, Type: d.Type, Label: d.Label, Heading: true, Text: d.SectionText})
			continue
		}
		out = append(out, Row{ID: d.ID, Type: d.Type, Label: d.Label, Value: DisplayValue(d, data[d.ID])})
	}
	return out
}

// DisplayValue formats a single stored value for d.
func DisplayValue(d types.FieldDefinition, v any) string {
	if d.Type != types.FieldCheckbox && isEmpty(v) {
		return Missing
	}
	return displayFor(d.Type)(d, v)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

func displayPlain(_ types.FieldDefinition, v any) string {
	return types.ValueString(v)
}

func displayCheckbox(_ types.FieldDefinition, v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return CheckedYes
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "on", "true":
			return CheckedYes
		}
	}
	return CheckedNo
}

func displayRating(d types.FieldDefinition, v any) string {
	limit := d.RatingMax()
	n := 0
	switch x := v.(type) {
	case float64:
		n = int(x)
	case int:
		n = x
	case string:
		n, _ = strconv.Atoi(strings.TrimSpace(x))
	}
	n = min(max(n, 0), limit)
	return strings.Repeat(StarFull, n) + strings.Repeat(StarEmpty, limit-n) +
		" (" + strconv.Itoa(n) + "/" + strconv.Itoa(limit) + ")"
}
