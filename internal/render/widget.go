package render

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Kind is the element family a widget renders as.
type Kind string

// Widget kinds.
const (
	KindInput      Kind = "input"
	KindTextarea   Kind = "textarea"
	KindSelect     Kind = "select"
	KindCheckboxes Kind = "checkboxes"
	KindRadios     Kind = "radios"
	KindCheckbox   Kind = "checkbox"
	KindRating     Kind = "rating"
	KindFile       Kind = "file"
	KindHeading    Kind = "heading"
)

// PhonePattern is the advisory pattern attached to phone inputs.
const PhonePattern = `[0-9+\-\s\(\)]*`

// SelectPlaceholder is the empty first choice of a select widget.
const SelectPlaceholder = "-- Select an option --"

// Widget describes one entry element. Name is the key the value is posted
// under; multiselect widgets use the id[] marker so the validator can group
// repeated values.
type Widget struct {
	ID          string          `json:"id"`
	Type        types.FieldType `json:"type"`
	Kind        Kind            `json:"kind"`
	InputType   string          `json:"input_type,omitempty"`
	Name        string          `json:"name,omitempty"`
	Label       string          `json:"label"`
	Text        string          `json:"text,omitempty"`
	Required    bool            `json:"required,omitempty"`
	Placeholder string          `json:"placeholder,omitempty"`
	Options     []string        `json:"options,omitempty"`
	Min         *float64        `json:"min,omitempty"`
	Max         *float64        `json:"max,omitempty"`
	MinLength   *int            `json:"min_length,omitempty"`
	MaxLength   *int            `json:"max_length,omitempty"`
	Pattern     string          `json:"pattern,omitempty"`
	Accept      string          `json:"accept,omitempty"`
	Hint        string          `json:"hint,omitempty"`
	Value       any             `json:"value,omitempty"`
}

// WidgetFunc builds the widget for one definition.
type WidgetFunc func(d types.FieldDefinition) Widget

// DisplayFunc formats a stored value. It is only called for values that
// are present and non-empty, except for checkboxes.
type DisplayFunc func(d types.FieldDefinition, v any) string

var (
	tableMu  sync.RWMutex
	widgets  = map[types.FieldType]WidgetFunc{}
	displays = map[types.FieldType]DisplayFunc{}
)

// Register installs the widget and display behaviour for a field type.
// Either function may be nil to keep the text fallback.
func Register(t types.FieldType, w WidgetFunc, d DisplayFunc) {
	tableMu.Lock()
	defer tableMu.Unlock()
	if w != nil {
		widgets[t] = w
	}
	if d != nil {
		displays[t] = d
	}
}

func widgetFor(t types.FieldType) WidgetFunc {
	tableMu.RLock()
	defer tableMu.RUnlock()
	if w, ok := widgets[t]; ok {
		return w
	}
	return widgets[types.FieldText]
}

func displayFor(t types.FieldType) DisplayFunc {
	tableMu.RLock()
	defer tableMu.RUnlock()
	if d, ok := displays[t]; ok {
		return d
	}
	return displays[types.FieldText]
}

func init() {
	Register(types.FieldText, inputWidget("text", ""), displayPlain)
	Register(types.FieldEmail, inputWidget("email", "Must be a valid email address"), nil)
	Register(types.FieldPhone, phoneWidget, nil)
	Register(types.FieldNumber, numberWidget, nil)
	Register(types.FieldDate, inputWidget("date", ""), nil)
	Register(types.FieldTime, inputWidget("time", ""), nil)
	Register(types.FieldTextarea, textareaWidget, nil)
	Register(types.FieldSelect, selectWidget, nil)
	Register(types.FieldMultiselect, multiselectWidget, displayPlain)
	Register(types.FieldRadio, radioWidget, nil)
	Register(types.FieldCheckbox, checkboxWidget, displayCheckbox)
	Register(types.FieldRating, ratingWidget, displayRating)
	Register(types.FieldFile, fileWidget, displayPlain)
	Register(types.FieldSection, sectionWidget, nil)
}

func baseWidget(d types.FieldDefinition, kind Kind) Widget {
	return Widget{
		ID:       d.ID,
		Type:     d.Type,
		Kind:     kind,
		Name:     d.ID,
		Label:    d.Label,
		Required: d.Required,
	}
}

func inputWidget(inputType, hint string) WidgetFunc {
	return func(d types.FieldDefinition) Widget {
		w := baseWidget(d, KindInput)
		w.InputType = inputType
		if inputType != "date" && inputType != "time" {
			w.Placeholder = d.Placeholder
		}
		w.Hint = hint
		return w
	}
}

func phoneWidget(d types.FieldDefinition) Widget {
	w := inputWidget("tel", "")(d)
	w.Pattern = PhonePattern
	return w
}

func numberWidget(d types.FieldDefinition) Widget {
	w := inputWidget("number", "")(d)
	w.Min, w.Max = d.Clone().Min, d.Clone().Max
	var parts []string
	if d.Min != nil {
		parts = append(parts, "Min: "+formatNumber(*d.Min))
	}
	if d.Max != nil {
		parts = append(parts, "Max: "+formatNumber(*d.Max))
	}
	w.Hint = strings.Join(parts, " • ")
	return w
}

func textareaWidget(d types.FieldDefinition) Widget {
	w := baseWidget(d, KindTextarea)
	w.Placeholder = d.Placeholder
	c := d.Clone()
	w.MinLength, w.MaxLength = c.MinLength, c.MaxLength
	var parts []string
	if d.MinLength != nil && *d.MinLength > 0 {
		parts = append(parts, fmt.Sprintf("Min: %d characters", *d.MinLength))
	}
	if d.MaxLength != nil && *d.MaxLength > 0 {
		parts = append(parts, fmt.Sprintf("Max: %d characters", *d.MaxLength))
	}
	w.Hint = strings.Join(parts, " • ")
	return w
}

func selectWidget(d types.FieldDefinition) Widget {
	w := baseWidget(d, KindSelect)
	w.Placeholder = SelectPlaceholder
	w.Options = d.Clone().Options
	return w
}

func multiselectWidget(d types.FieldDefinition) Widget {
	w := baseWidget(d, KindCheckboxes)
	w.Name = d.ID + "[]"
	w.Options = d.Clone().Options
	w.Hint = "Select all that apply"
	return w
}

func radioWidget(d types.FieldDefinition) Widget {
	w := baseWidget(d, KindRadios)
	w.Options = d.Clone().Options
	return w
}

func checkboxWidget(d types.FieldDefinition) Widget {
	return baseWidget(d, KindCheckbox)
}

func ratingWidget(d types.FieldDefinition) Widget {
	w := baseWidget(d, KindRating)
	n := d.RatingMax()
	lo, hi := 1.0, float64(n)
	w.Min, w.Max = &lo, &hi
	w.Options = make([]string, n)
	for i := range n {
		w.Options[i] = strconv.Itoa(i + 1)
	}
	w.Hint = fmt.Sprintf("Rate from 1 to %d", n)
	return w
}

func fileWidget(d types.FieldDefinition) Widget {
	w := baseWidget(d, KindFile)
	w.InputType = "file"
	w.Accept = d.Accept
	if d.Accept != "" {
		w.Hint = "Accepted: " + d.Accept
	}
	return w
}

func sectionWidget(d types.FieldDefinition) Widget {
	return Widget{ID: d.ID, Type: d.Type, Kind: KindHeading, Label: d.Label, Text: d.SectionText}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
