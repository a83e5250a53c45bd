package schema

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Field properties accepted by SetFieldProperty.
const (
	PropLabel       = "label"
	PropRequired    = "required"
	PropPlaceholder = "placeholder"
	PropOptions     = "options"
	PropMin         = "min"
	PropMax         = "max"
	PropMinLength   = "minLength"
	PropMaxLength   = "maxLength"
	PropAccept      = "accept"
	PropSectionText = "sectionText"
)

// Builder holds the working field list of a form that has not been
// published yet. It is not safe for concurrent use.
type Builder struct {
	fields   []types.FieldDefinition
	registry *Registry
	newID    func() string
}

// NewBuilder returns an empty builder backed by DefaultRegistry.
func NewBuilder() *Builder {
	return NewBuilderWithRegistry(DefaultRegistry)
}

// NewBuilderWithRegistry returns an empty builder backed by r.
func NewBuilderWithRegistry(r *Registry) *Builder {
	return &Builder{registry: r, newID: newFieldID}
}

// BuilderFromFields returns a builder whose working list is a deep copy of
// fields. Missing IDs are filled in.
func BuilderFromFields(fields []types.FieldDefinition) *Builder {
	b := NewBuilder()
	for _, f := range fields {
		c := f.Clone()
		if c.ID == "" {
			c.ID = b.newID()
		}
		b.fields = append(b.fields, c)
	}
	return b
}

func newFieldID() string {
	return "field_" + uuid.Must(uuid.NewV7()).String()
}

// Len returns the number of fields in the working list.
func (b *Builder) Len() int { return len(b.fields) }

// Fields returns a deep copy of the working list.
func (b *Builder) Fields() []types.FieldDefinition {
	out := make([]types.FieldDefinition, len(b.fields))
	for i, f := range b.fields {
		out[i] = f.Clone()
	}
	return out
}

// Field returns a copy of the field at index i.
func (b *Builder) Field(i int) (types.FieldDefinition, error) {
	if err := b.check(i); err != nil {
		return types.FieldDefinition{}, err
	}
	return b.fields[i].Clone(), nil
}

func (b *Builder) check(i int) error {
	if i < 0 || i >= len(b.fields) {
		return fmt.Errorf("%w: %d (have %d fields)", types.ErrInvalidIndex, i, len(b.fields))
	}
	return nil
}

// AddField appends a field of type t with the type's defaults and returns a
// copy of it.
func (b *Builder) AddField(t types.FieldType) (types.FieldDefinition, error) {
	if !b.registry.Known(t) {
		return types.FieldDefinition{}, fmt.Errorf("%w: %q", types.ErrUnknownFieldType, t)
	}
	d := types.FieldDefinition{ID: b.newID(), Type: t}
	b.registry.Lookup(t).Defaults(&d)
	b.fields = append(b.fields, d)
	return d.Clone(), nil
}

// RemoveField deletes the field at index i.
func (b *Builder) RemoveField(i int) error {
	if err := b.check(i); err != nil {
		return err
	}
	b.fields = slices.Delete(b.fields, i, i+1)
	return nil
}

// MoveFieldUp swaps the field at i with its predecessor. Moving the first
// field is a no-op.
func (b *Builder) MoveFieldUp(i int) error {
	if err := b.check(i); err != nil {
		return err
	}
	if i > 0 {
		b.fields[i-1], b.fields[i] = b.fields[i], b.fields[i-1]
	}
	return nil
}

// MoveFieldDown swaps the field at i with its successor. Moving the last
// field is a no-op.
func (b *Builder) MoveFieldDown(i int) error {
	if err := b.check(i); err != nil {
		return err
	}
	if i < len(b.fields)-1 {
		b.fields[i], b.fields[i+1] = b.fields[i+1], b.fields[i]
	}
	return nil
}

// DuplicateField inserts a copy of the field at i directly after it, with a
// fresh ID and " (Copy)" appended to the label.
func (b *Builder) DuplicateField(i int) (types.FieldDefinition, error) {
	if err := b.check(i); err != nil {
		return types.FieldDefinition{}, err
	}
	d := b.fields[i].Clone()
	d.ID = b.newID()
	d.Label += " (Copy)"
	b.fields = slices.Insert(b.fields, i+1, d)
	return d.Clone(), nil
}

// SetFieldProperty sets one property of the field at i. Cross-field rules
// are left to Publish. Empty strings clear numeric bounds. A rejected value
// leaves the field unchanged.
func (b *Builder) SetFieldProperty(i int, prop string, value any) error {
	if err := b.check(i); err != nil {
		return err
	}
	d := b.fields[i].Clone()
	var err error
	switch canonicalProp(prop) {
	case PropLabel:
		d.Label, err = asString(value)
	case PropRequired:
		d.Required, err = asBool(value)
	case PropPlaceholder:
		d.Placeholder, err = asString(value)
	case PropOptions:
		d.Options, err = asOptions(value)
	case PropMin:
		d.Min, err = asFloatPtr(value)
	case PropMax:
		d.Max, err = asFloatPtr(value)
	case PropMinLength:
		d.MinLength, err = asIntPtr(value)
	case PropMaxLength:
		d.MaxLength, err = asIntPtr(value)
	case PropAccept:
		d.Accept, err = asString(value)
	case PropSectionText:
		d.SectionText, err = asString(value)
	default:
		return fmt.Errorf("%w: %q", types.ErrUnknownProperty, prop)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", prop, err)
	}
	b.fields[i] = d
	return nil
}

// AddOption appends "Option N" to the options of the choice field at i.
func (b *Builder) AddOption(i int) error {
	d, err := b.choiceField(i)
	if err != nil {
		return err
	}
	d.Options = append(d.Options, "Option "+strconv.Itoa(len(d.Options)+1))
	return nil
}

// RemoveOption deletes option j of the choice field at i. It leaves the list
// untouched when only one option remains.
func (b *Builder) RemoveOption(i, j int) error {
	d, err := b.choiceField(i)
	if err != nil {
		return err
	}
	if j < 0 || j >= len(d.Options) {
		return fmt.Errorf("%w: option %d", types.ErrInvalidIndex, j)
	}
	if len(d.Options) <= 1 {
		return nil
	}
	d.Options = slices.Delete(d.Options, j, j+1)
	return nil
}

// UpdateOption replaces option j of the choice field at i with the trimmed
// value.
func (b *Builder) UpdateOption(i, j int, value string) error {
	d, err := b.choiceField(i)
	if err != nil {
		return err
	}
	if j < 0 || j >= len(d.Options) {
		return fmt.Errorf("%w: option %d", types.ErrInvalidIndex, j)
	}
	d.Options[j] = strings.TrimSpace(value)
	return nil
}

func (b *Builder) choiceField(i int) (*types.FieldDefinition, error) {
	if err := b.check(i); err != nil {
		return nil, err
	}
	d := &b.fields[i]
	if !d.Type.IsChoice() {
		return nil, fmt.Errorf("%w: %s field has no options", types.ErrInvalidValue, d.Type)
	}
	return d, nil
}

func canonicalProp(p string) string {
	switch strings.ToLower(strings.ReplaceAll(p, "_", "")) {
	case "label":
		return PropLabel
	case "required":
		return PropRequired
	case "placeholder":
		return PropPlaceholder
	case "options":
		return PropOptions
	case "min":
		return PropMin
	case "max", "maxvalue":
		return PropMax
	case "minlength":
		return PropMinLength
	case "maxlength":
		return PropMaxLength
	case "accept":
		return PropAccept
	case "sectiontext":
		return PropSectionText
	}
	return p
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("%w: want string, got %T", types.ErrInvalidValue, v)
}

func asBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("%w: %q", types.ErrInvalidValue, x)
		}
		return b, nil
	}
	return false, fmt.Errorf("%w: want bool, got %T", types.ErrInvalidValue, v)
}

// asOptions accepts a slice or a comma-separated string. Blank entries from
// a string are dropped.
func asOptions(v any) ([]string, error) {
	switch x := v.(type) {
	case []string:
		return slices.Clone(x), nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: option %v is not a string", types.ErrInvalidValue, e)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		var out []string
		for _, part := range strings.Split(x, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: want options list, got %T", types.ErrInvalidValue, v)
}

func asFloatPtr(v any) (*float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", types.ErrInvalidValue, x)
		}
		f = p
	default:
		return nil, fmt.Errorf("%w: want number, got %T", types.ErrInvalidValue, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v is not a finite number", types.ErrInvalidValue, v)
	}
	return &f, nil
}

func asIntPtr(v any) (*int, error) {
	f, err := asFloatPtr(v)
	if err != nil || f == nil {
		return nil, err
	}
	if *f < 0 || *f != float64(int(*f)) {
		return nil, fmt.Errorf("%w: %v is not a non-negative integer", types.ErrInvalidValue, *f)
	}
	n := int(*f)
	return &n, nil
}
