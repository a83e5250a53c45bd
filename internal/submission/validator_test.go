package submission

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

func fptr(f float64) *float64 { return &f }

func nameScoreForm() *types.Form {
	return &types.Form{FormID: "form-1", OwnerID: "t1", FieldID: "n1", Fields: []types.FieldDefinition{
		{ID: "f1", Type: types.FieldText, Label: "Name", Required: true},
		{ID: "f2", Type: types.FieldRating, Label: "Score", Max: fptr(5)},
	}}
}

func TestRequiredTextMissing(t *testing.T) {
	_, err := Validate(nameScoreForm(), RawInput{"f1": {""}}, false)

	var missing *types.MissingRequiredFieldError
	require.ErrorAs(t, err, &missing)
	assert.ErrorIs(t, err, types.ErrMissingRequiredField)
	assert.Equal(t, "f1", missing.First())
}

func TestValidSubmissionNormalized(t *testing.T) {
	data, err := Validate(nameScoreForm(), RawInput{"f1": {"Alice"}, "f2": {"3"}}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"f1": "Alice", "f2": "3"}, data)
}

func TestMultiselectGrouping(t *testing.T) {
	form := &types.Form{Fields: []types.FieldDefinition{
		{ID: "f3", Type: types.FieldMultiselect, Label: "Tags", Options: []string{"A", "B"}},
	}}
	data, err := Validate(form, RawInput{"f3[]": {"A", "B"}}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"f3": []any{"A", "B"}}, data)

	single, err := Validate(form, FromJSON(map[string]any{"f3": []any{"B"}}), false)
	require.NoError(t, err)
	assert.Equal(t, []any{"B"}, single["f3"], "one selection is still a list")
}

func TestCheckboxFilledWithFalse(t *testing.T) {
	optional := &types.Form{Fields: []types.FieldDefinition{
		{ID: "f4", Type: types.FieldCheckbox, Label: "Agree"},
	}}
	data, err := Validate(optional, RawInput{}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"f4": "false"}, data)

	data, err = Validate(optional, RawInput{"f4": {"on"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "true", data["f4"])

	required := &types.Form{Fields: []types.FieldDefinition{
		{ID: "f4", Type: types.FieldCheckbox, Label: "Agree", Required: true},
	}}
	_, err = Validate(required, RawInput{}, false)
	var missing *types.MissingRequiredFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"f4"}, missing.FieldIDs)
}

func TestRequiredPerType(t *testing.T) {
	tests := []struct {
		name   string
		def    types.FieldDefinition
		empty  RawInput
		filled RawInput
	}{
		{
			name:   "text",
			def:    types.FieldDefinition{ID: "x", Type: types.FieldText},
			empty:  RawInput{"x": {"   "}},
			filled: RawInput{"x": {"hi"}},
		},
		{
			name:   "number",
			def:    types.FieldDefinition{ID: "x", Type: types.FieldNumber},
			empty:  RawInput{},
			filled: RawInput{"x": {"0"}},
		},
		{
			name:   "checkbox",
			def:    types.FieldDefinition{ID: "x", Type: types.FieldCheckbox},
			empty:  RawInput{"x": {"false"}},
			filled: RawInput{"x": {"true"}},
		},
		{
			name:   "radio",
			def:    types.FieldDefinition{ID: "x", Type: types.FieldRadio, Options: []string{"A", "B"}},
			empty:  RawInput{"x": {"A", "B"}},
			filled: RawInput{"x": {"B"}},
		},
		{
			name:   "multiselect",
			def:    types.FieldDefinition{ID: "x", Type: types.FieldMultiselect, Options: []string{"A"}},
			empty:  RawInput{"x[]": {""}},
			filled: RawInput{"x[]": {"A"}},
		},
		{
			name:   "select",
			def:    types.FieldDefinition{ID: "x", Type: types.FieldSelect, Options: []string{"A"}},
			empty:  RawInput{"x": {""}},
			filled: RawInput{"x": {"A"}},
		},
		{
			name:   "unknown type behaves as text",
			def:    types.FieldDefinition{ID: "x", Type: "signature"},
			empty:  RawInput{},
			filled: RawInput{"x": {"scribble"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.def
			d.Label, d.Required = "X", true
			form := &types.Form{Fields: []types.FieldDefinition{d}}

			_, err := Validate(form, tt.empty, false)
			assert.ErrorIs(t, err, types.ErrMissingRequiredField)

			_, err = Validate(form, tt.filled, false)
			assert.NoError(t, err)
		})
	}
}

func TestAllFailuresReportedInOrder(t *testing.T) {
	form := &types.Form{Fields: []types.FieldDefinition{
		{ID: "s", Type: types.FieldSection, Label: "Intro", Required: true},
		{ID: "b", Type: types.FieldText, Label: "B", Required: true},
		{ID: "a", Type: types.FieldEmail, Label: "A", Required: true},
		{ID: "c", Type: types.FieldText, Label: "C"},
	}}
	_, err := Validate(form, RawInput{}, false)
	var missing *types.MissingRequiredFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"b", "a"}, missing.FieldIDs)
}

func TestDraftsNeverFail(t *testing.T) {
	form := &types.Form{Fields: []types.FieldDefinition{
		{ID: "f1", Type: types.FieldText, Label: "Name", Required: true},
		{ID: "f2", Type: types.FieldCheckbox, Label: "Agree", Required: true},
		{ID: "f3", Type: types.FieldMultiselect, Label: "Tags", Required: true, Options: []string{"A"}},
		{ID: "f4", Type: types.FieldRadio, Label: "Pick", Required: true, Options: []string{"A"}},
	}}
	inputs := []RawInput{
		nil,
		{},
		{"f1": {""}},
		{"f3[]": {"", ""}, "f4": {"A", "A"}},
		{"junk": {"x"}, "f2": {"no"}},
	}
	for _, in := range inputs {
		data, err := Validate(form, in, true)
		assert.NoError(t, err)
		assert.NotNil(t, data)
	}
}

func TestExtraKeysKept(t *testing.T) {
	data, err := Validate(nameScoreForm(), RawInput{"f1": {"Al"}, "gps": {"1,2"}, "tags[]": {"x", "y"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "1,2", data["gps"])
	assert.Equal(t, []any{"x", "y"}, data["tags"])
}

func TestFromJSONAndValues(t *testing.T) {
	raw := FromJSON(map[string]any{
		"a": "x",
		"b": true,
		"c": 3.0,
		"d": []any{"p", "q"},
		"e": nil,
	})
	assert.Equal(t, RawInput{"a": {"x"}, "b": {"true"}, "c": {"3"}, "d": {"p", "q"}}, raw)

	v := url.Values{"f3[]": {"A", "B"}}
	assert.Equal(t, RawInput{"f3[]": {"A", "B"}}, FromValues(v))
}
