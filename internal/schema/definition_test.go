package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

func TestTemplates(t *testing.T) {
	assert.Equal(t, []string{"contact", "feedback", "registration", "survey"}, TemplateNames())

	b, err := Template("registration")
	require.NoError(t, err)
	fields := b.Fields()
	require.Len(t, fields, 8)
	assert.Equal(t, types.FieldSection, fields[0].Type)
	assert.Equal(t, "I agree to terms and conditions", fields[6].Label)
	assert.True(t, fields[6].Required)
	for _, f := range fields {
		assert.NotEmpty(t, f.ID)
	}

	fb, err := Template("feedback")
	require.NoError(t, err)
	assert.Equal(t, 20, *fb.Fields()[3].MinLength)
	assert.Equal(t, ".jpg,.jpeg,.png", fb.Fields()[4].Accept)

	_, err = Template("nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestImportDefinition(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		data    string
		wantLen int
		wantErr bool
	}{
		{
			name:   "json",
			format: FormatJSON,
			data: `{"name":"Visit","fields":[
				{"type":"text","label":"Name","required":true},
				{"type":"select","label":"Kind","options":["A","B"]},
				{"type":"textarea","label":"Notes","min_length":5}]}`,
			wantLen: 3,
		},
		{
			name:   "yaml",
			format: FormatYAML,
			data: `name: Visit
fields:
  - type: rating
    label: Score
    max: 10
`,
			wantLen: 1,
		},
		{name: "unknown type", format: FormatJSON, data: `{"name":"x","fields":[{"type":"signature","label":"S"}]}`, wantErr: true},
		{name: "unknown key", format: FormatJSON, data: `{"name":"x","fields":[{"type":"text","label":"S","colour":"red"}]}`, wantErr: true},
		{name: "missing name", format: FormatJSON, data: `{"fields":[]}`, wantErr: true},
		{name: "negative length", format: FormatYAML, data: "name: x\nfields:\n  - type: textarea\n    label: T\n    max_length: -1\n", wantErr: true},
		{name: "malformed", format: FormatJSON, data: `{"name":`, wantErr: true},
		{name: "duplicate ids", format: FormatJSON, data: `{"name":"x","fields":[{"id":"a","type":"text","label":"A"},{"id":"a","type":"text","label":"B"}]}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, def, err := ImportDefinition([]byte(tt.data), tt.format)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrInvalidData)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Visit", def.Name)
			assert.Equal(t, tt.wantLen, b.Len())
		})
	}
}

func TestImportUnsupportedFormat(t *testing.T) {
	_, _, err := ImportDefinition([]byte("x"), "toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExportStructureImportsBack(t *testing.T) {
	b, err := Template("survey")
	require.NoError(t, err)
	form, err := b.Publish(PublishRequest{Name: "Customer survey", FieldID: "n1"}, nil)
	require.NoError(t, err)

	data, err := ExportStructure(form)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "form_id")

	back, def, err := ImportDefinition(data, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "Customer survey", def.Name)
	assert.Equal(t, form.Fields, back.Fields())

	assert.Equal(t, "form_Customer_survey_structure.json", StructureFilename(form))
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("a/b.YML"))
	assert.Equal(t, FormatYAML, FormatFromPath("def.yaml"))
	assert.Equal(t, FormatJSON, FormatFromPath("def.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("def"))
}
