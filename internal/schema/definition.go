package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Format names a serialization of a form definition.
type Format string

// Supported definition formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is returned for formats other than JSON and YAML.
var ErrUnsupportedFormat = errors.New("unsupported definition format")

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Definition is the portable structure of a form: what ExportStructure
// writes and ImportDefinition reads.
type Definition struct {
	Name        string                  `json:"name" yaml:"name"`
	Description string                  `json:"description" yaml:"description"`
	Fields      []types.FieldDefinition `json:"fields" yaml:"fields"`
}

// definitionSchema constrains imported definitions. Definitions are closed,
// so unknown keys are rejected.
var definitionSchema = fmt.Sprintf(`
#Field: {
	id?:           string
	type:          %s
	label:         string
	required?:     bool
	placeholder?:  string
	options?:      [...string]
	min?:          number
	max?:          number
	min_length?:   number & >=0
	max_length?:   number & >=0
	accept?:       string
	section_text?: string
}

#Definition: {
	name:         string
	description?: string
	fields: [...#Field]
}
`, typeDisjunction())

func typeDisjunction() string {
	parts := make([]string, len(types.AllFieldTypes))
	for i, t := range types.AllFieldTypes {
		parts[i] = fmt.Sprintf("%q", string(t))
	}
	return strings.Join(parts, " | ")
}

// ExportStructure returns the form's name, description and fields as
// indented JSON.
func ExportStructure(form *types.Form) ([]byte, error) {
	return MarshalDefinition(Definition{
		Name:        form.Name,
		Description: form.Description,
		Fields:      form.Fields,
	}, FormatJSON)
}

// StructureFilename is the download name used for an exported structure.
func StructureFilename(form *types.Form) string {
	return "form_" + strings.Join(strings.Fields(form.Name), "_") + "_structure.json"
}

// MarshalDefinition encodes def in the given format.
func MarshalDefinition(def Definition, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(def, "", "  ")
	case FormatYAML:
		return yaml.Marshal(def)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// ImportDefinition parses data, checks it against the definition schema and
// loads its fields into a new builder. The result still has to be published.
func ImportDefinition(data []byte, format Format) (*Builder, Definition, error) {
	var raw map[string]any
	switch format {
	case FormatJSON, "":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, Definition{}, fmt.Errorf("%w: decode json: %v", types.ErrInvalidData, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, Definition{}, fmt.Errorf("%w: decode yaml: %v", types.ErrInvalidData, err)
		}
	default:
		return nil, Definition{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if err := checkDefinition(raw); err != nil {
		return nil, Definition{}, err
	}

	// Round-trip through JSON so both formats share the json tags.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, Definition{}, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	var def Definition
	if err := json.Unmarshal(buf, &def); err != nil {
		return nil, Definition{}, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if f.ID == "" {
			continue
		}
		if seen[f.ID] {
			return nil, Definition{}, fmt.Errorf("%w: field id %q is used more than once", types.ErrInvalidData, f.ID)
		}
		seen[f.ID] = true
	}
	return BuilderFromFields(def.Fields), def, nil
}

func checkDefinition(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(definitionSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile definition schema: %w", err)
	}
	v := ctx.Encode(raw)
	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Definition")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	return nil
}
