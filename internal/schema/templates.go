package schema

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// ErrUnknownTemplate is returned by Template for names without a file.
var ErrUnknownTemplate = fmt.Errorf("%w: unknown template", types.ErrNotFound)

// TemplateNames lists the built-in starter templates.
func TemplateNames() []string {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Template returns a builder preloaded with the named starter template.
// Every field gets a fresh ID.
func Template(name string) (*Builder, error) {
	data, err := templateFS.ReadFile("templates/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	b, _, err := ImportDefinition(data, FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return b, nil
}
