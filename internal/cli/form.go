package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldforms/internal/app"
	"github.com/mesh-intelligence/fieldforms/internal/render"
	"github.com/mesh-intelligence/fieldforms/internal/schema"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

func (r *runner) newFormCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "form",
		Aliases: []string{"forms"},
		Short:   "Build, publish and inspect forms",
	}
	cmd.AddCommand(
		r.newFormTemplatesCmd(),
		r.newFormBuildCmd(),
		r.newFormShowCmd(),
		r.newFormRenderCmd(),
		r.newFormListCmd(),
		r.newFormDeleteCmd(),
		r.newFormExportStructureCmd(),
	)
	return cmd
}

func (r *runner) newFormTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the built-in form templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := schema.TemplateNames()
			if r.flags.jsonMode {
				return printJSON(r.out(cmd), names)
			}
			t := newTable(r.out(cmd), "TEMPLATE", "FIELDS")
			for _, name := range names {
				b, err := schema.Template(name)
				if err != nil {
					return err
				}
				t.row(name, fmt.Sprint(b.Len()))
			}
			return t.flush()
		},
	}
}

// buildFlags describe where a form's fields come from.
type buildFlags struct {
	template    string
	file        string
	add         []string
	name        string
	description string
	fieldID     string
}

func (r *runner) newFormBuildCmd() *cobra.Command {
	var bf buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a form and publish it to a field",
		Long: "Build a form from a template, a JSON or YAML definition file, or --add\n" +
			"entries of the form type:Label (append ! to make the field required),\n" +
			"then publish it to the field given by --field.",
		Example: `  fieldforms form build --template contact --name "Site contact" --field <id>
  fieldforms form build --file survey.yaml --field <id>
  fieldforms form build --name Visit --field <id> --add "date:Visit date!" --add "rating:Score"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, def, err := bf.builder()
			if err != nil {
				return err
			}
			req := schema.PublishRequest{Name: bf.name, Description: bf.description, FieldID: bf.fieldID}
			if req.Name == "" {
				req.Name = def.Name
			}
			if req.Description == "" {
				req.Description = def.Description
			}
			return r.withApp(func(a *app.App) error {
				form, err := a.Forms.Publish(cmd.Context(), r.adminSession(), b, req)
				if err != nil {
					return err
				}
				if r.flags.jsonMode {
					return printJSON(r.out(cmd), form)
				}
				fmt.Fprintf(r.out(cmd), "published form %s (%s) with %d fields\n", form.FormID, form.Name, len(form.Fields))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&bf.template, "template", "", "start from a built-in template")
	f.StringVar(&bf.file, "file", "", "definition file (.json, .yaml or .yml)")
	f.StringArrayVar(&bf.add, "add", nil, "append a field as type:Label, ! suffix for required")
	f.StringVar(&bf.name, "name", "", "form name")
	f.StringVar(&bf.description, "description", "", "form description")
	f.StringVar(&bf.fieldID, "field", "", "field ID to publish to")
	cmd.MarkFlagsMutuallyExclusive("template", "file")
	return cmd
}

// builder assembles the builder named by the flags. A definition file
// also supplies a default name and description.
func (bf buildFlags) builder() (*schema.Builder, schema.Definition, error) {
	var (
		b   *schema.Builder
		def schema.Definition
		err error
	)
	switch {
	case bf.template != "":
		b, err = schema.Template(bf.template)
	case bf.file != "":
		var data []byte
		if data, err = os.ReadFile(bf.file); err != nil {
			return nil, def, fmt.Errorf("read definition: %w", err)
		}
		b, def, err = schema.ImportDefinition(data, schema.FormatFromPath(bf.file))
	case len(bf.add) == 0:
		return nil, def, usageError("pass --template, --file or at least one --add")
	default:
		b = schema.NewBuilder()
	}
	if err != nil {
		return nil, def, err
	}
	for _, spec := range bf.add {
		if err := addField(b, spec); err != nil {
			return nil, def, err
		}
	}
	return b, def, nil
}

// addField appends one "type:Label" entry to b.
func addField(b *schema.Builder, spec string) error {
	typ, label, _ := strings.Cut(spec, ":")
	required := strings.HasSuffix(label, "!")
	label = strings.TrimSuffix(label, "!")

	if _, err := b.AddField(types.FieldType(strings.ToLower(strings.TrimSpace(typ)))); err != nil {
		return usageError("--add %q: %v", spec, err)
	}
	i := b.Len() - 1
	if label = strings.TrimSpace(label); label != "" {
		if err := b.SetFieldProperty(i, schema.PropLabel, label); err != nil {
			return err
		}
	}
	if required {
		return b.SetFieldProperty(i, schema.PropRequired, true)
	}
	return nil
}

func (r *runner) newFormShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a form and its field definitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				form, err := a.Forms.Get(cmd.Context(), r.adminSession(), args[0])
				if err != nil {
					return err
				}
				if r.flags.jsonMode {
					return printJSON(r.out(cmd), form)
				}
				w := r.out(cmd)
				fmt.Fprintf(w, "ID:          %s\nName:        %s\nDescription: %s\nField:       %s\nCreated:     %s\n\n",
					form.FormID, form.Name, orDash(form.Description), form.FieldID, formatTime(form.CreatedAt))
				t := newTable(w, "#", "ID", "TYPE", "LABEL", "REQUIRED")
				for i, d := range form.Fields {
					req := ""
					if d.Required {
						req = "yes"
					}
					t.row(fmt.Sprint(i+1), d.ID, string(d.Type), d.Label, req)
				}
				return t.flush()
			})
		},
	}
}

func (r *runner) newFormRenderCmd() *cobra.Command {
	var asHTML bool
	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render a form's entry widgets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				form, err := a.Forms.Get(cmd.Context(), r.adminSession(), args[0])
				if err != nil {
					return err
				}
				widgets := render.Entry(form, nil)
				switch {
				case asHTML:
					return render.WriteHTML(r.out(cmd), widgets)
				case r.flags.jsonMode:
					return printJSON(r.out(cmd), widgets)
				}
				t := newTable(r.out(cmd), "ID", "KIND", "LABEL", "REQUIRED", "OPTIONS")
				for _, wd := range widgets {
					req := ""
					if wd.Required {
						req = "*"
					}
					t.row(wd.ID, string(wd.Kind), wd.Label, req, strings.Join(wd.Options, " | "))
				}
				return t.flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "write an HTML form instead of a table")
	return cmd
}

func (r *runner) newFormListCmd() *cobra.Command {
	var fieldID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(func(a *app.App) error {
				sess := r.adminSession()
				var (
					list []*types.Form
					err  error
				)
				if fieldID != "" {
					list, err = a.Forms.ListByField(cmd.Context(), sess, fieldID)
				} else {
					list, err = a.Forms.List(cmd.Context(), sess)
				}
				if err != nil {
					return err
				}
				if r.flags.jsonMode {
					return printJSON(r.out(cmd), list)
				}
				t := newTable(r.out(cmd), "ID", "NAME", "FIELD", "FIELDS", "CREATED")
				for _, f := range list {
					t.row(f.FormID, f.Name, f.FieldID, fmt.Sprint(len(f.Fields)), formatTime(f.CreatedAt))
				}
				return t.flush()
			})
		},
	}
	cmd.Flags().StringVar(&fieldID, "field", "", "only forms of this field ID")
	return cmd
}

func (r *runner) newFormDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a form and all of its submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				n, err := a.Forms.Delete(cmd.Context(), r.adminSession(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(r.out(cmd), "deleted form %s and %d submissions\n", args[0], n)
				return nil
			})
		},
	}
}

func (r *runner) newFormExportStructureCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export-structure <id>",
		Short: "Write a form's structure as a JSON definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				form, err := a.Forms.Get(cmd.Context(), r.adminSession(), args[0])
				if err != nil {
					return err
				}
				data, err := schema.ExportStructure(form)
				if err != nil {
					return err
				}
				if dir == "-" {
					_, err = r.out(cmd).Write(data)
					return err
				}
				path := filepath.Join(dir, schema.StructureFilename(form))
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("write structure: %w", err)
				}
				fmt.Fprintf(r.out(cmd), "wrote %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "output-dir", "o", ".", "directory to write to, or - for stdout")
	return cmd
}
