package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldforms/internal/app"
	"github.com/mesh-intelligence/fieldforms/internal/export"
	"github.com/mesh-intelligence/fieldforms/internal/report"
)

func (r *runner) newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export submissions as CSV or the whole tenant as JSON",
	}
	cmd.AddCommand(r.newExportCSVCmd(), r.newExportJSONCmd())
	return cmd
}

// writeExport writes data to dir/name, or to stdout when dir is "-".
func (r *runner) writeExport(cmd *cobra.Command, dir, name string, data []byte) error {
	if dir == "-" {
		_, err := r.out(cmd).Write(data)
		return err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(r.out(cmd), "wrote %s\n", path)
	return nil
}

func (r *runner) newExportCSVCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "csv <form-id>",
		Short: "Export a form's submissions as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				var buf bytes.Buffer
				name, err := a.Export.FormCSV(cmd.Context(), r.adminSession(), args[0], &buf)
				if err != nil {
					return err
				}
				return r.writeExport(cmd, dir, name, buf.Bytes())
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "output-dir", "o", ".", "directory to write to, or - for stdout")
	return cmd
}

func (r *runner) newExportJSONCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "json",
		Short: "Export fields, agents, forms and submissions as one JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(func(a *app.App) error {
				bundle, err := a.Export.Collect(cmd.Context(), r.adminSession())
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := export.JSON(&buf, bundle); err != nil {
					return err
				}
				return r.writeExport(cmd, dir, export.BundleFilename(bundle.ExportedAt), buf.Bytes())
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "output-dir", "o", ".", "directory to write to, or - for stdout")
	return cmd
}

func (r *runner) newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarize the tenant's fields, forms, agents and submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(func(a *app.App) error {
				sum, err := a.Reports.Summary(cmd.Context(), r.adminSession())
				if err != nil {
					return err
				}
				if r.flags.jsonMode {
					return printJSON(r.out(cmd), sum)
				}
				return printSummary(cmd, sum)
			})
		},
	}
}

func printSummary(cmd *cobra.Command, sum *report.Summary) error {
	w := cmd.OutOrStdout()
	for _, line := range sum.Lines() {
		fmt.Fprintln(w, line)
	}
	if len(sum.ByForm) > 0 {
		fmt.Fprintln(w)
		t := newTable(w, "FORM", "SUBMISSIONS")
		for _, c := range sum.ByForm {
			t.row(c.Name, fmt.Sprint(c.Count))
		}
		if err := t.flush(); err != nil {
			return err
		}
	}
	if len(sum.Daily) > 0 {
		fmt.Fprintln(w)
		t := newTable(w, "DAY", "SUBMISSIONS")
		for _, d := range sum.Daily {
			t.row(d.Date, fmt.Sprint(d.Count))
		}
		return t.flush()
	}
	return nil
}
