package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteText writes rows as an aligned two-column table. Headings are
// printed on their own line, underlined.
func WriteText(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		if r.Heading {
			if err := tw.Flush(); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "\n%s\n%s\n", r.Label, strings.Repeat("-", len([]rune(r.Label)))); err != nil {
				return err
			}
			if r.Text != "" {
				if _, err := fmt.Fprintln(w, r.Text); err != nil {
					return err
				}
			}
			continue
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", r.Label, r.Value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Text returns the WriteText rendition of rows.
func Text(rows []Row) string {
	var b strings.Builder
	_ = WriteText(&b, rows)
	return b.String()
}
