package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldforms/internal/app"
	"github.com/mesh-intelligence/fieldforms/internal/render"
	"github.com/mesh-intelligence/fieldforms/internal/submission"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// agentFlags log a command in as an agent.
type agentFlags struct {
	email    string
	password string
}

func (af *agentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&af.email, "email", "", "agent login email")
	cmd.Flags().StringVar(&af.password, "password", "", "agent password (or FIELDFORMS_AGENT_PASSWORD)")
}

func (af *agentFlags) login(cmd *cobra.Command, a *app.App) (*types.Session, error) {
	password := af.password
	if password == "" {
		password = os.Getenv("FIELDFORMS_AGENT_PASSWORD")
	}
	if af.email == "" || password == "" {
		return nil, usageError("agent commands need --email and --password")
	}
	return a.Agents.Login(cmd.Context(), af.email, password)
}

func (r *runner) newSubmitCmd() *cobra.Command {
	var (
		af       agentFlags
		sets     []string
		dataFile string
		draft    bool
	)
	cmd := &cobra.Command{
		Use:   "submit <form-id>",
		Short: "Submit a form as an agent",
		Long: "Submit values for a form as the agent identified by --email and --password.\n" +
			"Values come from --set id=value (repeat an id for multiselect) and/or a JSON\n" +
			"object in --data-file. With --draft required fields are not checked.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := collectInput(dataFile, sets)
			if err != nil {
				return err
			}
			return r.withApp(func(a *app.App) error {
				sess, err := af.login(cmd, a)
				if err != nil {
					return err
				}
				form, err := a.Forms.Get(cmd.Context(), sess, args[0])
				if err != nil {
					return err
				}
				sub, err := a.Submissions.Submit(cmd.Context(), sess, form, raw, draft)
				if err != nil {
					return err
				}
				if r.flags.jsonMode {
					return printJSON(r.out(cmd), sub)
				}
				fmt.Fprintf(r.out(cmd), "saved %s submission %s\n", sub.Status, sub.SubmissionID)
				return nil
			})
		},
	}
	af.bind(cmd)
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value as id=value")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "JSON object of values keyed by field ID")
	cmd.Flags().BoolVar(&draft, "draft", false, "save as a draft")
	return cmd
}

// collectInput merges a JSON data file with --set pairs; --set wins.
func collectInput(dataFile string, sets []string) (submission.RawInput, error) {
	raw := submission.RawInput{}
	if dataFile != "" {
		data, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, fmt.Errorf("read data file: %w", err)
		}
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, usageError("data file %s: %v", dataFile, err)
		}
		raw = submission.FromJSON(obj)
	}
	seen := map[string]bool{}
	for _, kv := range sets {
		id, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, usageError("--set %q: want id=value", kv)
		}
		id = strings.TrimSpace(id)
		if !seen[id] {
			raw[id] = nil
			seen[id] = true
		}
		raw[id] = append(raw[id], value)
	}
	return raw, nil
}

func (r *runner) newSubmissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submission",
		Aliases: []string{"submissions"},
		Short:   "Inspect submissions",
	}
	cmd.AddCommand(r.newSubmissionListCmd(), r.newSubmissionShowCmd())
	return cmd
}

func (r *runner) newSubmissionListCmd() *cobra.Command {
	var formID, agentID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(func(a *app.App) error {
				sess := r.adminSession()
				var (
					list []*types.Submission
					err  error
				)
				switch {
				case formID != "":
					list, err = a.Submissions.ListByForm(cmd.Context(), sess, formID)
				case agentID != "":
					list, err = a.Submissions.ListByAgent(cmd.Context(), sess, agentID)
				default:
					list, err = a.Submissions.ListByTenant(cmd.Context(), sess)
				}
				if err != nil {
					return err
				}
				if r.flags.jsonMode {
					return printJSON(r.out(cmd), list)
				}
				t := newTable(r.out(cmd), "ID", "FORM", "AGENT", "STATUS", "SUBMITTED")
				for i := len(list) - 1; i >= 0; i-- {
					s := list[i]
					t.row(s.SubmissionID, s.FormID, s.AgentID, s.Status, formatTime(s.SubmittedAt))
				}
				return t.flush()
			})
		},
	}
	cmd.Flags().StringVar(&formID, "form", "", "only submissions of this form ID")
	cmd.Flags().StringVar(&agentID, "agent", "", "only submissions by this agent ID")
	return cmd
}

func (r *runner) newSubmissionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a submission with its form's labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				sess := r.adminSession()
				sub, err := a.Submissions.Get(cmd.Context(), sess, args[0])
				if err != nil {
					return err
				}
				form, err := a.Forms.Get(cmd.Context(), sess, sub.FormID)
				if err != nil {
					return fmt.Errorf("form of submission %s: %w", sub.SubmissionID, err)
				}
				rows := render.Display(form, sub.Data)
				if r.flags.jsonMode {
					return printJSON(r.out(cmd), map[string]any{"submission": sub, "rows": rows})
				}
				w := r.out(cmd)
				fmt.Fprintf(w, "%s  %s  %s  %s\n\n", form.Name, sub.Status, sub.AgentID, formatTime(sub.SubmittedAt))
				return render.WriteText(w, rows)
			})
		},
	}
}
