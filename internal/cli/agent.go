package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldforms/internal/agents"
	"github.com/mesh-intelligence/fieldforms/internal/app"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

func (r *runner) newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agent",
		Aliases: []string{"agents"},
		Short:   "Manage field agents",
	}
	cmd.AddCommand(r.newAgentAddCmd(), r.newAgentListCmd(), r.newAgentDeleteCmd())
	return cmd
}

func (r *runner) newAgentAddCmd() *cobra.Command {
	var in agents.Input
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an agent for a field node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(func(a *app.App) error {
				ag, err := a.Agents.Create(cmd.Context(), r.adminSession(), in)
				if err != nil {
					return err
				}
				if r.flags.jsonMode {
					return printJSON(r.out(cmd), ag.Public())
				}
				fmt.Fprintf(r.out(cmd), "%s\t%s\t%s\n", ag.AgentID, ag.Code, ag.Name)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "agent name")
	f.StringVar(&in.Code, "code", "", "agent ID assigned by the organisation")
	f.StringVar(&in.Email, "email", "", "login email")
	f.StringVar(&in.Phone, "phone", "", "phone number")
	f.StringVar(&in.FieldID, "field", "", "field ID the agent works in")
	f.StringVar(&in.Password, "password", "", "login password")
	return cmd
}

func (r *runner) newAgentListCmd() *cobra.Command {
	var fieldID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(func(a *app.App) error {
				sess := r.adminSession()
				var (
					list []*types.Agent
					err  error
				)
				if fieldID != "" {
					list, err = a.Agents.ListByField(cmd.Context(), sess, fieldID)
				} else {
					list, err = a.Agents.List(cmd.Context(), sess)
				}
				if err != nil {
					return err
				}
				if r.flags.jsonMode {
					out := make([]types.Agent, 0, len(list))
					for _, ag := range list {
						out = append(out, ag.Public())
					}
					return printJSON(r.out(cmd), out)
				}
				t := newTable(r.out(cmd), "ID", "CODE", "NAME", "EMAIL", "FIELD")
				for _, ag := range list {
					t.row(ag.AgentID, ag.Code, ag.Name, orDash(ag.Email), ag.FieldID)
				}
				return t.flush()
			})
		},
	}
	cmd.Flags().StringVar(&fieldID, "field", "", "only agents of this field ID")
	return cmd
}

func (r *runner) newAgentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an agent; their submissions are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				if err := a.Agents.Delete(cmd.Context(), r.adminSession(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(r.out(cmd), "deleted agent %s\n", args[0])
				return nil
			})
		},
	}
}
