package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldforms/internal/app"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

func (r *runner) newFieldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "field",
		Aliases: []string{"fields"},
		Short:   "Manage the field hierarchy",
	}
	cmd.AddCommand(
		r.newFieldAddCmd(),
		r.newFieldListCmd(),
		r.newFieldTreeCmd(),
		r.newFieldMoveCmd(),
		r.newFieldUpdateCmd(),
		r.newFieldDeleteCmd(),
	)
	return cmd
}

func (r *runner) newFieldAddCmd() *cobra.Command {
	var parent, description string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a field node, optionally under a parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				n, err := a.Fields.Create(cmd.Context(), r.adminSession(), args[0], description, parent)
				if err != nil {
					return err
				}
				return r.printField(cmd, n)
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent field ID")
	cmd.Flags().StringVar(&description, "description", "", "description")
	return cmd
}

func (r *runner) newFieldListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List field nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(func(a *app.App) error {
				tree, err := a.Fields.Tree(cmd.Context(), r.adminSession())
				if err != nil {
					return err
				}
				var nodes []*types.FieldNode
				tree.Walk(func(n *types.FieldNode, _ int) bool {
					nodes = append(nodes, n)
					return true
				})
				if r.flags.jsonMode {
					if nodes == nil {
						nodes = []*types.FieldNode{}
					}
					return printJSON(r.out(cmd), nodes)
				}
				t := newTable(r.out(cmd), "ID", "NAME", "PATH", "CHILDREN")
				for _, n := range nodes {
					t.row(n.FieldID, n.Name, tree.PathString(n.FieldID), fmt.Sprint(len(n.Children)))
				}
				return t.flush()
			})
		},
	}
}

func (r *runner) newFieldTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the field hierarchy as an indented tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(func(a *app.App) error {
				tree, err := a.Fields.Tree(cmd.Context(), r.adminSession())
				if err != nil {
					return err
				}
				w := r.out(cmd)
				if tree.Len() == 0 {
					fmt.Fprintln(w, "no fields")
					return nil
				}
				tree.Walk(func(n *types.FieldNode, depth int) bool {
					fmt.Fprintf(w, "%s%s  (%s)\n", strings.Repeat("  ", depth), n.Name, n.FieldID)
					return true
				})
				return nil
			})
		},
	}
}

func (r *runner) newFieldMoveCmd() *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a field node under a new parent, or to the root with no --parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				sess := r.adminSession()
				n, err := a.Fields.Get(cmd.Context(), sess, args[0])
				if err != nil {
					return err
				}
				moved, err := a.Fields.Update(cmd.Context(), sess, n.FieldID, n.Name, n.Description, parent)
				if err != nil {
					return err
				}
				return r.printField(cmd, moved)
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "new parent field ID")
	return cmd
}

func (r *runner) newFieldUpdateCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename a field node or change its description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("description") {
				return usageError("nothing to update: pass --name or --description")
			}
			return r.withApp(func(a *app.App) error {
				sess := r.adminSession()
				n, err := a.Fields.Get(cmd.Context(), sess, args[0])
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("name") {
					n.Name = name
				}
				if cmd.Flags().Changed("description") {
					n.Description = description
				}
				updated, err := a.Fields.Update(cmd.Context(), sess, n.FieldID, n.Name, n.Description, n.ParentID)
				if err != nil {
					return err
				}
				return r.printField(cmd, updated)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	return cmd
}

func (r *runner) newFieldDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a leaf field node with no forms or agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				if err := a.Fields.Delete(cmd.Context(), r.adminSession(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(r.out(cmd), "deleted field %s\n", args[0])
				return nil
			})
		},
	}
}

func (r *runner) printField(cmd *cobra.Command, n *types.FieldNode) error {
	if r.flags.jsonMode {
		return printJSON(r.out(cmd), n)
	}
	fmt.Fprintf(r.out(cmd), "%s\t%s\tparent=%s\n", n.FieldID, n.Name, orDash(n.ParentID))
	return nil
}
