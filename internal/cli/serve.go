package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/app"
	"github.com/mesh-intelligence/fieldforms/internal/mcptools"
	"github.com/mesh-intelligence/fieldforms/internal/server"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (r *runner) newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, form previews and the live submission feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := serverConfig(r.v)
			if addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return r.withApp(func(a *app.App) error {
				a.Start(ctx)
				srv := server.New(a, cfg, a.Logger.Named("http"))
				fmt.Fprintf(r.out(cmd), "fieldforms listening on %s\n", cfg.Addr)
				return srv.Run(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr from config)")
	return cmd
}

func (r *runner) newMCPCmd() *cobra.Command {
	var af agentFlags
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve an agent's form tools over MCP on stdio",
		Long: "Log in as an agent and expose list_forms, describe_form, submit_form and\n" +
			"list_submissions to an MCP client over stdin/stdout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return r.withApp(func(a *app.App) error {
				sess, err := af.login(cmd, a)
				if err != nil {
					return err
				}
				a.Start(ctx)
				srv, err := mcptools.New(a, sess, Version, a.Logger.Named("mcp"))
				if err != nil {
					return err
				}
				a.Logger.Info("mcp tools ready", zap.String("agent_id", sess.UserID))
				return mcptools.Serve(ctx, srv)
			})
		},
	}
	af.bind(cmd)
	return cmd
}
