// Package cli implements the fieldforms command-line interface: managing
// the field tree, agents and forms of a tenant, submitting on behalf of an
// agent, exporting and reporting, and serving the HTTP API or MCP tools.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/app"
	"github.com/mesh-intelligence/fieldforms/internal/export"
	"github.com/mesh-intelligence/fieldforms/internal/logging"
	"github.com/mesh-intelligence/fieldforms/internal/paths"
	"github.com/mesh-intelligence/fieldforms/internal/schema"
	"github.com/mesh-intelligence/fieldforms/pkg/cupboard"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/fieldforms"

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	tenant    string
	jsonMode  bool
}

// runner carries the flags and loaded configuration into each command.
type runner struct {
	flags     rootFlags
	configDir string
	v         *viper.Viper
}

// NewRootCmd creates the top-level "fieldforms" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	r := &runner{}
	root := &cobra.Command{
		Use:   "fieldforms",
		Short: "Field data collection: forms, agents and submissions",
		Long: "fieldforms manages a tenant's field hierarchy, the agents working in it,\n" +
			"the forms published to each field and the submissions agents send back.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return r.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&r.flags.configDir, "config-dir", "", "configuration directory (default: .fieldforms)")
	pf.StringVar(&r.flags.dataDir, "data-dir", "", "data directory (default: .fieldforms-data)")
	pf.StringVar(&r.flags.tenant, "tenant", "", "tenant for admin commands (default: tenant_id from config)")
	pf.BoolVar(&r.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		r.newInitCmd(),
		r.newFieldCmd(),
		r.newAgentCmd(),
		r.newFormCmd(),
		r.newSubmitCmd(),
		r.newSubmissionCmd(),
		r.newExportCmd(),
		r.newReportCmd(),
		r.newServeCmd(),
		r.newMCPCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to exitUserError for problems the caller can fix
// (bad input, unknown ids, refused operations) and exitSysError otherwise.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var verr *types.ValidationError
	var missing *types.MissingRequiredFieldError
	var perr *types.PersistenceError
	switch {
	case errors.As(err, &perr):
		return exitSysError
	case errors.As(err, &verr), errors.As(err, &missing),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrForbidden),
		errors.Is(err, types.ErrUnauthenticated),
		errors.Is(err, types.ErrInvalidCredentials),
		errors.Is(err, types.ErrDuplicateName),
		errors.Is(err, types.ErrDuplicateCode),
		errors.Is(err, types.ErrDuplicateEmail),
		errors.Is(err, types.ErrHasChildren),
		errors.Is(err, types.ErrHasForms),
		errors.Is(err, types.ErrHasAgents),
		errors.Is(err, types.ErrCycle),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidData),
		errors.Is(err, schema.ErrUnsupportedFormat),
		errors.Is(err, export.ErrNothingToExport),
		errors.Is(err, errUsage):
		return exitUserError
	}
	return exitSysError
}

// errUsage marks bad flag combinations detected by a command.
var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// load resolves the config directory and reads config.yaml.
func (r *runner) load() error {
	dir, err := paths.ResolveConfigDir(r.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(dir)
	if err != nil {
		return err
	}
	r.configDir = dir
	r.v = v
	return nil
}

func (r *runner) dataDir() (string, error) {
	return paths.ResolveDataDir(r.flags.dataDir, r.v.GetString(cfgKeyDataDir), r.configDir)
}

func (r *runner) tenant() string {
	if r.flags.tenant != "" {
		return r.flags.tenant
	}
	return r.v.GetString(cfgKeyTenant)
}

// adminSession is the session admin commands run under.
func (r *runner) adminSession() *types.Session {
	return types.NewAdminSession(r.tenant(), "cli")
}

func (r *runner) logger() (*zap.Logger, error) {
	return logging.New(r.v.GetString(cfgKeyLogLevel), r.v.GetString(cfgKeyLogFormat))
}

// openApp attaches the configured backend and wires the services. The
// caller must Close the returned App.
func (r *runner) openApp() (*app.App, error) {
	logger, err := r.logger()
	if err != nil {
		return nil, usageError("%v", err)
	}
	dataDir, err := r.dataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	cup, err := cupboard.Open(storeConfig(r.v, dataDir), logger)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %s", r.v.GetString(cfgKeyBackend), logging.SanitizeError(err))
	}
	a, err := app.New(cup, app.Options{Logger: logger, Retry: retryConfig(r.v)})
	if err != nil {
		_ = cup.Detach()
		return nil, err
	}
	return a, nil
}

// withApp opens the app, runs fn and closes the app, keeping fn's error.
func (r *runner) withApp(fn func(a *app.App) error) error {
	a, err := r.openApp()
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.Close(); err != nil && runErr == nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return runErr
}

func (r *runner) out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
