package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldforms/internal/paths"
	"github.com/mesh-intelligence/fieldforms/pkg/cupboard"
)

func (r *runner) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a project's configuration and storage",
		Long: "Create the configuration directory with a default config.yaml, then attach and\n" +
			"detach the storage backend so its data directory and files exist. Outside an\n" +
			"existing project, and without --config-dir, the project is created in the\n" +
			"current directory.",
		Args: cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := r.projectHere(); err != nil {
				return err
			}
			return r.load()
		},
		RunE: r.runInit,
	}
}

// projectHere points the config dir at ./.fieldforms unless a flag, the
// environment or an enclosing project already decides it.
func (r *runner) projectHere() error {
	if r.flags.configDir != "" || os.Getenv(paths.EnvConfigDir) != "" {
		return nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if _, ok := paths.FindProject(cwd); ok {
		return nil
	}
	r.flags.configDir = filepath.Join(cwd, paths.ProjectDirName)
	return nil
}

func (r *runner) runInit(cmd *cobra.Command, _ []string) error {
	dataDir, err := r.dataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	logger, err := r.logger()
	if err != nil {
		return usageError("%v", err)
	}
	cup, err := cupboard.Open(storeConfig(r.v, dataDir), logger)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	if err := cup.Detach(); err != nil {
		return fmt.Errorf("finalize storage: %w", err)
	}

	if r.flags.jsonMode {
		return printJSON(r.out(cmd), map[string]string{
			"config_dir": r.configDir,
			"data_dir":   dataDir,
			"backend":    r.v.GetString(cfgKeyBackend),
		})
	}
	fmt.Fprintf(r.out(cmd), "fieldforms initialized\nconfig: %s\ndata:   %s\n", r.configDir, dataDir)
	return nil
}
