// Package paths locates the fieldforms configuration and data directories.
//
// A project is any directory holding a .fieldforms folder. Commands run
// anywhere below a project share its configuration, and by default keep
// their data in the .fieldforms-data folder next to it. Outside a project
// the per-user platform directories are used.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// Directory names inside a project root.
const (
	ProjectDirName     = ".fieldforms"
	DefaultDataDirName = ".fieldforms-data"
	appName            = "fieldforms"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "FIELDFORMS_CONFIG_DIR"
	EnvDataDir   = "FIELDFORMS_DATA_DIR"
)

// userDirs can be overridden in tests.
var userDirs = struct {
	home   func() (string, error)
	config func() (string, error)
	cwd    func() (string, error)
}{
	home:   os.UserHomeDir,
	config: os.UserConfigDir,
	cwd:    os.Getwd,
}

// FindProject walks up from start looking for a directory that contains
// ProjectDirName and returns that directory.
func FindProject(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		fi, err := os.Stat(filepath.Join(dir, ProjectDirName))
		if err == nil && fi.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// IsProjectConfigDir reports whether dir is a project's .fieldforms folder.
func IsProjectConfigDir(dir string) bool {
	return filepath.Base(dir) == ProjectDirName
}

// UserConfigDir returns the per-user configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/fieldforms (fallback ~/.config/fieldforms)
// macOS:   ~/Library/Application Support/fieldforms
// Windows: %APPDATA%/fieldforms
func UserConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	dir, err := userDirs.config()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// UserDataDir returns the per-user data directory.
//
// Linux:   $XDG_DATA_HOME/fieldforms (fallback ~/.local/share/fieldforms)
// Elsewhere it is the data subfolder of UserConfigDir.
func UserDataDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	}
	dir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

func xdgDir(env, fallback string) (string, error) {
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := userDirs.home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}

// ResolveConfigDir returns the configuration directory:
// flag > FIELDFORMS_CONFIG_DIR > enclosing project's .fieldforms > UserConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := userDirs.cwd()
	if err != nil {
		return "", err
	}
	if root, ok := FindProject(cwd); ok {
		return filepath.Join(root, ProjectDirName), nil
	}
	return UserConfigDir()
}

// ResolveDataDir returns the data directory:
// flag > data_dir from config.yaml > FIELDFORMS_DATA_DIR > default.
//
// A relative data_dir is taken relative to the project root when configDir
// is a project folder, so a checked-in config works from any subdirectory.
// The default is .fieldforms-data next to a project's .fieldforms, or
// UserDataDir for a per-user configuration.
func ResolveDataDir(flag, configValue, configDir string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	project := IsProjectConfigDir(configDir)
	if configValue != "" {
		if project && !filepath.IsAbs(configValue) {
			return filepath.Join(filepath.Dir(configDir), configValue), nil
		}
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	if project {
		return filepath.Join(filepath.Dir(configDir), DefaultDataDirName), nil
	}
	return UserDataDir()
}
