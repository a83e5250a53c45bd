package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withCwd points the working-directory hook at dir for one test.
func withCwd(t *testing.T, dir string) {
	t.Helper()
	orig := userDirs.cwd
	userDirs.cwd = func() (string, error) { return dir, nil }
	t.Cleanup(func() { userDirs.cwd = orig })
}

func TestFindProject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ProjectDirName), 0o755))
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	got, ok := FindProject(deep)
	require.True(t, ok)
	assert.Equal(t, root, got)

	got, ok = FindProject(root)
	require.True(t, ok)
	assert.Equal(t, root, got)

	_, ok = FindProject(t.TempDir())
	assert.False(t, ok)
}

func TestFindProjectIgnoresPlainFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectDirName), nil, 0o644))
	_, ok := FindProject(root)
	assert.False(t, ok)
}

func TestUserDirs_Linux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux-only test")
	}

	t.Run("XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		got, err := UserConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-config/fieldforms", got)
	})

	t.Run("config falls back to ~/.config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		orig := userDirs.home
		userDirs.home = func() (string, error) { return "/home/ada", nil }
		t.Cleanup(func() { userDirs.home = orig })

		got, err := UserConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/ada/.config/fieldforms", got)
	})

	t.Run("XDG_DATA_HOME", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
		got, err := UserDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-data/fieldforms", got)
	})

	t.Run("data falls back to ~/.local/share", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "")
		orig := userDirs.home
		userDirs.home = func() (string, error) { return "/home/ada", nil }
		t.Cleanup(func() { userDirs.home = orig })

		got, err := UserDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/ada/.local/share/fieldforms", got)
	})
}

func TestResolveConfigDir(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(project, ProjectDirName), 0o755))
	sub := filepath.Join(project, "reports")
	require.NoError(t, os.Mkdir(sub, 0o755))

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "/from/env")
		got, err := ResolveConfigDir("/from/flag")
		require.NoError(t, err)
		assert.Equal(t, "/from/flag", got)
	})

	t.Run("env beats project", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "/from/env")
		withCwd(t, sub)
		got, err := ResolveConfigDir("")
		require.NoError(t, err)
		assert.Equal(t, "/from/env", got)
	})

	t.Run("enclosing project", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "")
		withCwd(t, sub)
		got, err := ResolveConfigDir("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(project, ProjectDirName), got)
	})

	t.Run("user dir outside a project", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "")
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		withCwd(t, t.TempDir())
		got, err := ResolveConfigDir("")
		require.NoError(t, err)
		want, err := UserConfigDir()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestResolveDataDir(t *testing.T) {
	projectCfg := filepath.Join("/work/site", ProjectDirName)

	tests := []struct {
		name      string
		flag      string
		cfgValue  string
		configDir string
		env       string
		want      string
	}{
		{name: "flag", flag: "/data/flag", cfgValue: "/data/cfg", configDir: projectCfg, env: "/data/env", want: "/data/flag"},
		{name: "absolute config value", cfgValue: "/data/cfg", configDir: projectCfg, env: "/data/env", want: "/data/cfg"},
		{name: "relative config value in project", cfgValue: "store", configDir: projectCfg, want: "/work/site/store"},
		{name: "env", configDir: projectCfg, env: "/data/env", want: "/data/env"},
		{name: "project default", configDir: projectCfg, want: filepath.Join("/work/site", DefaultDataDirName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.env)
			got, err := ResolveDataDir(tt.flag, tt.cfgValue, tt.configDir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("user data dir for per-user config", func(t *testing.T) {
		if runtime.GOOS != "linux" {
			t.Skip("linux-only test")
		}
		t.Setenv(EnvDataDir, "")
		t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
		got, err := ResolveDataDir("", "", "/home/ada/.config/fieldforms")
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-data/fieldforms", got)
	})
}
