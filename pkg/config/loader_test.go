// TEST TYPE: Unit Test
// DEPENDENCIES: real filesystem via t.TempDir, process environment
// PURPOSE: Test layered configuration loading and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/paths"
	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlConfig = `
mode = "link"

[elevation]
command = ["doas"]

[launch.defaults.vm_args]
"-Dosgi.console" = ""
"-Xmx" = "512m"

[[launch.overrides]]
context = "test"
[launch.overrides.vm_args]
"-Xmx" = "1g"

[environments.itest]
root = "envs/itest"
manifest = "itest.yaml"
runtime_paths = ["workspace/.*", "logs/"]

[environments.itest.launch.defaults.program_args]
"-console" = "5555"

[environments.itest.launch.defaults.coverage]
enabled = true
agent_jar = "/tools/jacocoagent.jar"

[environments.ide]
root = "/abs/ide"
mode = "copy"
`

// isolate keeps discovery away from the developer's own configuration.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(paths.EnvConfigFile, "")
	t.Setenv(paths.EnvConfigDir, t.TempDir())
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Path)
	assert.Equal(t, "copy", cfg.Mode)
	assert.Equal(t, 4, cfg.Sync.Parallelism)
	assert.False(t, cfg.Sync.ContinueOnError)
	assert.True(t, cfg.Elevation.Enabled)
	assert.Equal(t, 10, cfg.Elevation.MaxPortAttempts)
	assert.Equal(t, 30*time.Second, cfg.Elevation.StartTimeout)
	assert.Empty(t, cfg.Environments)
	assert.True(t, filepath.IsAbs(cfg.OutputDir))
}

func TestLoad_TOMLFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "distsync.toml", tomlConfig)
	base := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, []string{"doas"}, cfg.Elevation.Command)
	assert.Equal(t, filepath.Join(base, "out", "coverage"), cfg.OutputDir)

	plugin := cfg.Launch.Layer()
	assert.Equal(t, map[string]string{"-Dosgi.console": "", "-Xmx": "512m"}, plugin.Defaults.VMArgs)
	require.Len(t, plugin.Overrides, 1)
	assert.Equal(t, types.ContextTest, plugin.Overrides[0].Context)
	assert.Equal(t, "1g", plugin.Overrides[0].Config.VMArgs["-Xmx"])

	assert.Equal(t, []string{"ide", "itest"}, cfg.EnvironmentNames())

	itest, err := cfg.Environment("itest")
	require.NoError(t, err)
	assert.Equal(t, "itest", itest.Name)
	assert.Equal(t, "link", itest.Mode, "inherits the top-level mode")
	assert.Equal(t, filepath.Join(base, "envs", "itest"), itest.Root)
	assert.Equal(t, filepath.Join(base, "itest.yaml"), itest.Manifest)
	require.Len(t, itest.Patterns, 2)
	assert.True(t, types.MatchAny(itest.Patterns, "logs/"))
	assert.False(t, types.MatchAny(itest.Patterns, "plugins/a.jar"))

	envLayer := itest.Launch.Layer()
	assert.Equal(t, "5555", envLayer.Defaults.ProgramArgs["-console"])
	require.NotNil(t, envLayer.Defaults.Coverage)
	assert.True(t, envLayer.Defaults.Coverage.Enabled)

	ide, err := cfg.Environment("ide")
	require.NoError(t, err)
	assert.Equal(t, "copy", ide.Mode)
	assert.Equal(t, "/abs/ide", ide.Root)
}

func TestLoad_YAMLFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "distsync.yaml", `
sync:
  parallelism: 2
environments:
  smoke:
    root: smoke
    runtime_paths: ["data/.*"]
    launch:
      overrides:
        - context: ide
          program_args:
            -clean: ""
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Sync.Parallelism)

	smoke, err := cfg.Environment("smoke")
	require.NoError(t, err)
	layer := smoke.Launch.Layer()
	require.Len(t, layer.Overrides, 1)
	assert.Equal(t, types.ContextIDE, layer.Overrides[0].Context)
	assert.Contains(t, layer.Overrides[0].Config.ProgramArgs, "-clean")
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "distsync.toml", tomlConfig)
	t.Setenv("DISTSYNC_SYNC__CONTINUE_ON_ERROR", "true")
	t.Setenv("DISTSYNC_SYNC__PARALLELISM", "9")
	t.Setenv("DISTSYNC_MODE", "copy")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Sync.ContinueOnError)
	assert.Equal(t, 9, cfg.Sync.Parallelism)
	assert.Equal(t, "copy", cfg.Mode)
}

func TestLoadWithOverrides(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "distsync.toml", tomlConfig)
	t.Setenv("DISTSYNC_SYNC__PARALLELISM", "9")

	overrides, err := ParseOverrides([]string{"sync::parallelism=2", "environments::itest::mode=copy"})
	require.NoError(t, err)

	cfg, err := LoadWithOverrides(path, overrides)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Sync.Parallelism, "overrides sit above environment variables")
	itest, err := cfg.Environment("itest")
	require.NoError(t, err)
	assert.Equal(t, "copy", itest.Mode)
	assert.Equal(t, "link", cfg.Mode)
}

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]interface{}
		wantErr bool
	}{
		{"empty", nil, map[string]interface{}{}, false},
		{"value with equals", []string{"launch::defaults::vm_args::-Dx=a=b"}, map[string]interface{}{"launch::defaults::vm_args::-Dx": "a=b"}, false},
		{"empty value", []string{"mode="}, map[string]interface{}{"mode": ""}, false},
		{"no equals", []string{"mode"}, nil, true},
		{"no key", []string{"=copy"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOverrides(tt.pairs)
			if tt.wantErr {
				assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_DiscoversFromEnvironment(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "custom.toml", "mode = \"link\"\n")
	t.Setenv(paths.EnvConfigFile, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "link", cfg.Mode)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		code    errors.ErrorCode
	}{
		{"bad regex", "distsync.toml", "[environments.a]\nroot = \"a\"\nruntime_paths = [\"(unclosed\"]\n", errors.ErrInvalidRuntimePath},
		{"unknown context", "distsync.toml", "[[launch.overrides]]\ncontext = \"staging\"\n", errors.ErrConfigInvalid},
		{"override without context", "distsync.toml", "[[launch.overrides]]\n[launch.overrides.vm_args]\nx = \"1\"\n", errors.ErrConfigInvalid},
		{"missing root", "distsync.toml", "[environments.a]\nmode = \"copy\"\n", errors.ErrConfigInvalid},
		{"bad mode", "distsync.toml", "mode = \"hardlink\"\n", errors.ErrConfigInvalid},
		{"bad environment mode", "distsync.toml", "[environments.a]\nroot = \"a\"\nmode = \"teleport\"\n", errors.ErrConfigInvalid},
		{"unparseable", "distsync.toml", "[[[", errors.ErrConfigParse},
		{"unsupported format", "distsync.ini", "x=1", errors.ErrConfigLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := Load(writeConfig(t, tt.file, tt.content))
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, tt.code), "got %v", err)
		})
	}

	t.Run("explicit file missing", func(t *testing.T) {
		isolate(t)
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigLoad))
	})
}

func TestSelect(t *testing.T) {
	isolate(t)
	cfg, err := Load(writeConfig(t, "distsync.toml", tomlConfig))
	require.NoError(t, err)

	all, err := cfg.Select(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ide", all[0].Name)

	_, err = cfg.Select([]string{"itest", "prod"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}
