// TEST TYPE: Integration Test
// DEPENDENCIES: real filesystem via t.TempDir, cobra command tree
// PURPOSE: Test the CLI commands end to end against a temporary workspace

package distsync

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/distsync/pkg/config"
	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workspace struct {
	dir    string
	config string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	t.Setenv(paths.EnvConfigFile, "")
	t.Setenv(paths.EnvConfigDir, t.TempDir())

	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write("core.jar", "core-bytes")
	write("dev.yaml", `
artifacts:
  - group_id: org.example
    artifact_id: core
    version: "1.0"
    target_folder: plugins
    source: core.jar
`)
	write("distsync.toml", `
[elevation]
enabled = false

[environments.dev]
root = "envs/dev"
manifest = "dev.yaml"
runtime_paths = ["workspace/.*"]

[environments.qa]
root = "envs/qa"
manifest = "dev.yaml"
`)
	return &workspace{dir: dir, config: filepath.Join(dir, "distsync.toml")}
}

func (w *workspace) path(rel string) string {
	return filepath.Join(w.dir, filepath.FromSlash(rel))
}

func (w *workspace) exists(rel string) bool {
	_, err := os.Lstat(w.path(rel))
	return err == nil
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSyncCommand(t *testing.T) {
	w := newWorkspace(t)

	out, err := run(t, "--config", w.config, "--format", "text", "sync", "dev")
	require.NoError(t, err)
	assert.Contains(t, out, "dev "+w.path("envs/dev"))
	assert.Contains(t, out, "org.example:core:jar:1.0")
	data, err := os.ReadFile(w.path("envs/dev/plugins/core.jar"))
	require.NoError(t, err)
	assert.Equal(t, "core-bytes", string(data))
	assert.False(t, w.exists("envs/qa"), "only the named environment is synchronized")

	out, err = run(t, "--config", w.config, "--format", "text", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "0 to install, 0 to update, 0 to remove, 1 unchanged")
	assert.True(t, w.exists("envs/qa/plugins/core.jar"))
}

func TestSyncCommand_DryRunAndPlan(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"sync dry run", []string{"--dry-run", "sync", "dev"}},
		{"plan", []string{"plan", "dev"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorkspace(t)
			args := append([]string{"--config", w.config, "--format", "text"}, tt.args...)
			out, err := run(t, args...)
			require.NoError(t, err)
			assert.Contains(t, out, "dev (dry run)")
			assert.Contains(t, out, "1 to install")
			assert.Contains(t, out, "DRY RUN MODE")
			assert.False(t, w.exists("envs/dev"))
		})
	}
}

func TestSyncCommand_JSON(t *testing.T) {
	w := newWorkspace(t)
	out, err := run(t, "--config", w.config, "-o", "json", "sync", "qa")
	require.NoError(t, err)

	var results []struct {
		Environment  string `json:"environment"`
		BytesWritten int64  `json:"bytes_written"`
		LaunchBytes  int64  `json:"launch_bytes_written"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "qa", results[0].Environment)
	assert.Equal(t, int64(len("core-bytes")), results[0].BytesWritten, "artifact bytes only")
	assert.Positive(t, results[0].LaunchBytes)
}

func TestSyncCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args func(w *workspace) []string
		code errors.ErrorCode
	}{
		{
			name: "unknown environment",
			args: func(w *workspace) []string { return []string{"--config", w.config, "sync", "nope"} },
			code: errors.ErrNotFound,
		},
		{
			name: "missing config file",
			args: func(w *workspace) []string { return []string{"--config", w.path("missing.toml"), "sync"} },
			code: errors.ErrConfigLoad,
		},
		{
			name: "bad format",
			args: func(w *workspace) []string { return []string{"--config", w.config, "-o", "xml", "sync"} },
			code: errors.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorkspace(t)
			_, err := run(t, tt.args(w)...)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetErrorCode(err))
		})
	}
}

func TestSyncCommand_SetOverride(t *testing.T) {
	w := newWorkspace(t)
	_, err := run(t, "--config", w.config, "--set", "environments::dev::mode=link", "sync", "dev")
	require.NoError(t, err)

	target, err := os.Readlink(w.path("envs/dev/plugins/core.jar"))
	require.NoError(t, err)
	assert.Equal(t, w.path("core.jar"), target)

	_, err = run(t, "--config", w.config, "--set", "broken", "sync")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestCleanCommand(t *testing.T) {
	w := newWorkspace(t)
	_, err := run(t, "--config", w.config, "sync", "dev")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(w.path("envs/dev/stray.txt"), []byte("x"), 0644))

	out, err := run(t, "--config", w.config, "--format", "text", "--dry-run", "clean", "dev")
	require.NoError(t, err)
	assert.Contains(t, out, "would delete stray.txt")
	assert.True(t, w.exists("envs/dev/stray.txt"))

	out, err = run(t, "--config", w.config, "--format", "text", "clean", "dev")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted stray.txt")
	assert.False(t, w.exists("envs/dev/stray.txt"))
	assert.True(t, w.exists("envs/dev/plugins/core.jar"))

	_, err = run(t, "--config", w.config, "clean", "qa")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound), "qa was never synchronized")
}

func TestStatusCommand(t *testing.T) {
	w := newWorkspace(t)
	_, err := run(t, "--config", w.config, "sync", "dev")
	require.NoError(t, err)

	out, err := run(t, "--config", w.config, "--format", "text", "status", "--check", "dev")
	require.NoError(t, err)
	assert.Contains(t, out, "Up to date")

	require.NoError(t, os.Remove(w.path("envs/dev/plugins/core.jar")))
	out, err = run(t, "--config", w.config, "--format", "text", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Target does not exist")
	assert.Contains(t, out, "never synchronized", "qa has no descriptor")

	_, err = run(t, "--config", w.config, "status", "--check")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestConfigCommand(t *testing.T) {
	w := newWorkspace(t)

	out, err := run(t, "--config", w.config, "--format", "text", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration "+w.config)
	assert.Contains(t, out, w.path("envs/qa"))

	out, err = run(t, "config", "--defaults")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultContent(), out)
}

func TestVersionAndCompletion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "distsync version dev")

	out, err = run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "distsync")

	_, err = run(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestLinkHelperCommand_RequiresFlags(t *testing.T) {
	_, err := run(t, "link-helper")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestRootCommand_NoSubcommand(t *testing.T) {
	_, err := run(t)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}
