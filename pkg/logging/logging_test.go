package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobal(t *testing.T) {
	previous := log.Logger
	level := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = previous
		zerolog.SetGlobalLevel(level)
	})
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zerolog.Level
	}{
		{-1, zerolog.WarnLevel},
		{0, zerolog.WarnLevel},
		{1, zerolog.InfoLevel},
		{2, zerolog.DebugLevel},
		{3, zerolog.TraceLevel},
		{7, zerolog.TraceLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.verbosity), "verbosity %d", tt.verbosity)
	}
}

func TestSetupLogger_CreatesStateLog(t *testing.T) {
	restoreGlobal(t)
	tempDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tempDir)
	t.Setenv(LogFileEnv, "")

	SetupLogger(1)

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	_, err := os.Stat(filepath.Join(tempDir, "distsync", "distsync.log"))
	assert.NoError(t, err)
}

func TestSetup_FileOverrideAndConsole(t *testing.T) {
	restoreGlobal(t)
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "nested", "run.log")

	Setup(Options{Verbosity: 1, Console: &console, File: logPath})
	log.Info().Msg("synchronizing")

	assert.Contains(t, console.String(), "synchronizing")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run":"`+RunID()+`"`)
	assert.Contains(t, string(data), "synchronizing")
}

func TestSetup_FileDisabled(t *testing.T) {
	restoreGlobal(t)
	var console bytes.Buffer
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv(LogFileEnv, "-")

	Setup(Options{Console: &console})
	log.Warn().Msg("console only")

	assert.Contains(t, console.String(), "console only")
	assert.Equal(t, "-", DefaultLogPath())
}

func TestSetup_UnwritableFileFallsBackToConsole(t *testing.T) {
	restoreGlobal(t)
	var console bytes.Buffer
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	Setup(Options{Console: &console, File: filepath.Join(blocker, "run.log")})

	assert.Contains(t, console.String(), "Log file unavailable")
}

func TestDefaultLogPath(t *testing.T) {
	t.Setenv(LogFileEnv, "")
	t.Setenv("XDG_STATE_HOME", "/custom/state")
	assert.Equal(t, "/custom/state/distsync/distsync.log", DefaultLogPath())

	t.Setenv(LogFileEnv, "/tmp/other.log")
	assert.Equal(t, "/tmp/other.log", DefaultLogPath())
}

func TestGetLogger_AddsComponent(t *testing.T) {
	restoreGlobal(t)
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	logger := GetLogger("materialize")
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"materialize"`)
}

func TestLogOperationStart(t *testing.T) {
	restoreGlobal(t)
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	logger := zerolog.New(&buf)

	done := LogOperationStart(logger, "clean")
	require.Contains(t, buf.String(), "Operation started")
	done()

	assert.Contains(t, buf.String(), "Operation completed")
	assert.Contains(t, buf.String(), `"operation":"clean"`)
}

func TestRunID_Stable(t *testing.T) {
	assert.NotEmpty(t, RunID())
	assert.Equal(t, RunID(), RunID())
}
