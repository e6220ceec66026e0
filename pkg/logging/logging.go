package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogFileEnv overrides the log file location. The value "-" disables the
// file sink.
const LogFileEnv = "DISTSYNC_LOG_FILE"

// runID identifies one invocation in the shared log file.
var runID = uuid.NewString()

// levels maps -v counts to zerolog levels; anything past the end is trace.
var levels = []zerolog.Level{zerolog.WarnLevel, zerolog.InfoLevel, zerolog.DebugLevel}

// Options drives Setup.
type Options struct {
	Verbosity int
	// Console receives human-readable lines; nil means os.Stderr.
	Console io.Writer
	// File is the append-only JSON log; empty means DefaultLogPath, "-" none.
	File string
}

// LevelFor returns the global level used for a verbosity count.
func LevelFor(verbosity int) zerolog.Level {
	if verbosity < 0 {
		verbosity = 0
	}
	if verbosity < len(levels) {
		return levels[verbosity]
	}
	return zerolog.TraceLevel
}

// DefaultLogPath is distsync.log under the XDG state directory, unless
// DISTSYNC_LOG_FILE says otherwise.
func DefaultLogPath() string {
	if p := os.Getenv(LogFileEnv); p != "" {
		return p
	}
	xdg.Reload()
	return filepath.Join(xdg.StateHome, "distsync", "distsync.log")
}

// SetupLogger installs the global logger for a CLI run at the given -v count.
func SetupLogger(verbosity int) {
	Setup(Options{Verbosity: verbosity})
}

// Setup installs the global logger: console lines on Console plus JSON lines
// appended to File. A file that cannot be opened is reported on the console
// and skipped.
func Setup(opts Options) {
	zerolog.SetGlobalLevel(LevelFor(opts.Verbosity))

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	sinks := []io.Writer{zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.Kitchen,
		NoColor:    !colorCapable(console),
	}}

	path := opts.File
	if path == "" {
		path = DefaultLogPath()
	}
	var openErr error
	if path != "-" {
		f, err := openAppend(path)
		if err != nil {
			openErr = err
		} else {
			sinks = append(sinks, f)
		}
	}

	ctx := zerolog.New(io.MultiWriter(sinks...)).With().Timestamp().Str("run", runID)
	if opts.Verbosity >= 2 {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	if openErr != nil {
		log.Warn().Err(openErr).Str("path", path).Msg("Log file unavailable, console only")
	}
	log.Debug().Int("verbosity", opts.Verbosity).Str("logFile", path).Msg("Logger initialized")
}

func colorCapable(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// RunID returns the identifier attached to every log line of this invocation.
func RunID() string {
	return runID
}

// GetLogger returns the global logger tagged with a component name.
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// LogOperationStart logs the start of operation at debug level and returns a
// func that logs its completion with the elapsed time.
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("Operation started")
	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
	}
}
