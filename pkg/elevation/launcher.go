package elevation

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/google/uuid"
)

const (
	// DefaultMaxPortAttempts bounds the search for a free loopback port.
	DefaultMaxPortAttempts = 10

	// DefaultStartTimeout bounds the wait for a started helper to accept
	// connections.
	DefaultStartTimeout = 30 * time.Second

	// HelperCommand is the CLI subcommand that runs the link service.
	HelperCommand = "link-helper"
)

// Handle is an acquired link service. Close releases it and must be called
// on every exit path.
type Handle interface {
	CreateLink(ctx context.Context, source, target string) error
	Close() error
}

// Elevator acquires a link service on demand.
type Elevator interface {
	Acquire(ctx context.Context) (Handle, error)
}

// Process is a started helper process.
type Process interface {
	Wait() error
	Kill() error
}

// StartFunc starts argv as a detached helper process.
type StartFunc func(ctx context.Context, argv []string) (Process, error)

// DialFunc connects to the helper.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// ListenFunc opens a listener, used to probe for a free port.
type ListenFunc func(network, addr string) (net.Listener, error)

// Launcher starts an elevated helper process and connects to it.
type Launcher struct {
	// Executable is the distsync binary the helper runs from.
	Executable string
	// Elevate prefixes the helper command line, e.g. ["sudo", "-n"]. Nil
	// selects the platform default.
	Elevate []string
	// GOOS overrides runtime.GOOS when choosing the platform default.
	GOOS string

	MaxPortAttempts int
	StartTimeout    time.Duration
	PollInterval    time.Duration

	Start  StartFunc
	Dial   DialFunc
	Listen ListenFunc
}

// NewLauncher returns a launcher running the current executable.
func NewLauncher() *Launcher {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return &Launcher{Executable: exe}
}

// Acquire finds a free port, starts the helper with elevated rights and
// returns a connected handle.
func (l *Launcher) Acquire(ctx context.Context) (Handle, error) {
	logger := logging.GetLogger("elevation.launcher")

	argvPrefix, err := l.elevateCommand()
	if err != nil {
		return nil, err
	}

	port, err := l.freePort()
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	argv := buildArgv(l.goos(), argvPrefix, l.Executable, []string{
		HelperCommand, "--port", strconv.Itoa(port), "--token", token,
	})

	logger.Info().
		Int("port", port).
		Strs("elevate", argvPrefix).
		Msg("Starting elevated link service")

	start := l.Start
	if start == nil {
		start = startProcess
	}
	proc, err := start(ctx, argv)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrLinkCapabilityUnavailable, "failed to start elevated link service").
			WithReason(errors.ReasonHelperStartFailed)
	}

	conn, err := l.connect(ctx, loopbackAddr(port))
	if err != nil {
		_ = proc.Kill()
		return nil, errors.Wrap(err, errors.ErrLinkCapabilityUnavailable, "elevated link service did not come up").
			WithReason(errors.ReasonHelperStartFailed).
			WithDetail("port", port)
	}

	client := NewClient(conn, token)
	if err := client.Ping(ctx); err != nil {
		_ = conn.Close()
		_ = proc.Kill()
		return nil, errors.Wrap(err, errors.ErrLinkCapabilityUnavailable, "elevated link service refused the session").
			WithReason(errors.ReasonHelperRefused)
	}

	return &session{client: client, proc: proc}, nil
}

func (l *Launcher) goos() string {
	if l.GOOS != "" {
		return l.GOOS
	}
	return runtime.GOOS
}

func (l *Launcher) elevateCommand() ([]string, error) {
	if l.Elevate != nil {
		return l.Elevate, nil
	}
	switch l.goos() {
	case "linux", "darwin", "freebsd", "openbsd", "netbsd", "dragonfly", "solaris", "illumos", "aix":
		return []string{"sudo", "-n"}, nil
	case "windows":
		return []string{"powershell", "-NoProfile", "-NonInteractive", "-Command"}, nil
	}
	return nil, errors.Newf(errors.ErrLinkCapabilityUnavailable,
		"no elevation mechanism is known for platform %s", l.goos()).
		WithReason(errors.ReasonUnsupportedPlatform)
}

// freePort asks the OS for an unused loopback port, at most
// MaxPortAttempts times.
func (l *Launcher) freePort() (int, error) {
	listen := l.Listen
	if listen == nil {
		listen = net.Listen
	}
	attempts := l.MaxPortAttempts
	if attempts <= 0 {
		attempts = DefaultMaxPortAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		ln, err := listen("tcp", loopbackAddr(0))
		if err != nil {
			lastErr = err
			continue
		}
		addr, ok := ln.Addr().(*net.TCPAddr)
		_ = ln.Close()
		if ok && addr.Port > 0 {
			return addr.Port, nil
		}
		lastErr = fmt.Errorf("listener returned non-TCP address %s", ln.Addr())
	}
	return 0, errors.Wrapf(lastErr, errors.ErrLinkCapabilityUnavailable,
		"no free loopback port after %d attempts", attempts).
		WithReason(errors.ReasonNoFreePort)
}

// connect dials until the helper accepts or the start timeout elapses.
func (l *Launcher) connect(ctx context.Context, addr string) (net.Conn, error) {
	dial := l.Dial
	if dial == nil {
		var d net.Dialer
		dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		}
	}
	timeout := l.StartTimeout
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	interval := l.PollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		conn, err := dial(ctx, addr)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up connecting to %s: %w", addr, err)
		case <-time.After(interval):
		}
	}
}

func buildArgv(goos string, prefix []string, exe string, args []string) []string {
	if goos == "windows" {
		script := fmt.Sprintf("Start-Process -Verb RunAs -WindowStyle Hidden -FilePath '%s' -ArgumentList '%s'",
			exe, strings.Join(args, " "))
		return append(append([]string{}, prefix...), script)
	}
	argv := append([]string{}, prefix...)
	argv = append(argv, exe)
	return append(argv, args...)
}

func startProcess(_ context.Context, argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty helper command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error { return p.cmd.Wait() }
func (p *execProcess) Kill() error { return p.cmd.Process.Kill() }

// session is an acquired helper: the client connection and its process.
type session struct {
	client *Client
	proc   Process
}

func (s *session) CreateLink(ctx context.Context, source, target string) error {
	return s.client.CreateLink(ctx, source, target)
}

// Close stops the helper and reaps its process, killing it when it does not
// exit promptly.
func (s *session) Close() error {
	err := s.client.Close()
	if s.proc == nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- s.proc.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = s.proc.Kill()
		<-done
	}
	return err
}

// Helper runs the link service in the current process on the given port
// until it is told to stop or ctx is done.
func Helper(ctx context.Context, port int, token string) error {
	ln, err := net.Listen("tcp", loopbackAddr(port))
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", loopbackAddr(port), err)
	}
	return NewServer(token, ReplaceLink).Serve(ctx, ln)
}
