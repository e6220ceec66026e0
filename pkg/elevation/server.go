package elevation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/arthur-debert/distsync/pkg/logging"
)

// LinkFunc creates target as a symbolic link to source.
type LinkFunc func(source, target string) error

// ReplaceLink creates the parent directory of target, removes whatever is
// at target, and links it to source.
func ReplaceLink(source, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if info, err := os.Lstat(target); err == nil {
		if info.IsDir() && info.Mode()&os.ModeSymlink == 0 {
			return fmt.Errorf("target path is a directory: %s", target)
		}
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("failed to remove existing target: %w", err)
		}
	}
	return os.Symlink(source, target)
}

// Server executes link requests on behalf of an unprivileged client.
type Server struct {
	Token string
	Link  LinkFunc

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewServer returns a server accepting requests carrying token.
func NewServer(token string, link LinkFunc) *Server {
	if link == nil {
		link = ReplaceLink
	}
	return &Server{Token: token, Link: link, stopped: make(chan struct{})}
}

// Serve accepts connections until a stop request arrives or ctx is done.
// The listener is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := logging.GetLogger("elevation.server")
	logger.Info().Str("addr", ln.Addr().String()).Msg("Link service listening")

	go func() {
		select {
		case <-ctx.Done():
		case <-s.stopped:
		}
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopped:
				logger.Info().Msg("Link service stopped")
				return nil
			case <-ctx.Done():
				return ctx.Err()
			default:
				return fmt.Errorf("accept failed: %w", err)
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ServeConn(conn); err != nil {
				logger.Warn().Err(err).Msg("Link service connection ended with error")
			}
		}()
	}
}

// ServeConn handles requests on one connection until the peer disconnects
// or sends stop. The connection is closed on return.
func (s *Server) ServeConn(rw io.ReadWriteCloser) error {
	logger := logging.GetLogger("elevation.server")
	c := newCodec(rw)
	defer func() { _ = c.close() }()

	for {
		var req Request
		if err := c.read(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("failed to decode request: %w", err)
		}

		resp := s.handle(req)
		logger.Debug().
			Uint64("id", req.ID).
			Str("command", string(req.Command)).
			Bool("ok", resp.OK).
			Str("error", resp.Error).
			Msg("Handled request")

		if err := c.write(resp); err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
		if resp.OK && req.Command == CommandStop {
			s.stopOnce.Do(func() { close(s.stopped) })
			return nil
		}
	}
}

// Stopped is closed once a stop request was served.
func (s *Server) Stopped() <-chan struct{} {
	return s.stopped
}

func (s *Server) handle(req Request) Response {
	resp := Response{ID: req.ID}
	if req.Token != s.Token {
		resp.Error = "invalid token"
		return resp
	}
	switch req.Command {
	case CommandPing, CommandStop:
		resp.OK = true
	case CommandCreateLink:
		if req.Source == "" || req.Target == "" {
			resp.Error = "create-link requires source and target"
			return resp
		}
		if err := s.Link(req.Source, req.Target); err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.OK = true
	default:
		resp.Error = fmt.Sprintf("unknown command %q", req.Command)
	}
	return resp
}
