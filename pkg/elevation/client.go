package elevation

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/arthur-debert/distsync/pkg/errors"
)

// DefaultStopTimeout bounds the stop request sent by Client.Close.
const DefaultStopTimeout = 5 * time.Second

// Client sends requests to a link service over one connection. It is not
// safe for concurrent use.
type Client struct {
	c      *codec
	token  string
	nextID uint64

	// StopTimeout bounds the stop exchange in Close; zero means
	// DefaultStopTimeout.
	StopTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewClient wraps an established connection.
func NewClient(conn io.ReadWriteCloser, token string) *Client {
	return &Client{c: newCodec(conn), token: token}
}

// Ping verifies the service is reachable and accepts the token.
func (cl *Client) Ping(ctx context.Context) error {
	return cl.do(ctx, Request{Command: CommandPing})
}

// CreateLink asks the service to link target to source.
func (cl *Client) CreateLink(ctx context.Context, source, target string) error {
	return cl.do(ctx, Request{Command: CommandCreateLink, Source: source, Target: target})
}

// Close sends stop and closes the connection. It is safe to call more than
// once; only the first call talks to the service. An unresponsive service
// is abandoned after StopTimeout.
func (cl *Client) Close() error {
	cl.closeOnce.Do(func() {
		timeout := cl.StopTimeout
		if timeout <= 0 {
			timeout = DefaultStopTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		stopErr := cl.do(ctx, Request{Command: CommandStop})
		closeErr := cl.c.close()
		if stopErr != nil {
			cl.closeErr = stopErr
		} else {
			cl.closeErr = closeErr
		}
	})
	return cl.closeErr
}

func (cl *Client) do(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCanceled, "link service request canceled")
	}
	cl.nextID++
	req.ID = cl.nextID
	req.Token = cl.token

	reset := cl.c.applyDeadline(ctx)
	defer reset()

	if err := cl.c.write(req); err != nil {
		return errors.Wrapf(err, errors.ErrProtocol, "failed to send %s request", req.Command)
	}
	var resp Response
	if err := cl.c.read(&resp); err != nil {
		return errors.Wrapf(err, errors.ErrProtocol, "failed to read %s response", req.Command)
	}
	if resp.ID != req.ID {
		return errors.Newf(errors.ErrProtocol, "response id %d does not match request id %d", resp.ID, req.ID)
	}
	if !resp.OK {
		return errors.Newf(errors.ErrProtocol, "link service refused %s: %s", req.Command, resp.Error).
			WithDetail("command", string(req.Command))
	}
	return nil
}
