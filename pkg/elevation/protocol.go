package elevation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"
)

// Command enumerates the requests the link service understands.
type Command string

const (
	// CommandPing checks that the service is alive and accepts the token.
	CommandPing Command = "ping"
	// CommandCreateLink creates target as a symbolic link to source.
	CommandCreateLink Command = "create-link"
	// CommandStop asks the service to exit after responding.
	CommandStop Command = "stop"
)

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	switch c {
	case CommandPing, CommandCreateLink, CommandStop:
		return true
	}
	return false
}

// Request is one client message.
type Request struct {
	ID      uint64  `json:"id"`
	Token   string  `json:"token"`
	Command Command `json:"command"`
	Source  string  `json:"source,omitempty"`
	Target  string  `json:"target,omitempty"`
}

// Response answers the request with the same ID.
type Response struct {
	ID    uint64 `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// codec reads and writes newline-delimited JSON messages.
type codec struct {
	rw  io.ReadWriteCloser
	dec *json.Decoder
	enc *json.Encoder
}

func newCodec(rw io.ReadWriteCloser) *codec {
	return &codec{
		rw:  rw,
		dec: json.NewDecoder(bufio.NewReader(rw)),
		enc: json.NewEncoder(rw),
	}
}

func (c *codec) read(v interface{}) error {
	return c.dec.Decode(v)
}

func (c *codec) write(v interface{}) error {
	return c.enc.Encode(v)
}

// applyDeadline bounds the next I/O on conns that support deadlines.
func (c *codec) applyDeadline(ctx context.Context) func() {
	conn, ok := c.rw.(interface{ SetDeadline(time.Time) error })
	if !ok {
		return func() {}
	}
	if deadline, has := ctx.Deadline(); has {
		_ = conn.SetDeadline(deadline)
		return func() { _ = conn.SetDeadline(time.Time{}) }
	}
	return func() {}
}

func (c *codec) close() error {
	return c.rw.Close()
}

// loopbackAddr formats the helper's listen address.
func loopbackAddr(port int) string {
	return net.JoinHostPort("127.0.0.1", fmt.Sprint(port))
}
