package materialize

import (
	"context"
	"fmt"
	"strings"

	"github.com/arthur-debert/distsync/pkg/elevation"
	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/types"
)

// DefaultChunkSize is the comparison window used in copy mode.
const DefaultChunkSize = 64 * 1024

// Mode selects how an artifact reaches its target.
type Mode string

const (
	// ModeCopy writes the source bytes into the target.
	ModeCopy Mode = "copy"
	// ModeLink makes the target a symbolic link to the source.
	ModeLink Mode = "link"
)

// ParseMode parses a mode name. The empty string selects ModeCopy.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCopy:
		return ModeCopy, nil
	case ModeLink:
		return ModeLink, nil
	}
	return "", errors.Newf(errors.ErrConfigInvalid, "unknown materialization mode %q (expected copy or link)", s)
}

// Result describes the writes one materialization performed.
type Result struct {
	// BytesWritten counts bytes written into target files.
	BytesWritten int64
	// ChunksWritten counts comparison chunks that contained a difference.
	ChunksWritten int
	// Truncated is set when an existing target was longer than the source.
	Truncated bool
	// Operations counts filesystem mutations: creates, removes, writes,
	// truncations, mode changes and links.
	Operations int
	// Elevated is set when a link was created by the elevated link service.
	Elevated bool
}

// Changed reports whether anything was written.
func (r Result) Changed() bool {
	return r.Operations > 0
}

// Add accumulates o into r.
func (r *Result) Add(o Result) {
	r.BytesWritten += o.BytesWritten
	r.ChunksWritten += o.ChunksWritten
	r.Truncated = r.Truncated || o.Truncated
	r.Operations += o.Operations
	r.Elevated = r.Elevated || o.Elevated
}

// Materializer writes or links files through FS.
type Materializer struct {
	FS types.FS
	// ChunkSize is the copy-mode comparison window, DefaultChunkSize when
	// zero.
	ChunkSize int
	// Elevator is consulted when link creation is denied. Nil disables the
	// fallback.
	Elevator elevation.Elevator

	handle elevation.Handle
}

// New returns a Materializer using fs and, for denied links, elevator.
func New(fs types.FS, elevator elevation.Elevator) *Materializer {
	return &Materializer{FS: fs, ChunkSize: DefaultChunkSize, Elevator: elevator}
}

// Materialize brings target in line with source using mode.
func (m *Materializer) Materialize(ctx context.Context, source, target string, mode Mode) (Result, error) {
	logger := logging.GetLogger("materialize")

	var (
		res Result
		err error
	)
	switch mode {
	case ModeCopy, "":
		res, err = m.copyFile(ctx, source, target)
	case ModeLink:
		res, err = m.link(ctx, source, target)
	default:
		return Result{}, errors.Newf(errors.ErrInvalidInput, "unknown materialization mode %q", mode)
	}
	if err != nil {
		return res, err
	}

	logger.Debug().
		Str("source", source).
		Str("target", target).
		Str("mode", string(mode)).
		Int64("bytes", res.BytesWritten).
		Int("operations", res.Operations).
		Bool("elevated", res.Elevated).
		Msg("Materialized")
	return res, nil
}

// Close releases the elevated link service if one was acquired. It is safe
// to call on every exit path and more than once.
func (m *Materializer) Close() error {
	if m.handle == nil {
		return nil
	}
	h := m.handle
	m.handle = nil
	if err := h.Close(); err != nil {
		return fmt.Errorf("failed to release elevated link service: %w", err)
	}
	logger := logging.GetLogger("materialize")
	logger.Debug().Msg("Released elevated link service")
	return nil
}

func (m *Materializer) chunkSize() int {
	if m.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return m.ChunkSize
}
