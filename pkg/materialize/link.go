package materialize

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
)

func (m *Materializer) link(ctx context.Context, source, target string) (Result, error) {
	var res Result

	if _, err := m.FS.Stat(source); err != nil {
		return res, errors.Wrapf(err, errors.ErrUnreadableSource, "cannot stat link source %s", source)
	}

	info, err := m.FS.Lstat(target)
	switch {
	case err == nil && info.Mode()&fs.ModeSymlink != 0:
		if current, rerr := m.FS.Readlink(target); rerr == nil && current == source {
			return res, nil
		}
		if err := m.FS.Remove(target); err != nil {
			return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot remove stale link %s", target)
		}
		res.Operations++
	case err == nil && info.IsDir():
		return res, errors.Newf(errors.ErrUnwritableTarget, "target %s is a directory", target)
	case err == nil:
		if err := m.FS.Remove(target); err != nil {
			return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot replace file %s with a link", target)
		}
		res.Operations++
	case !os.IsNotExist(err):
		return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot stat target %s", target)
	}

	if err := m.FS.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot create directory for %s", target)
	}

	err = m.FS.Symlink(source, target)
	if err == nil {
		res.Operations++
		return res, nil
	}
	if !isLinkDenied(err) {
		return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot create link %s", target)
	}

	logger := logging.GetLogger("materialize")
	logger.Info().
		Err(err).
		Str("target", target).
		Msg("Symbolic link denied, using elevated link service")

	if err := m.elevatedLink(ctx, source, target); err != nil {
		return res, err
	}
	res.Operations++
	res.Elevated = true
	return res, nil
}

// elevatedLink creates the link through the elevated link service,
// acquiring it on first use.
func (m *Materializer) elevatedLink(ctx context.Context, source, target string) error {
	if m.handle == nil {
		if m.Elevator == nil {
			return errors.Newf(errors.ErrLinkCapabilityUnavailable,
				"symbolic link creation denied for %s and no elevation is configured", target).
				WithReason(errors.ReasonUnsupportedPlatform)
		}
		h, err := m.Elevator.Acquire(ctx)
		if err != nil {
			if errors.IsErrorCode(err, errors.ErrLinkCapabilityUnavailable) {
				return err
			}
			return errors.Wrap(err, errors.ErrLinkCapabilityUnavailable, "cannot acquire elevated link service").
				WithReason(errors.ReasonHelperStartFailed)
		}
		m.handle = h
	}
	if err := m.handle.CreateLink(ctx, source, target); err != nil {
		return errors.Wrapf(err, errors.ErrUnwritableTarget, "elevated link service failed to link %s", target)
	}
	return nil
}
