package materialize

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arthur-debert/distsync/pkg/errors"
)

const defaultFilePerm fs.FileMode = 0644

func (m *Materializer) copyFile(ctx context.Context, source, target string) (Result, error) {
	info, err := m.FS.Stat(source)
	if err != nil {
		return Result{}, errors.Wrapf(err, errors.ErrUnreadableSource, "cannot stat source %s", source)
	}
	if info.IsDir() {
		return Result{}, errors.Newf(errors.ErrUnreadableSource, "source %s is a directory", source)
	}

	r, err := m.FS.Open(source)
	if err != nil {
		return Result{}, errors.Wrapf(err, errors.ErrUnreadableSource, "cannot open source %s", source)
	}
	defer func() { _ = r.Close() }()

	return m.MaterializeReader(ctx, r, target, info.Mode().Perm())
}

// MaterializeReader writes the bytes of r into target in copy mode. A
// symbolic link at target is removed first. perm is applied to the target
// when non-zero; zero creates new files with 0644 and leaves existing modes
// alone.
func (m *Materializer) MaterializeReader(ctx context.Context, r io.Reader, target string, perm fs.FileMode) (Result, error) {
	var res Result

	created := false
	info, err := m.FS.Lstat(target)
	switch {
	case err == nil && info.Mode()&fs.ModeSymlink != 0:
		if err := m.FS.Remove(target); err != nil {
			return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot remove link at %s", target)
		}
		res.Operations++
		created = true
	case err == nil && info.IsDir():
		return res, errors.Newf(errors.ErrUnwritableTarget, "target %s is a directory", target)
	case err != nil && os.IsNotExist(err):
		created = true
	case err != nil:
		return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot stat target %s", target)
	}

	if created {
		if err := m.FS.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot create directory for %s", target)
		}
	}

	createPerm := perm
	if createPerm == 0 {
		createPerm = defaultFilePerm
	}
	f, err := m.FS.OpenFile(target, os.O_RDWR|os.O_CREATE, createPerm)
	if err != nil {
		return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot open target %s", target)
	}
	defer func() { _ = f.Close() }()
	if created {
		res.Operations++
	}

	stat, err := f.Stat()
	if err != nil {
		return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot stat target %s", target)
	}
	existing := stat.Size()

	size := m.chunkSize()
	src := make([]byte, size)
	cur := make([]byte, size)
	var offset int64

	for {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrapf(err, errors.ErrCanceled, "materialization of %s canceled", target)
		}

		n, readErr := io.ReadFull(r, src)
		if n > 0 {
			have := 0
			if offset < existing {
				have, err = f.ReadAt(cur[:n], offset)
				if err != nil && err != io.EOF {
					return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot read back target %s", target)
				}
			}
			if lo, hi, differs := diffRange(src[:n], cur[:have]); differs {
				if _, err := f.WriteAt(src[lo:hi], offset+int64(lo)); err != nil {
					return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot write target %s", target)
				}
				res.BytesWritten += int64(hi - lo)
				res.ChunksWritten++
				res.Operations++
			}
			offset += int64(n)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return res, errors.Wrapf(readErr, errors.ErrUnreadableSource, "cannot read source for %s", target)
		}
	}

	if existing > offset {
		if err := f.Truncate(offset); err != nil {
			return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot truncate target %s", target)
		}
		res.Truncated = true
		res.Operations++
	}

	if perm != 0 && stat.Mode().Perm() != perm.Perm() {
		if err := m.FS.Chmod(target, perm.Perm()); err != nil {
			return res, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot set mode of %s", target)
		}
		if !created {
			res.Operations++
		}
	}

	return res, nil
}

// diffRange returns the smallest range [lo, hi) of src that differs from cur.
// Bytes of src beyond len(cur) always differ.
func diffRange(src, cur []byte) (lo, hi int, differs bool) {
	common := len(cur)
	if common > len(src) {
		common = len(src)
	}
	if common == len(src) && bytes.Equal(src, cur[:common]) {
		return 0, 0, false
	}

	lo = 0
	for lo < common && src[lo] == cur[lo] {
		lo++
	}
	hi = len(src)
	if common == len(src) {
		for hi > lo && src[hi-1] == cur[hi-1] {
			hi--
		}
	}
	return lo, hi, true
}
