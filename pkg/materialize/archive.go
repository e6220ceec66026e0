package materialize

import (
	"archive/zip"
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/distsync/pkg/errors"
)

// creatorUnix is the "version made by" host byte for Unix in zip headers.
const creatorUnix = 3

// Extraction is the outcome of ExtractArchive.
type Extraction struct {
	Result
	// Paths lists every file and directory the archive produced, in archive
	// order.
	Paths []string
}

// ExtractArchive materializes the entries of a zip archive below targetDir.
// Each file is written in copy mode, so re-extracting an unchanged archive
// writes nothing. Permission bits are restored only for entries created on a
// Unix host.
func (m *Materializer) ExtractArchive(ctx context.Context, archive, targetDir string) (Extraction, error) {
	var out Extraction

	f, err := m.FS.OpenFile(archive, os.O_RDONLY, 0)
	if err != nil {
		return out, errors.Wrapf(err, errors.ErrUnreadableSource, "cannot open archive %s", archive)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return out, errors.Wrapf(err, errors.ErrUnreadableSource, "cannot stat archive %s", archive)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return out, errors.Wrapf(err, errors.ErrArchiveInvalid, "cannot read archive %s", archive)
	}

	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return out, errors.Wrapf(err, errors.ErrCanceled, "extraction of %s canceled", archive)
		}

		dest, err := entryPath(targetDir, entry.Name)
		if err != nil {
			return out, errors.Wrap(err, errors.ErrArchiveInvalid, "unsafe archive entry").
				WithDetail("archive", archive).
				WithDetail("entry", entry.Name)
		}

		if entry.FileInfo().IsDir() {
			if err := m.FS.MkdirAll(dest, 0755); err != nil {
				return out, errors.Wrapf(err, errors.ErrUnwritableTarget, "cannot create directory %s", dest)
			}
			out.Paths = append(out.Paths, dest)
			continue
		}

		var perm fs.FileMode
		if entry.CreatorVersion>>8 == creatorUnix {
			perm = entry.Mode().Perm()
		}

		rc, err := entry.Open()
		if err != nil {
			return out, errors.Wrapf(err, errors.ErrArchiveInvalid, "cannot open entry %s", entry.Name)
		}
		res, err := m.MaterializeReader(ctx, rc, dest, perm)
		_ = rc.Close()
		out.Add(res)
		if err != nil {
			return out, err
		}
		out.Paths = append(out.Paths, dest)
	}
	return out, nil
}

// entryPath resolves an archive entry name below dir, rejecting names that
// would escape it.
func entryPath(dir, name string) (string, error) {
	slashed := strings.ReplaceAll(name, "\\", "/")
	clean := path.Clean(slashed)
	if path.IsAbs(slashed) || filepath.VolumeName(clean) != "" ||
		clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.Newf(errors.ErrArchiveInvalid, "entry %q escapes the target directory", name)
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), nil
}
