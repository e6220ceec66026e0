package cleaner

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/rs/zerolog"
)

// Reasons an entry survived cleanup.
const (
	KeptTouched  = "touched"
	KeptRuntime  = "runtime"
	KeptNotEmpty = "not-empty"
)

// Options controls a cleanup.
type Options struct {
	// DryRun reports what would be deleted without deleting it.
	DryRun bool
}

// Entry is one path visited by the cleaner.
type Entry struct {
	Path string
	// Rel is slash-separated and relative to the root; directories end
	// with "/".
	Rel   string
	IsDir bool
	// Reason is set on kept entries.
	Reason string
}

// Report lists what a cleanup deleted and kept, in walk order.
type Report struct {
	Root    string
	DryRun  bool
	Deleted []Entry
	Kept    []Entry
}

// DeletedPaths returns the absolute paths of deleted entries.
func (r *Report) DeletedPaths() []string {
	out := make([]string, 0, len(r.Deleted))
	for _, e := range r.Deleted {
		out = append(out, e.Path)
	}
	return out
}

type walker struct {
	fs       types.FS
	touched  *types.TouchedFileSet
	patterns []types.RuntimePathPattern
	opts     Options
	report   *Report
	logger   zerolog.Logger
}

// Clean sweeps root. touched must be frozen; a nil set counts as empty. A
// missing root is not an error.
func Clean(fsys types.FS, root string, touched *types.TouchedFileSet, patterns []types.RuntimePathPattern, opts Options) (*Report, error) {
	logger := logging.GetLogger("cleaner").With().
		Str("root", root).
		Bool("dryRun", opts.DryRun).
		Logger()

	if touched != nil && !touched.Frozen() {
		return nil, errors.New(errors.ErrInternal, "touched file set must be frozen before cleanup")
	}

	report := &Report{Root: root, DryRun: opts.DryRun}
	info, err := fsys.Lstat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return nil, errors.Wrapf(err, errors.ErrCleanup, "cannot stat %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrCleanup, "cleanup root %s is not a directory", root)
	}

	w := &walker{
		fs:       fsys,
		touched:  touched,
		patterns: patterns,
		opts:     opts,
		report:   report,
		logger:   logger,
	}
	if _, err := w.children(root, ""); err != nil {
		return report, err
	}

	logger.Info().
		Int("deleted", len(report.Deleted)).
		Int("kept", len(report.Kept)).
		Msg("Cleanup complete")
	return report, nil
}

// children visits the entries of dir and reports whether all of them were
// removed.
func (w *walker) children(dir, rel string) (bool, error) {
	entries, err := w.fs.ReadDir(dir)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrCleanup, "cannot list %s", dir)
	}
	all := true
	for _, e := range entries {
		isDir := e.IsDir() && e.Type()&fs.ModeSymlink == 0
		childRel := rel + e.Name()
		if isDir {
			childRel += "/"
		}
		removed, err := w.visit(filepath.Join(dir, e.Name()), childRel, isDir)
		if err != nil {
			return false, err
		}
		if !removed {
			all = false
		}
	}
	return all, nil
}

// visit returns whether the entry was (or in a dry run would be) removed.
// Symbolic links are treated as files and never followed.
func (w *walker) visit(path, rel string, isDir bool) (bool, error) {
	entry := Entry{Path: path, Rel: rel, IsDir: isDir}
	runtime := types.MatchAny(w.patterns, rel)

	emptied := true
	if isDir {
		var err error
		if emptied, err = w.children(path, rel); err != nil {
			return false, err
		}
	}

	switch {
	case runtime:
		return w.keep(entry, KeptRuntime), nil
	case w.touched.Contains(path):
		return w.keep(entry, KeptTouched), nil
	case !emptied:
		return w.keep(entry, KeptNotEmpty), nil
	}

	if !w.opts.DryRun {
		if err := w.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, errors.Wrapf(err, errors.ErrCleanup, "cannot remove %s", path)
		}
	}
	w.logger.Debug().Str("path", rel).Msg("Removed")
	w.report.Deleted = append(w.report.Deleted, entry)
	return true, nil
}

func (w *walker) keep(e Entry, reason string) bool {
	e.Reason = reason
	w.report.Kept = append(w.report.Kept, e)
	return false
}
