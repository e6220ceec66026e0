package distribution

import (
	"context"
	"os"
	"path/filepath"

	"github.com/arthur-debert/distsync/pkg/cleaner"
	"github.com/arthur-debert/distsync/pkg/config"
	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/paths"
	"github.com/arthur-debert/distsync/pkg/state"
	"github.com/arthur-debert/distsync/pkg/types"
)

// Clean sweeps env's root against what the last synchronization recorded,
// without planning or writing anything. Extracted archive contents are kept
// as they are found on disk. An environment that was never synchronized is
// refused with ErrNotFound.
func (s *Syncer) Clean(ctx context.Context, env Environment) (*cleaner.Report, error) {
	logger := logging.GetLogger("distribution").With().
		Str("environment", env.Name).
		Bool("dryRun", s.DryRun).
		Logger()
	done := logging.LogOperationStart(logger, "clean")
	defer done()

	layout, err := paths.NewLayout(env.Root)
	if err != nil {
		return nil, err
	}
	patterns, err := config.CompileRuntimePaths(env.RuntimePaths)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidRuntimePath, "environment %q", env.Name)
	}

	desc, err := state.Load(s.FS, layout.DescriptorPath())
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errors.Newf(errors.ErrNotFound,
			"environment %q has never been synchronized", env.Name).
			WithDetail("root", layout.Root())
	}

	touched := types.NewTouchedFileSet()
	touched.Touch(layout.DescriptorPath())
	touched.Touch(layout.LaunchPath())
	for _, uc := range types.UsageContexts() {
		touched.Touch(layout.LaunchXMLPath(string(uc)))
	}
	for _, d := range desc.Previous() {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCanceled, "clean canceled")
		}
		target, err := layout.Resolve(d.RelativeTarget())
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrInvalidInput, "artifact %s", d.Key)
		}
		touched.Touch(target)
		if d.Extract {
			if err := s.touchTree(target, touched); err != nil {
				return nil, err
			}
		}
	}

	return cleaner.Clean(s.FS, layout.Root(), touched.Freeze(), patterns, cleaner.Options{DryRun: s.DryRun})
}

// touchTree touches everything below dir without following symlinks.
func (s *Syncer) touchTree(dir string, touched *types.TouchedFileSet) error {
	entries, err := s.FS.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrCleanup, "cannot read %s", dir)
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		touched.Touch(p)
		if e.IsDir() {
			if err := s.touchTree(p, touched); err != nil {
				return err
			}
		}
	}
	return nil
}
