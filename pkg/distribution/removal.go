package distribution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/arthur-debert/synthfs/pkg/synthfs"
	"github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"
)

// removeTargets deletes targets as one synthfs pipeline, in order, stopping
// at the first failure. Each operation removes through fsys, so in-memory
// roots behave like real ones. Targets already gone count as removed. It
// returns the targets that were removed.
func removeTargets(ctx context.Context, fsys types.FS, root string, targets []string) ([]string, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	sfs := synthfs.New()
	ops := make([]synthfs.Operation, 0, len(targets))
	byID := make(map[synthfs.OperationID]string, len(targets))
	for i, target := range targets {
		target := target
		id := fmt.Sprintf("remove_%d_%s", i, filepath.Base(target))
		op := sfs.CustomOperationWithID(id, func(ctx context.Context, _ filesystem.FileSystem) error {
			if err := fsys.Remove(target); err != nil && !os.IsNotExist(err) {
				return err
			}
			return nil
		})
		ops = append(ops, op)
		byID[op.ID()] = target
	}

	var base filesystem.FullFileSystem = synthfs.NewPathAwareFileSystem(filesystem.NewOSFileSystem(root), root).WithAbsolutePaths()
	options := synthfs.DefaultPipelineOptions()
	result, runErr := synthfs.RunWithOptions(ctx, base, options, ops...)

	var removed []string
	failed := ""
	if result != nil {
		for _, r := range result.GetOperations() {
			opResult, ok := r.(synthfs.OperationResult)
			if !ok {
				continue
			}
			target, known := byID[opResult.OperationID]
			if !known {
				continue
			}
			if opResult.Status == synthfs.StatusSuccess {
				removed = append(removed, target)
			} else if failed == "" {
				failed = target
			}
		}
	}
	if runErr != nil {
		if failed == "" {
			failed = root
		}
		return removed, errors.Wrapf(runErr, errors.ErrUnwritableTarget, "cannot remove %s", failed)
	}
	return removed, nil
}
