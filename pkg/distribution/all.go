package distribution

import (
	"context"
	stderrors "errors"
	"path/filepath"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// SyncAll synchronizes several environments in parallel, each with its own
// Materializer. Results keep the order of envs. Without ContinueOnError the
// first failure cancels the remaining environments; with it every
// environment runs and the failures are joined.
func (s *Syncer) SyncAll(ctx context.Context, envs []Environment) ([]*SyncResult, error) {
	logger := logging.GetLogger("distribution")

	roots := make(map[string]string, len(envs))
	for _, env := range envs {
		root, _ := filepath.Abs(env.Root)
		if other, dup := roots[root]; dup {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"environments %q and %q share the root %s", other, env.Name, root)
		}
		roots[root] = env.Name
	}

	results := make([]*SyncResult, len(envs))
	errs := make([]error, len(envs))

	var g *errgroup.Group
	gctx := ctx
	if s.ContinueOnError {
		g = &errgroup.Group{}
	} else {
		g, gctx = errgroup.WithContext(ctx)
	}
	limit := s.Parallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, env := range envs {
		i, env := i, env
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = &SyncResult{Environment: env.Name, Root: env.Root, Err: err}
				errs[i] = errors.Wrapf(err, errors.ErrCanceled, "environment %q skipped", env.Name)
				return errs[i]
			}
			res, err := s.Sync(gctx, env)
			if res == nil {
				res = &SyncResult{Environment: env.Name, Root: env.Root}
			}
			res.Err = err
			results[i] = res
			if err != nil {
				logger.Error().Err(err).Str("environment", env.Name).Msg("Synchronization failed")
				errs[i] = err
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !s.ContinueOnError {
		return results, err
	}
	return results, stderrors.Join(errs...)
}
