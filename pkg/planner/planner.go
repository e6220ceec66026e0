// Package planner classifies desired artifacts against the artifacts of a
// previous pass. It is a pure set operation: no filesystem access, no
// logging side effects beyond debug output.
package planner

import (
	"sort"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/types"
)

// Previous is the state of the last pass: the artifacts it deployed keyed by
// identity.
type Previous map[types.ArtifactKey]types.ArtifactDescriptor

// Plan partitions desired artifacts into install, update, remove and
// unchanged buckets.
//
// A desired artifact whose key is in previous is an update when the
// signatures differ and unchanged otherwise; one that is absent is an
// install. Keys only in previous are removed. Disabled artifacts are never
// installed and are removed when previously deployed; artifacts with an
// explicit install action are rewritten even when unchanged.
//
// A key appearing twice in desired fails with ErrDuplicateArtifact before
// any plan is returned.
func Plan(previous Previous, desired []types.ArtifactDescriptor) (*types.ExecutionPlan, error) {
	logger := logging.GetLogger("planner")

	if err := checkDuplicates(desired); err != nil {
		return nil, err
	}

	remaining := make(map[types.ArtifactKey]types.ArtifactDescriptor, len(previous))
	for k, v := range previous {
		remaining[k] = v
	}

	plan := &types.ExecutionPlan{}
	for _, d := range desired {
		prev, existed := remaining[d.Key]
		delete(remaining, d.Key)

		switch {
		case d.Action == types.ActionDisable:
			if existed {
				plan.Remove = append(plan.Remove, prev)
			}
		case !existed:
			plan.Install = append(plan.Install, d)
		case d.Action == types.ActionInstall || prev.Signature != d.Signature:
			plan.Update = append(plan.Update, d)
		default:
			plan.Unchanged = append(plan.Unchanged, d)
		}
	}

	stale := make([]types.ArtifactDescriptor, 0, len(remaining))
	for _, prev := range remaining {
		stale = append(stale, prev)
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].Key.String() < stale[j].Key.String()
	})
	plan.Remove = append(plan.Remove, stale...)

	summary := plan.Summary()
	logger.Debug().
		Int("install", summary.Install).
		Int("update", summary.Update).
		Int("remove", summary.Remove).
		Int("unchanged", summary.Unchanged).
		Msg("Execution plan computed")

	return plan, nil
}

func checkDuplicates(desired []types.ArtifactDescriptor) error {
	seen := make(map[types.ArtifactKey]int, len(desired))
	for i, d := range desired {
		if first, dup := seen[d.Key]; dup {
			return errors.Newf(errors.ErrDuplicateArtifact,
				"artifact %s is declared more than once", d.Key).
				WithDetail("key", d.Key.String()).
				WithDetail("first", first).
				WithDetail("second", i)
		}
		seen[d.Key] = i
	}
	return nil
}

// Keys returns the identities in previous, for callers that only need the
// key set.
func (p Previous) Keys() []types.ArtifactKey {
	keys := make([]types.ArtifactKey, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
