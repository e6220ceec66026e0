package distribution

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/arthur-debert/distsync/pkg/cleaner"
	"github.com/arthur-debert/distsync/pkg/config"
	"github.com/arthur-debert/distsync/pkg/elevation"
	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/launch"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/materialize"
	"github.com/arthur-debert/distsync/pkg/paths"
	"github.com/arthur-debert/distsync/pkg/planner"
	"github.com/arthur-debert/distsync/pkg/state"
	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/rs/zerolog"
)

// Environment is everything one pass needs to know about an environment.
type Environment struct {
	Name      string
	Root      string
	Mode      materialize.Mode
	Artifacts []types.ArtifactDescriptor
	// RuntimePaths are compiled before anything is written.
	RuntimePaths []string
	Launch       types.LaunchLayer
}

// Syncer synchronizes environments.
type Syncer struct {
	FS types.FS
	// Plugin is the launch layer shared by every environment.
	Plugin types.LaunchLayer
	// OutputDir receives coverage data, one directory per environment.
	OutputDir string
	// Elevator is handed to every environment's Materializer. Nil disables
	// elevated links.
	Elevator elevation.Elevator
	// ChunkSize overrides the copy-mode comparison window.
	ChunkSize int

	// DryRun stops after planning.
	DryRun bool
	// ContinueOnError keeps SyncAll going after an environment fails.
	ContinueOnError bool
	// Parallelism bounds concurrently synchronized environments.
	Parallelism int

	// Now is the clock used for descriptors and coverage session ids.
	Now func() time.Time
}

// SyncResult reports one environment's pass.
type SyncResult struct {
	Environment string
	Root        string
	DryRun      bool

	Plan   *types.ExecutionPlan
	Launch types.ResolvedLaunch

	// Written aggregates materialization of artifacts.
	Written materialize.Result
	// LaunchWritten aggregates writes of launch.toml and the .launch files.
	LaunchWritten materialize.Result
	// Removed lists targets of removed artifacts.
	Removed []string
	// LaunchFiles lists the launch files written.
	LaunchFiles []string
	Cleanup     *cleaner.Report
	Touched     int
	Duration    time.Duration

	// Err is set by SyncAll for a failed environment.
	Err error
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sync runs one pass over env. Configuration problems (invalid runtime
// paths, duplicate artifacts or overrides) abort before anything is
// written.
func (s *Syncer) Sync(ctx context.Context, env Environment) (res *SyncResult, err error) {
	logger := logging.GetLogger("distribution").With().
		Str("environment", env.Name).
		Bool("dryRun", s.DryRun).
		Logger()
	start := time.Now()
	done := logging.LogOperationStart(logger, "sync")
	defer done()

	// 1. Validate everything that can be validated without writing
	layout, err := paths.NewLayout(env.Root)
	if err != nil {
		return nil, err
	}
	patterns, err := config.CompileRuntimePaths(env.RuntimePaths)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidRuntimePath, "environment %q", env.Name)
	}
	mode := env.Mode
	if mode == "" {
		mode = materialize.ModeCopy
	}

	res = &SyncResult{Environment: env.Name, Root: layout.Root(), DryRun: s.DryRun}

	// 2. Previous descriptor
	prev, err := state.Load(s.FS, layout.DescriptorPath())
	if err != nil {
		return res, err
	}

	// 3. Plan and merge launch configuration
	plan, err := planner.Plan(prev.Previous(), env.Artifacts)
	if err != nil {
		return res, errors.Wrapf(err, errors.GetErrorCode(err), "environment %q", env.Name)
	}
	if prev != nil && prev.Mode != "" && prev.Mode != string(mode) {
		promoted := plan.PromoteUnchanged(func(d types.ArtifactDescriptor) bool { return !d.Extract })
		logger.Info().
			Str("from", prev.Mode).
			Str("to", string(mode)).
			Int("artifacts", promoted).
			Msg("Mode changed, rewriting unchanged artifacts")
	}
	res.Plan = plan

	merger := launch.NewMerger(env.Name, s.OutputDir)
	merger.Now = s.now
	resolved, err := merger.MergeOverrides(s.Plugin, env.Launch)
	if err != nil {
		return res, errors.Wrapf(err, errors.GetErrorCode(err), "environment %q", env.Name)
	}
	res.Launch = resolved

	summary := plan.Summary()
	logger.Info().
		Int("install", summary.Install).
		Int("update", summary.Update).
		Int("remove", summary.Remove).
		Int("unchanged", summary.Unchanged).
		Msg("Plan computed")

	if s.DryRun {
		res.Duration = time.Since(start)
		return res, nil
	}

	m := materialize.New(s.FS, s.Elevator)
	if s.ChunkSize > 0 {
		m.ChunkSize = s.ChunkSize
	}
	defer func() {
		if cerr := m.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrLinkCapabilityUnavailable, "failed to release elevated link service")
		}
	}()

	p := &pass{
		fs:      s.FS,
		m:       m,
		mode:    mode,
		layout:  layout,
		touched: types.NewTouchedFileSet(),
		res:     res,
		logger:  logger,
	}

	// 4. Apply the plan
	if err := p.remove(ctx, plan); err != nil {
		return res, err
	}
	for _, d := range plan.Materialize() {
		if err := p.materialize(ctx, d); err != nil {
			return res, err
		}
	}
	for _, d := range plan.Unchanged {
		if err := p.keep(ctx, d); err != nil {
			return res, err
		}
	}

	// 5. Launch files
	if err := p.writeLaunch(ctx, env.Name, resolved); err != nil {
		return res, err
	}

	// 6. Descriptor
	deployed := append(plan.Materialize(), plan.Unchanged...)
	desc := state.New(env.Name, string(mode), deployed, s.now())
	if err := state.Save(s.FS, layout.DescriptorPath(), desc); err != nil {
		return res, err
	}
	p.touched.Touch(layout.DescriptorPath())

	// 7. Sweep
	res.Touched = p.touched.Len()
	report, err := cleaner.Clean(s.FS, layout.Root(), p.touched.Freeze(), patterns, cleaner.Options{})
	res.Cleanup = report
	if err != nil {
		return res, err
	}

	res.Duration = time.Since(start)
	logger.Info().
		Int64("bytes", res.Written.BytesWritten).
		Int64("launchBytes", res.LaunchWritten.BytesWritten).
		Int("operations", res.Written.Operations).
		Int("cleaned", len(report.Deleted)).
		Dur("duration", res.Duration).
		Msg("Environment synchronized")
	return res, nil
}

// pass holds the state of one Sync between plan and sweep.
type pass struct {
	fs      types.FS
	m       *materialize.Materializer
	mode    materialize.Mode
	layout  paths.Layout
	touched *types.TouchedFileSet
	res     *SyncResult
	logger  zerolog.Logger
}

func (p *pass) target(d types.ArtifactDescriptor) (string, error) {
	t, err := p.layout.Resolve(d.RelativeTarget())
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrInvalidInput, "artifact %s", d.Key)
	}
	return t, nil
}

// remove deletes the targets of removed artifacts unless a desired artifact
// now owns the same path. Extracted directories are left to the sweep.
func (p *pass) remove(ctx context.Context, plan *types.ExecutionPlan) error {
	owned := make(map[string]bool)
	for _, d := range append(plan.Materialize(), plan.Unchanged...) {
		if t, err := p.target(d); err == nil {
			owned[t] = true
		}
	}
	var targets []string
	for _, d := range plan.Remove {
		target, err := p.target(d)
		if err != nil {
			return err
		}
		if owned[target] || d.Extract {
			continue
		}
		targets = append(targets, target)
	}

	removed, err := removeTargets(ctx, p.fs, p.layout.Root(), targets)
	p.res.Removed = append(p.res.Removed, removed...)
	for _, target := range removed {
		p.logger.Debug().Str("target", target).Msg("Removed artifact")
	}
	return err
}

func (p *pass) materialize(ctx context.Context, d types.ArtifactDescriptor) error {
	target, err := p.target(d)
	if err != nil {
		return err
	}
	if d.Extract {
		out, err := p.m.ExtractArchive(ctx, d.Source, target)
		p.res.Written.Add(out.Result)
		if err != nil {
			return errors.Wrapf(err, errors.GetErrorCode(err), "artifact %s", d.Key)
		}
		p.touched.Touch(target)
		for _, path := range out.Paths {
			p.touched.Touch(path)
		}
		return nil
	}

	r, err := p.m.Materialize(ctx, d.Source, target, p.mode)
	p.res.Written.Add(r)
	if err != nil {
		return errors.Wrapf(err, errors.GetErrorCode(err), "artifact %s", d.Key)
	}
	p.touched.Touch(target)
	return nil
}

// keep touches an unchanged artifact, restoring it when it went missing or
// no longer has the form the mode requires.
func (p *pass) keep(ctx context.Context, d types.ArtifactDescriptor) error {
	target, err := p.target(d)
	if err != nil {
		return err
	}
	if !d.Extract {
		if p.intact(d, target) {
			p.touched.Touch(target)
			return nil
		}
		p.logger.Info().Str("target", target).Msg("Unchanged artifact is missing or replaced, restoring")
	}
	return p.materialize(ctx, d)
}

// intact reports whether target still holds d in the pass's mode: a link to
// the source in link mode, a regular file otherwise.
func (p *pass) intact(d types.ArtifactDescriptor, target string) bool {
	info, err := p.fs.Lstat(target)
	if err != nil {
		return false
	}
	isLink := info.Mode()&fs.ModeSymlink != 0
	if p.mode == materialize.ModeLink {
		if !isLink {
			return false
		}
		dest, err := p.fs.Readlink(target)
		return err == nil && dest == d.Source
	}
	return !isLink && info.Mode().IsRegular()
}

func (p *pass) writeLaunch(ctx context.Context, envName string, resolved types.ResolvedLaunch) error {
	data, err := launch.RenderTOML(envName, resolved)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot render launch configuration")
	}
	if err := p.writeFile(ctx, p.layout.LaunchPath(), data); err != nil {
		return err
	}

	for _, uc := range types.UsageContexts() {
		xml, err := launch.RenderEclipseLaunch(envName, p.layout.Root(), resolved.For(uc))
		if err != nil {
			return errors.Wrapf(err, errors.ErrInternal, "cannot render %s launch file", uc)
		}
		if err := p.writeFile(ctx, p.layout.LaunchXMLPath(string(uc)), xml); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) writeFile(ctx context.Context, path string, data []byte) error {
	r, err := p.m.MaterializeReader(ctx, bytes.NewReader(data), path, 0644)
	p.res.LaunchWritten.Add(r)
	if err != nil {
		return errors.Wrapf(err, errors.GetErrorCode(err), "cannot write %s", path)
	}
	p.touched.Touch(path)
	p.res.LaunchFiles = append(p.res.LaunchFiles, path)
	return nil
}

// String is a one-line summary for logs.
func (r *SyncResult) String() string {
	if r.Plan == nil {
		return fmt.Sprintf("%s: not planned", r.Environment)
	}
	s := r.Plan.Summary()
	return fmt.Sprintf("%s: %d installed, %d updated, %d removed, %d unchanged",
		r.Environment, s.Install, s.Update, s.Remove, s.Unchanged)
}
