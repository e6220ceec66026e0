package distribution

import (
	"github.com/arthur-debert/distsync/pkg/config"
	"github.com/arthur-debert/distsync/pkg/elevation"
	"github.com/arthur-debert/distsync/pkg/manifest"
	"github.com/arthur-debert/distsync/pkg/materialize"
	"github.com/arthur-debert/distsync/pkg/types"
)

// NewSyncer returns a Syncer configured from cfg.
func NewSyncer(fsys types.FS, cfg *config.Config) *Syncer {
	s := &Syncer{
		FS:              fsys,
		Plugin:          cfg.Launch.Layer(),
		OutputDir:       cfg.OutputDir,
		ContinueOnError: cfg.Sync.ContinueOnError,
		Parallelism:     cfg.Sync.Parallelism,
	}
	if cfg.Elevation.Enabled {
		l := elevation.NewLauncher()
		if len(cfg.Elevation.Command) > 0 {
			l.Elevate = cfg.Elevation.Command
		}
		l.MaxPortAttempts = cfg.Elevation.MaxPortAttempts
		l.StartTimeout = cfg.Elevation.StartTimeout
		s.Elevator = l
	}
	return s
}

// Environments builds pass inputs for the named environments (all when names
// is empty), reading each environment's manifest.
func Environments(fsys types.FS, cfg *config.Config, names []string) ([]Environment, error) {
	selected, err := cfg.Select(names)
	if err != nil {
		return nil, err
	}
	out := make([]Environment, 0, len(selected))
	for _, e := range selected {
		env := Environment{
			Name:         e.Name,
			Root:         e.Root,
			Mode:         materialize.Mode(e.Mode),
			RuntimePaths: e.RuntimePaths,
			Launch:       e.Launch.Layer(),
		}
		if e.Manifest != "" {
			if env.Artifacts, err = manifest.Load(fsys, e.Manifest); err != nil {
				return nil, err
			}
		}
		out = append(out, env)
	}
	return out, nil
}
