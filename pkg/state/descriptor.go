package state

import (
	"os"
	"path/filepath"
	"time"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/planner"
	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/pelletier/go-toml/v2"
)

// FormatVersion is written into every descriptor. Descriptors with a
// different version are rejected.
const FormatVersion = 1

// Descriptor is the persisted outcome of one synchronization.
type Descriptor struct {
	Version     int       `toml:"version"`
	Environment string    `toml:"environment"`
	Mode        string    `toml:"mode"`
	RunID       string    `toml:"run_id,omitempty"`
	UpdatedAt   time.Time `toml:"updated_at"`
	Artifacts   []Record  `toml:"artifacts"`
}

// Record is one deployed artifact.
type Record struct {
	Key        types.ArtifactKey     `toml:"key"`
	Source     string                `toml:"source"`
	Target     string                `toml:"target"`
	Signature  types.Signature       `toml:"signature"`
	StartLevel int                   `toml:"start_level,omitempty"`
	Extract    bool                  `toml:"extract,omitempty"`
	Bundle     *types.BundleMetadata `toml:"bundle,omitempty"`
}

// New builds a descriptor for the given deployed artifacts.
func New(environment, mode string, deployed []types.ArtifactDescriptor, now time.Time) *Descriptor {
	d := &Descriptor{
		Version:     FormatVersion,
		Environment: environment,
		Mode:        mode,
		RunID:       logging.RunID(),
		UpdatedAt:   now.UTC(),
		Artifacts:   make([]Record, 0, len(deployed)),
	}
	for _, a := range deployed {
		d.Artifacts = append(d.Artifacts, Record{
			Key:        a.Key,
			Source:     a.Source,
			Target:     a.RelativeTarget(),
			Signature:  a.Signature,
			StartLevel: a.StartLevel,
			Extract:    a.Extract,
			Bundle:     a.Bundle,
		})
	}
	return d
}

// Previous returns the recorded artifacts keyed by identity, ready for
// planning. A nil descriptor yields an empty map.
func (d *Descriptor) Previous() planner.Previous {
	prev := planner.Previous{}
	if d == nil {
		return prev
	}
	for _, r := range d.Artifacts {
		prev[r.Key] = types.ArtifactDescriptor{
			Key:        r.Key,
			Source:     r.Source,
			Target:     r.Target,
			Signature:  r.Signature,
			StartLevel: r.StartLevel,
			Extract:    r.Extract,
			Bundle:     r.Bundle,
		}
	}
	return prev
}

// Load reads the descriptor at path. A missing file means a first run and
// returns (nil, nil).
func Load(fsys types.SourceReader, path string) (*Descriptor, error) {
	logger := logging.GetLogger("state").With().Str("path", path).Logger()

	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Msg("No previous descriptor")
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrStateLoad, "cannot read descriptor %s", path)
	}

	var d Descriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrapf(err, errors.ErrStateLoad, "cannot parse descriptor %s", path)
	}
	if d.Version != FormatVersion {
		return nil, errors.Newf(errors.ErrStateLoad, "descriptor %s has version %d, expected %d", path, d.Version, FormatVersion).
			WithDetail("version", d.Version)
	}

	logger.Debug().
		Str("environment", d.Environment).
		Int("artifacts", len(d.Artifacts)).
		Msg("Descriptor loaded")
	return &d, nil
}

// Save writes the descriptor to path through a temporary file and a rename,
// so a crash never leaves a half-written descriptor behind.
func Save(fsys types.TargetWriter, path string, d *Descriptor) error {
	data, err := toml.Marshal(d)
	if err != nil {
		return errors.Wrap(err, errors.ErrStateWrite, "cannot encode descriptor")
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrStateWrite, "cannot create state directory for %s", path)
	}
	tmp := path + ".tmp"
	if err := fsys.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrStateWrite, "cannot write %s", tmp)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return errors.Wrapf(err, errors.ErrStateWrite, "cannot replace descriptor %s", path)
	}
	return nil
}
