package config

import (
	"sort"
	"time"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/types"
)

// Config is the decoded configuration.
type Config struct {
	Mode      string `koanf:"mode"`
	OutputDir string `koanf:"output_dir"`

	Sync      SyncConfig      `koanf:"sync"`
	Elevation ElevationConfig `koanf:"elevation"`

	// Launch is the plugin-wide launch layer shared by all environments.
	Launch LaunchLayerConfig `koanf:"launch"`

	Environments map[string]*Environment `koanf:"environments"`

	// Path is the configuration file that was loaded, "" for defaults only.
	Path string `koanf:"-"`
	// BaseDir anchors relative paths: the configuration file's directory, or
	// the working directory.
	BaseDir string `koanf:"-"`
}

// SyncConfig controls multi-environment runs.
type SyncConfig struct {
	Parallelism     int  `koanf:"parallelism"`
	ContinueOnError bool `koanf:"continue_on_error"`
}

// ElevationConfig controls the elevated link service.
type ElevationConfig struct {
	Enabled         bool          `koanf:"enabled"`
	MaxPortAttempts int           `koanf:"max_port_attempts"`
	StartTimeout    time.Duration `koanf:"start_timeout"`
	Command         []string      `koanf:"command"`
}

// LaunchLayerConfig is one launch precedence layer as written in the file.
type LaunchLayerConfig struct {
	Defaults  types.LaunchConfig `koanf:"defaults"`
	Overrides []OverrideConfig   `koanf:"overrides"`
}

// OverrideConfig is a usage-context override as written in the file.
type OverrideConfig struct {
	Context            types.UsageContext `koanf:"context"`
	types.LaunchConfig `koanf:",squash"`
}

// Layer converts the file form into a merger layer.
func (l LaunchLayerConfig) Layer() types.LaunchLayer {
	layer := types.LaunchLayer{Defaults: l.Defaults}
	for _, o := range l.Overrides {
		layer.Overrides = append(layer.Overrides, types.LaunchConfigOverride{
			Context: o.Context,
			Config:  o.LaunchConfig,
		})
	}
	return layer
}

// Environment is one named distribution target.
type Environment struct {
	// Name is the key under [environments].
	Name string `koanf:"-"`
	// Root is the directory the environment is materialized into.
	Root string `koanf:"root"`
	// Mode overrides the top-level mode.
	Mode string `koanf:"mode"`
	// Manifest lists the desired artifacts.
	Manifest string `koanf:"manifest"`
	// RuntimePaths are regular expressions over root-relative paths that
	// cleanup must keep.
	RuntimePaths []string          `koanf:"runtime_paths"`
	Launch       LaunchLayerConfig `koanf:"launch"`

	// Patterns holds the compiled RuntimePaths.
	Patterns []types.RuntimePathPattern `koanf:"-"`
}

// EnvironmentNames returns the configured environment names sorted.
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Environment returns a configured environment by name.
func (c *Config) Environment(name string) (*Environment, error) {
	env, ok := c.Environments[name]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "environment %q is not configured", name).
			WithDetail("available", c.EnvironmentNames())
	}
	return env, nil
}

// Select returns the named environments, or all of them sorted by name when
// names is empty.
func (c *Config) Select(names []string) ([]*Environment, error) {
	if len(names) == 0 {
		names = c.EnvironmentNames()
	}
	out := make([]*Environment, 0, len(names))
	for _, name := range names {
		env, err := c.Environment(name)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}
