package launch

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/paths"
	"github.com/arthur-debert/distsync/pkg/types"
)

// CoverageAgentKey is the VM argument key under which the coverage agent is
// injected. Rendering concatenates key and value into one argument.
const CoverageAgentKey = "-javaagent:"

// MergeDefaults combines two optional maps. Keys of overlay replace keys of
// base, including explicit empty values; base-only keys are kept. Nil maps
// are treated as empty and neither input is modified.
func MergeDefaults(base, overlay map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

// MergeConfig merges overlay onto base. Coverage settings in overlay replace
// those of base as a whole.
func MergeConfig(base, overlay types.LaunchConfig) types.LaunchConfig {
	merged := types.LaunchConfig{
		ProgramArgs: MergeDefaults(base.ProgramArgs, overlay.ProgramArgs),
		VMArgs:      MergeDefaults(base.VMArgs, overlay.VMArgs),
		Coverage:    base.Coverage,
	}
	if overlay.Coverage != nil {
		merged.Coverage = overlay.Coverage
	}
	if merged.Coverage != nil {
		c := *merged.Coverage
		merged.Coverage = &c
	}
	return merged
}

// Merger resolves launch layers for one environment.
type Merger struct {
	// EnvironmentID names the environment; it seeds coverage session ids.
	EnvironmentID string
	// OutputDir is the directory under which coverage data is written.
	OutputDir string
	// Now is the clock used for session ids. Defaults to time.Now.
	Now func() time.Time

	mu        sync.Mutex
	lastStamp int64
}

// NewMerger returns a merger for the given environment.
func NewMerger(environmentID, outputDir string) *Merger {
	return &Merger{EnvironmentID: environmentID, OutputDir: outputDir, Now: time.Now}
}

// MergeOverrides resolves the plugin and environment layers. A result entry
// is produced for every usage context overridden in either layer. A context
// declared twice in one layer aborts the merge with ErrDuplicateOverride.
func (m *Merger) MergeOverrides(plugin, env types.LaunchLayer) (types.ResolvedLaunch, error) {
	logger := logging.GetLogger("launch.merge").With().
		Str("environment", m.EnvironmentID).
		Logger()

	pluginOverrides, err := indexOverrides("plugin", plugin.Overrides)
	if err != nil {
		return types.ResolvedLaunch{}, err
	}
	envOverrides, err := indexOverrides("environment "+m.EnvironmentID, env.Overrides)
	if err != nil {
		return types.ResolvedLaunch{}, err
	}

	base := MergeConfig(plugin.Defaults, env.Defaults)

	resolved := types.ResolvedLaunch{Contexts: make(map[types.UsageContext]types.LaunchConfig)}
	if resolved.Default, err = m.withCoverage(base); err != nil {
		return types.ResolvedLaunch{}, err
	}

	for _, ctx := range types.UsageContexts() {
		pluginOverride, inPlugin := pluginOverrides[ctx]
		envOverride, inEnv := envOverrides[ctx]
		if !inPlugin && !inEnv {
			continue
		}
		cfg := MergeConfig(MergeConfig(base, pluginOverride), envOverride)
		if cfg, err = m.withCoverage(cfg); err != nil {
			return types.ResolvedLaunch{}, err
		}
		resolved.Contexts[ctx] = cfg
		logger.Debug().
			Str("context", string(ctx)).
			Bool("pluginOverride", inPlugin).
			Bool("environmentOverride", inEnv).
			Msg("Resolved usage context override")
	}

	return resolved, nil
}

func indexOverrides(layer string, overrides []types.LaunchConfigOverride) (map[types.UsageContext]types.LaunchConfig, error) {
	index := make(map[types.UsageContext]types.LaunchConfig, len(overrides))
	for _, o := range overrides {
		ctx, err := types.ParseUsageContext(string(o.Context))
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigInvalid, "invalid launch override in %s layer", layer).
				WithDetail("layer", layer)
		}
		if _, exists := index[ctx]; exists {
			return nil, errors.Newf(errors.ErrDuplicateOverride,
				"usage context %q is overridden more than once in the %s layer", ctx, layer).
				WithDetail("layer", layer).
				WithDetail("context", string(ctx))
		}
		index[ctx] = o.Config
	}
	return index, nil
}

// withCoverage injects the coverage agent argument when coverage is enabled.
func (m *Merger) withCoverage(cfg types.LaunchConfig) (types.LaunchConfig, error) {
	if cfg.Coverage == nil || !cfg.Coverage.Enabled {
		return cfg, nil
	}
	if strings.TrimSpace(cfg.Coverage.AgentJar) == "" {
		return cfg, errors.Newf(errors.ErrConfigInvalid,
			"coverage is enabled for environment %s but no agent jar is configured", m.EnvironmentID)
	}
	cfg.VMArgs = MergeDefaults(cfg.VMArgs, map[string]string{
		CoverageAgentKey: m.coverageAgentValue(*cfg.Coverage),
	})
	return cfg, nil
}

func (m *Merger) coverageAgentValue(c types.CoverageSettings) string {
	destFile := filepath.Join(m.OutputDir, m.EnvironmentID, paths.CoverageFile)
	var b strings.Builder
	fmt.Fprintf(&b, "%s=destfile=%s,sessionid=%s_%d", c.AgentJar, destFile, m.EnvironmentID, m.nextStamp())
	if c.Append {
		b.WriteString(",append=true")
	}
	if c.Includes != "" {
		b.WriteString(",includes=" + c.Includes)
	}
	if c.Excludes != "" {
		b.WriteString(",excludes=" + c.Excludes)
	}
	return b.String()
}

// nextStamp returns a millisecond timestamp strictly greater than any
// previously returned by this merger.
func (m *Merger) nextStamp() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	stamp := now().UnixMilli()
	if stamp <= m.lastStamp {
		stamp = m.lastStamp + 1
	}
	m.lastStamp = stamp
	return stamp
}
