package types

import (
	"fmt"
	"strings"
)

// UsageContext names the scenario a launch configuration override applies to.
type UsageContext string

const (
	// ContextIDE is interactive use from a development environment.
	ContextIDE UsageContext = "ide"
	// ContextTest is automated integration-test use.
	ContextTest UsageContext = "test"
	// ContextTemplated is used when expanding templated configuration files.
	ContextTemplated UsageContext = "templated"
)

// UsageContexts lists every known context in a stable order.
func UsageContexts() []UsageContext {
	return []UsageContext{ContextIDE, ContextTest, ContextTemplated}
}

// ParseUsageContext parses a usage context name, case-insensitively.
func ParseUsageContext(s string) (UsageContext, error) {
	switch UsageContext(strings.ToLower(strings.TrimSpace(s))) {
	case ContextIDE:
		return ContextIDE, nil
	case ContextTest:
		return ContextTest, nil
	case ContextTemplated:
		return ContextTemplated, nil
	}
	return "", fmt.Errorf("unknown usage context %q (expected one of ide, test, templated)", s)
}

// CoverageSettings configures a code-coverage agent attached to the VM.
type CoverageSettings struct {
	Enabled bool `koanf:"enabled" toml:"enabled"`
	// AgentJar is the resolved path of the agent binary.
	AgentJar string `koanf:"agent_jar" toml:"agent_jar"`
	Append   bool   `koanf:"append" toml:"append"`
	Includes string `koanf:"includes" toml:"includes,omitempty"`
	Excludes string `koanf:"excludes" toml:"excludes,omitempty"`
}

// LaunchConfig holds program and VM arguments. A key that is present with an
// empty value is an explicit empty value, distinct from an absent key.
type LaunchConfig struct {
	ProgramArgs map[string]string `koanf:"program_args" toml:"program_args"`
	VMArgs      map[string]string `koanf:"vm_args" toml:"vm_args"`
	Coverage    *CoverageSettings `koanf:"coverage" toml:"coverage,omitempty"`
}

// LaunchConfigOverride is a partial LaunchConfig applying to one usage context.
type LaunchConfigOverride struct {
	Context UsageContext
	Config  LaunchConfig
}

// LaunchLayer is one precedence layer: defaults plus per-context overrides.
type LaunchLayer struct {
	Defaults  LaunchConfig
	Overrides []LaunchConfigOverride
}

// ResolvedLaunch is the merge result for one environment.
type ResolvedLaunch struct {
	// Default applies when no usage context override exists.
	Default  LaunchConfig
	Contexts map[UsageContext]LaunchConfig
}

// For returns the configuration for a context, falling back to Default.
func (r ResolvedLaunch) For(ctx UsageContext) LaunchConfig {
	if cfg, ok := r.Contexts[ctx]; ok {
		return cfg
	}
	return r.Default
}
