package launch

import (
	"sort"
	"strings"

	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/beevik/etree"
	toml "github.com/pelletier/go-toml/v2"
)

// Eclipse launch configuration attribute keys.
const (
	eclipseLaunchType   = "org.eclipse.pde.ui.EquinoxLauncher"
	attrProgramArgs     = "org.eclipse.jdt.launching.PROGRAM_ARGUMENTS"
	attrVMArgs          = "org.eclipse.jdt.launching.VM_ARGUMENTS"
	attrWorkingDir      = "org.eclipse.jdt.launching.WORKING_DIRECTORY"
	attrConfigArea      = "configLocation"
	attrEnvironmentName = "distsync.environment"
)

// ProgramArguments renders program arguments sorted by key. Each entry
// yields the key followed by its value as a separate argument when the
// value is not empty.
func ProgramArguments(cfg types.LaunchConfig) []string {
	var args []string
	for _, k := range sortedKeys(cfg.ProgramArgs) {
		args = append(args, k)
		if v := cfg.ProgramArgs[k]; v != "" {
			args = append(args, v)
		}
	}
	return args
}

// VMArguments renders VM arguments sorted by key. Each entry yields one
// argument made of the key immediately followed by its value, so
// {"-Xmx": "1g"} renders as "-Xmx1g".
func VMArguments(cfg types.LaunchConfig) []string {
	var args []string
	for _, k := range sortedKeys(cfg.VMArgs) {
		args = append(args, k+cfg.VMArgs[k])
	}
	return args
}

type renderedConfig struct {
	ProgramArgs []string `toml:"program_args"`
	VMArgs      []string `toml:"vm_args"`
}

type launchFile struct {
	Environment string                    `toml:"environment"`
	Default     renderedConfig            `toml:"default"`
	Contexts    map[string]renderedConfig `toml:"contexts,omitempty"`
}

func render(cfg types.LaunchConfig) renderedConfig {
	return renderedConfig{
		ProgramArgs: nonNil(ProgramArguments(cfg)),
		VMArgs:      nonNil(VMArguments(cfg)),
	}
}

// RenderTOML renders the resolved launch configuration of an environment.
func RenderTOML(environmentID string, resolved types.ResolvedLaunch) ([]byte, error) {
	file := launchFile{Environment: environmentID, Default: render(resolved.Default)}
	if len(resolved.Contexts) > 0 {
		file.Contexts = make(map[string]renderedConfig, len(resolved.Contexts))
		for ctx, cfg := range resolved.Contexts {
			file.Contexts[string(ctx)] = render(cfg)
		}
	}
	return toml.Marshal(file)
}

// RenderEclipseLaunch renders an Eclipse-style launch configuration that
// starts the environment rooted at root with cfg.
func RenderEclipseLaunch(environmentID, root string, cfg types.LaunchConfig) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="no"`)

	launch := doc.CreateElement("launchConfiguration")
	launch.CreateAttr("type", eclipseLaunchType)

	addString := func(key, value string) {
		attr := launch.CreateElement("stringAttribute")
		attr.CreateAttr("key", key)
		attr.CreateAttr("value", value)
	}
	addString(attrEnvironmentName, environmentID)
	addString(attrConfigArea, root)
	addString(attrProgramArgs, strings.Join(ProgramArguments(cfg), " "))
	addString(attrVMArgs, strings.Join(VMArguments(cfg), " "))
	addString(attrWorkingDir, root)

	doc.Indent(2)
	return doc.WriteToBytes()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
