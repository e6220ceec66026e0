// Package paths provides centralized path handling for distsync.
// It resolves XDG base directories for the tool's own files and describes
// the fixed layout distsync maintains inside every environment root.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/distsync/pkg/errors"
)

// Environment variable names
const (
	// EnvConfigFile points at an explicit configuration file
	EnvConfigFile = "DISTSYNC_CONFIG"

	// EnvConfigDir overrides the XDG config directory for distsync
	EnvConfigDir = "DISTSYNC_CONFIG_DIR"
)

// Fixed names inside an environment root. These define distsync's own
// bookkeeping and are not user-configurable.
const (
	// AppDirName is the directory name for distsync-specific files
	AppDirName = "distsync"

	// StateDirName is the bookkeeping directory inside an environment root
	StateDirName = ".distsync"

	// DescriptorFile records the artifacts of the last successful pass
	DescriptorFile = "state.toml"

	// LaunchFile holds the merged launch configuration
	LaunchFile = "launch.toml"

	// LaunchXMLSuffix is appended to usage context names for IDE launch files
	LaunchXMLSuffix = ".launch"

	// CoverageFile is the coverage agent's output file name
	CoverageFile = "jacoco.exec"
)

// ConfigFileNames are searched in order in a directory.
var ConfigFileNames = []string{"distsync.toml", ".distsync.toml", "distsync.yaml", "distsync.yml"}

// ConfigDir returns the directory holding user-level configuration.
func ConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	xdg.Reload()
	return filepath.Join(xdg.ConfigHome, AppDirName)
}

// FindConfigFile returns the first configuration file found in dir, or "".
func FindConfigFile(dir string) string {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// Layout describes where distsync keeps its files inside one environment root.
type Layout struct {
	root string
}

// NewLayout returns the layout for an environment root, made absolute.
func NewLayout(root string) (Layout, error) {
	if strings.TrimSpace(root) == "" {
		return Layout{}, errors.New(errors.ErrInvalidInput, "environment root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, errors.Wrapf(err, errors.ErrInvalidInput, "cannot resolve environment root %s", root)
	}
	return Layout{root: abs}, nil
}

// Root returns the absolute environment root.
func (l Layout) Root() string {
	return l.root
}

// StateDir returns the bookkeeping directory.
func (l Layout) StateDir() string {
	return filepath.Join(l.root, StateDirName)
}

// DescriptorPath returns the persisted descriptor location.
func (l Layout) DescriptorPath() string {
	return filepath.Join(l.StateDir(), DescriptorFile)
}

// LaunchPath returns the merged launch configuration location.
func (l Layout) LaunchPath() string {
	return filepath.Join(l.root, LaunchFile)
}

// LaunchXMLPath returns the IDE launch file for a usage context.
func (l Layout) LaunchXMLPath(context string) string {
	return filepath.Join(l.root, context+LaunchXMLSuffix)
}

// Resolve joins a slash-separated relative target onto the root and rejects
// targets that escape it.
func (l Layout) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) || filepath.IsAbs(filepath.FromSlash(rel)) {
		return "", errors.Newf(errors.ErrInvalidInput, "target %s must be relative to the environment root", rel)
	}
	joined := filepath.Join(l.root, filepath.FromSlash(rel))
	back, err := filepath.Rel(l.root, joined)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrInvalidInput, "target %s escapes environment root %s", rel, l.root)
	}
	return joined, nil
}

// Relative returns the slash-separated path of abs relative to the root.
func (l Layout) Relative(abs string) (string, error) {
	rel, err := filepath.Rel(l.root, abs)
	if err != nil {
		return "", fmt.Errorf("path %s is not below %s: %w", abs, l.root, err)
	}
	return filepath.ToSlash(rel), nil
}
