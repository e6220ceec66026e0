package types

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// ArtifactKey is the identity of one deployed unit. Two artifacts with equal
// keys are the same unit; the struct is comparable and used directly as a
// map key.
type ArtifactKey struct {
	GroupID      string `toml:"group_id" yaml:"group_id"`
	ArtifactID   string `toml:"artifact_id" yaml:"artifact_id"`
	Version      string `toml:"version" yaml:"version"`
	Type         string `toml:"type" yaml:"type"`
	Classifier   string `toml:"classifier,omitempty" yaml:"classifier,omitempty"`
	TargetFolder string `toml:"target_folder,omitempty" yaml:"target_folder,omitempty"`
	TargetFile   string `toml:"target_file,omitempty" yaml:"target_file,omitempty"`
}

// String renders the key as group:artifact:type[:classifier]:version, followed
// by the target location when one is set.
func (k ArtifactKey) String() string {
	var b strings.Builder
	b.WriteString(k.GroupID)
	b.WriteByte(':')
	b.WriteString(k.ArtifactID)
	b.WriteByte(':')
	b.WriteString(k.Type)
	if k.Classifier != "" {
		b.WriteByte(':')
		b.WriteString(k.Classifier)
	}
	b.WriteByte(':')
	b.WriteString(k.Version)
	if k.TargetFolder != "" || k.TargetFile != "" {
		b.WriteString(" -> ")
		b.WriteString(path.Join(k.TargetFolder, k.TargetFile))
	}
	return b.String()
}

// Signature is the content metadata the planner compares to decide whether
// an artifact present in both states needs to be rewritten.
type Signature struct {
	Size     int64  `toml:"size" yaml:"size"`
	ModTime  int64  `toml:"mod_time" yaml:"mod_time"`
	Checksum string `toml:"checksum,omitempty" yaml:"checksum,omitempty"`
}

// SignatureOf derives a size and modification-time signature from file info.
func SignatureOf(info fs.FileInfo) Signature {
	return Signature{Size: info.Size(), ModTime: info.ModTime().UnixNano()}
}

// IsZero reports whether no content metadata is known.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// Action is the caller-supplied intent for an artifact.
type Action string

const (
	// ActionAuto lets the planner decide from the previous state.
	ActionAuto Action = ""
	// ActionInstall forces the artifact to be rewritten even when unchanged.
	ActionInstall Action = "install"
	// ActionDisable keeps the artifact out of the environment.
	ActionDisable Action = "disable"
)

// ParseAction parses an action name. The empty string and "auto" map to
// ActionAuto.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ActionAuto, nil
	case "install":
		return ActionInstall, nil
	case "disable", "disabled", "uninstall":
		return ActionDisable, nil
	default:
		return ActionAuto, fmt.Errorf("unknown artifact action %q", s)
	}
}

// BundleMetadata is present on artifacts that are deployed as bundles into a
// framework. The fields are carried through untouched.
type BundleMetadata struct {
	SymbolicName string `toml:"symbolic_name" yaml:"symbolic_name"`
	Version      string `toml:"version" yaml:"version"`
	AutoStart    bool   `toml:"auto_start" yaml:"auto_start"`
}

// ArtifactDescriptor is one desired artifact: its identity, where its bytes
// come from and where they go inside the environment root.
type ArtifactDescriptor struct {
	Key ArtifactKey
	// Source is the local file the artifact was resolved to.
	Source string
	// Target is the path relative to the environment root. When empty it
	// is derived from the key's target folder and file.
	Target     string
	Signature  Signature
	StartLevel int
	Action     Action
	// Bundle is nil for plain artifacts.
	Bundle *BundleMetadata
	// Extract materializes the contents of a zip archive into the target
	// folder instead of the archive file itself.
	Extract bool
}

// IsBundle reports whether bundle metadata is attached.
func (d ArtifactDescriptor) IsBundle() bool {
	return d.Bundle != nil
}

// RelativeTarget returns the slash-separated target path relative to the
// environment root.
func (d ArtifactDescriptor) RelativeTarget() string {
	if d.Target != "" {
		return filepath.ToSlash(d.Target)
	}
	file := d.Key.TargetFile
	if file == "" && !d.Extract {
		file = filepath.Base(d.Source)
	}
	return path.Join(d.Key.TargetFolder, file)
}
