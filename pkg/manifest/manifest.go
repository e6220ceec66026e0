// Package manifest reads the desired artifact list an upstream resolver
// hands to distsync. Manifests are YAML or TOML; source paths are resolved
// relative to the manifest file.
package manifest

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a manifest encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", errors.Newf(errors.ErrInvalidInput, "cannot tell manifest format of %s (use .yaml, .yml or .toml)", path)
}

// Entry is one artifact as written in a manifest.
type Entry struct {
	GroupID      string `yaml:"group_id" toml:"group_id"`
	ArtifactID   string `yaml:"artifact_id" toml:"artifact_id"`
	Version      string `yaml:"version" toml:"version"`
	Type         string `yaml:"type" toml:"type"`
	Classifier   string `yaml:"classifier" toml:"classifier"`
	TargetFolder string `yaml:"target_folder" toml:"target_folder"`
	TargetFile   string `yaml:"target_file" toml:"target_file"`

	Source     string `yaml:"source" toml:"source"`
	Action     string `yaml:"action" toml:"action"`
	StartLevel int    `yaml:"start_level" toml:"start_level"`
	Extract    bool   `yaml:"extract" toml:"extract"`
	// Checksum, when set, replaces the size and modification time signature.
	Checksum string `yaml:"checksum" toml:"checksum"`

	Bundle *types.BundleMetadata `yaml:"bundle" toml:"bundle"`
}

// Manifest is the decoded file.
type Manifest struct {
	Artifacts []Entry `yaml:"artifacts" toml:"artifacts"`
}

// Parse decodes a manifest. Unknown fields are rejected.
func Parse(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil && !stderrors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, errors.ErrConfigParse, "invalid YAML manifest")
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigParse, "invalid TOML manifest")
		}
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown manifest format %q", format)
	}
	return &m, nil
}

// Load reads the manifest at path and turns it into artifact descriptors.
func Load(fsys types.SourceReader, path string) ([]types.ArtifactDescriptor, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "cannot read manifest %s", path)
	}
	m, err := Parse(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "manifest %s", path)
	}
	descriptors, err := m.Descriptors(fsys, filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	logger := logging.GetLogger("manifest")
	logger.Debug().
		Str("path", path).
		Int("artifacts", len(descriptors)).
		Msg("Manifest loaded")
	return descriptors, nil
}

// Descriptors validates the entries, resolves sources against baseDir and
// derives content signatures from the source files.
func (m *Manifest) Descriptors(fsys types.SourceReader, baseDir string) ([]types.ArtifactDescriptor, error) {
	out := make([]types.ArtifactDescriptor, 0, len(m.Artifacts))
	for i, e := range m.Artifacts {
		d, err := e.descriptor(fsys, baseDir)
		if err != nil {
			return nil, errors.Wrapf(err, errors.GetErrorCode(err), "artifact #%d (%s)", i+1, e).
				WithDetail("index", i)
		}
		out = append(out, d)
	}
	return out, nil
}

func (e Entry) descriptor(fsys types.SourceReader, baseDir string) (types.ArtifactDescriptor, error) {
	var missing []string
	if e.GroupID == "" {
		missing = append(missing, "group_id")
	}
	if e.ArtifactID == "" {
		missing = append(missing, "artifact_id")
	}
	if e.Version == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return types.ArtifactDescriptor{}, errors.Newf(errors.ErrConfigInvalid, "missing %s", strings.Join(missing, ", "))
	}

	action, err := types.ParseAction(e.Action)
	if err != nil {
		return types.ArtifactDescriptor{}, errors.Wrap(err, errors.ErrConfigInvalid, "invalid action")
	}

	typ := e.Type
	if typ == "" {
		typ = "jar"
	}
	d := types.ArtifactDescriptor{
		Key: types.ArtifactKey{
			GroupID:      e.GroupID,
			ArtifactID:   e.ArtifactID,
			Version:      e.Version,
			Type:         typ,
			Classifier:   e.Classifier,
			TargetFolder: filepath.ToSlash(e.TargetFolder),
			TargetFile:   e.TargetFile,
		},
		StartLevel: e.StartLevel,
		Action:     action,
		Bundle:     e.Bundle,
		Extract:    e.Extract,
	}

	if action == types.ActionDisable {
		d.Source = e.Source
		return d, nil
	}
	if e.Source == "" {
		return d, errors.New(errors.ErrConfigInvalid, "missing source")
	}
	d.Source = e.Source
	if !filepath.IsAbs(d.Source) {
		d.Source = filepath.Join(baseDir, filepath.FromSlash(d.Source))
	}

	info, err := fsys.Stat(d.Source)
	if err != nil {
		return d, errors.Wrapf(err, errors.ErrUnreadableSource, "cannot stat source %s", d.Source)
	}
	if info.IsDir() {
		return d, errors.Newf(errors.ErrUnreadableSource, "source %s is a directory", d.Source)
	}
	d.Signature = signature(info, e.Checksum)
	return d, nil
}

func signature(info fs.FileInfo, checksum string) types.Signature {
	if checksum != "" {
		return types.Signature{Checksum: strings.ToLower(checksum)}
	}
	return types.SignatureOf(info)
}

// String renders the entry for log messages.
func (e Entry) String() string {
	return fmt.Sprintf("%s:%s:%s", e.GroupID, e.ArtifactID, e.Version)
}
