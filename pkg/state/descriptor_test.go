package state

import (
	"testing"
	"time"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/filesystem"
	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func artifact(id, version string) types.ArtifactDescriptor {
	return types.ArtifactDescriptor{
		Key: types.ArtifactKey{
			GroupID:      "org.example",
			ArtifactID:   id,
			Version:      version,
			Type:         "jar",
			TargetFolder: "plugins",
		},
		Source:    "/repo/" + id + "-" + version + ".jar",
		Signature: types.Signature{Size: 42, ModTime: 1700000000},
	}
}

func TestSaveAndLoad(t *testing.T) {
	fsys := filesystem.NewMemory()
	bundle := artifact("core", "1.0")
	bundle.Bundle = &types.BundleMetadata{SymbolicName: "org.example.core", Version: "1.0.0", AutoStart: true}
	bundle.StartLevel = 4
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d := New("itest", "copy", []types.ArtifactDescriptor{bundle, artifact("util", "2.1")}, now)
	require.NoError(t, Save(fsys, "/env/.distsync/state.toml", d))

	loaded, err := Load(fsys, "/env/.distsync/state.toml")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "itest", loaded.Environment)
	assert.True(t, now.Equal(loaded.UpdatedAt))
	require.Len(t, loaded.Artifacts, 2)
	assert.Equal(t, "plugins/core-1.0.jar", loaded.Artifacts[0].Target)

	prev := loaded.Previous()
	require.Len(t, prev, 2)
	core := prev[bundle.Key]
	assert.Equal(t, bundle.Signature, core.Signature)
	assert.Equal(t, 4, core.StartLevel)
	require.NotNil(t, core.Bundle)
	assert.Equal(t, "org.example.core", core.Bundle.SymbolicName)
	assert.Nil(t, prev[artifact("util", "2.1").Key].Bundle)

	_, err = fsys.Stat("/env/.distsync/state.toml.tmp")
	assert.Error(t, err, "temporary file is renamed away")
}

func TestLoad_Missing(t *testing.T) {
	d, err := Load(filesystem.NewMemory(), "/nowhere/state.toml")
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Empty(t, d.Previous())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "this is = = not toml"},
		{"wrong version", "version = 99\nenvironment = \"x\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := filesystem.NewMemory()
			require.NoError(t, fsys.WriteFile("/state.toml", []byte(tt.content), 0644))
			_, err := Load(fsys, "/state.toml")
			assert.True(t, errors.IsErrorCode(err, errors.ErrStateLoad))
		})
	}
}
