// TEST TYPE: Unit Test
// DEPENDENCIES: afero memory filesystem
// PURPOSE: Test SHA256 checksums and checksum normalization

package hashutil

import (
	"testing"

	"github.com/arthur-debert/distsync/pkg/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileChecksum(t *testing.T) {
	fsys := filesystem.NewMemory()
	require.NoError(t, fsys.MkdirAll("/data", 0755))
	require.NoError(t, fsys.WriteFile("/data/hello.txt", []byte("hello"), 0644))

	checksum, err := FileChecksum(fsys, "/data/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", checksum)
	assert.Len(t, checksum, 71)

	_, err = FileChecksum(fsys, "/data/missing.txt")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"ABCDEF", "sha256:abcdef"},
		{"sha256:abcdef", "sha256:abcdef"},
		{"  SHA256:ABCDEF ", "sha256:abcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
	assert.True(t, Equal("ABCDEF", "sha256:abcdef"))
	assert.False(t, Equal("abcdef", "abcdee"))
}
