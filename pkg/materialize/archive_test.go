// TEST TYPE: Unit Test
// DEPENDENCIES: real filesystem via t.TempDir
// PURPOSE: Test zip extraction, permission restore and unsafe entries

package materialize

import (
	"archive/zip"
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name string
	body string
	mode fs.FileMode
	unix bool
}

func writeZip(t *testing.T, path string, entries []zipEntry) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.unix {
			hdr.SetMode(e.mode)
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestExtractArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "config.zip")
	writeZip(t, archive, []zipEntry{
		{name: "bin/", mode: fs.ModeDir | 0755, unix: true},
		{name: "bin/start.sh", body: "#!/bin/sh\nexec java\n", mode: 0750, unix: true},
		{name: "conf/app.properties", body: "port=8080\n"},
	})
	target := filepath.Join(dir, "env", "config")

	m := New(filesystem.NewOS(), nil)
	out, err := m.ExtractArchive(context.Background(), archive, target)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(target, "bin"),
		filepath.Join(target, "bin", "start.sh"),
		filepath.Join(target, "conf", "app.properties"),
	}, out.Paths)
	assert.True(t, out.Changed())

	info, err := os.Stat(filepath.Join(target, "bin", "start.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0750), info.Mode().Perm(), "unix entries keep their mode")

	props, err := os.ReadFile(filepath.Join(target, "conf", "app.properties"))
	require.NoError(t, err)
	assert.Equal(t, "port=8080\n", string(props))

	again, err := m.ExtractArchive(context.Background(), archive, target)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestExtractArchive_NonUnixEntryKeepsExistingMode(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.zip")
	writeZip(t, archive, []zipEntry{{name: "readme.txt", body: "hello"}})
	target := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "readme.txt"), []byte("hello"), 0600))

	out, err := New(filesystem.NewOS(), nil).ExtractArchive(context.Background(), archive, target)
	require.NoError(t, err)
	assert.False(t, out.Changed())

	info, err := os.Stat(filepath.Join(target, "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0600), info.Mode().Perm())
}

func TestExtractArchive_Invalid(t *testing.T) {
	dir := t.TempDir()

	t.Run("escaping entry", func(t *testing.T) {
		archive := filepath.Join(dir, "slip.zip")
		writeZip(t, archive, []zipEntry{{name: "../../etc/passwd", body: "x"}})
		_, err := New(filesystem.NewOS(), nil).ExtractArchive(context.Background(), archive, filepath.Join(dir, "out"))
		assert.True(t, errors.IsErrorCode(err, errors.ErrArchiveInvalid))
		_, statErr := os.Stat(filepath.Join(dir, "etc"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("not a zip", func(t *testing.T) {
		archive := filepath.Join(dir, "bogus.zip")
		require.NoError(t, os.WriteFile(archive, []byte("not a zip at all"), 0644))
		_, err := New(filesystem.NewOS(), nil).ExtractArchive(context.Background(), archive, filepath.Join(dir, "out"))
		assert.True(t, errors.IsErrorCode(err, errors.ErrArchiveInvalid))
	})

	t.Run("missing archive", func(t *testing.T) {
		_, err := New(filesystem.NewOS(), nil).ExtractArchive(context.Background(), filepath.Join(dir, "nope.zip"), dir)
		assert.True(t, errors.IsErrorCode(err, errors.ErrUnreadableSource))
	})
}

func TestEntryPath(t *testing.T) {
	base := filepath.Join("root", "env")
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "lib/a.jar", want: filepath.Join(base, "lib", "a.jar")},
		{name: "lib/../b.txt", want: filepath.Join(base, "b.txt")},
		{name: `win\style.txt`, want: filepath.Join(base, "win", "style.txt")},
		{name: "../escape", wantErr: true},
		{name: "/abs/path", wantErr: true},
		{name: "..", wantErr: true},
		{name: "./", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := entryPath(base, tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
