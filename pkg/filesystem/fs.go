package filesystem

import (
	"io"
	"io/fs"
	"os"

	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/spf13/afero"
)

// aferoFS adapts an afero.Fs to types.FS. Chmod, MkdirAll, Remove,
// RemoveAll, Rename and Stat come straight from the embedded Fs.
type aferoFS struct {
	afero.Fs
}

var _ types.FS = aferoFS{}

// NewOS returns the real filesystem.
func NewOS() types.FS {
	return aferoFS{afero.NewOsFs()}
}

// NewMemory returns an empty in-memory filesystem. Symlinks are not
// supported and Lstat behaves like Stat.
func NewMemory() types.FS {
	return aferoFS{afero.NewMemMapFs()}
}

// NewAferoFS wraps any afero backend, e.g. a read-only or base-path overlay.
func NewAferoFS(backend afero.Fs) types.FS {
	return aferoFS{backend}
}

func (a aferoFS) Open(name string) (io.ReadCloser, error) {
	return a.Fs.Open(name)
}

func (a aferoFS) OpenFile(name string, flag int, perm os.FileMode) (types.File, error) {
	f, err := a.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFile rejects directories up front; MemMapFs would otherwise return
// an empty read.
func (a aferoFS) ReadFile(name string) ([]byte, error) {
	if info, err := a.Fs.Stat(name); err != nil {
		return nil, err
	} else if info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	return afero.ReadFile(a.Fs, name)
}

func (a aferoFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return afero.WriteFile(a.Fs, name, data, perm)
}

// ReadDir lists name sorted by file name, without following symlinks.
func (a aferoFS) ReadDir(name string) ([]fs.DirEntry, error) {
	infos, err := afero.ReadDir(a.Fs, name)
	if err != nil {
		return nil, err
	}
	out := make([]fs.DirEntry, 0, len(infos))
	for _, info := range infos {
		out = append(out, fs.FileInfoToDirEntry(info))
	}
	return out, nil
}

func (a aferoFS) Symlink(oldname, newname string) error {
	linker, ok := a.Fs.(afero.Linker)
	if !ok {
		return &os.LinkError{Op: "symlink", Old: oldname, New: newname, Err: afero.ErrNoSymlink}
	}
	return linker.SymlinkIfPossible(oldname, newname)
}

func (a aferoFS) Readlink(name string) (string, error) {
	reader, ok := a.Fs.(afero.LinkReader)
	if !ok {
		return "", &os.PathError{Op: "readlink", Path: name, Err: afero.ErrNoReadlink}
	}
	return reader.ReadlinkIfPossible(name)
}

func (a aferoFS) Lstat(name string) (fs.FileInfo, error) {
	lstater, ok := a.Fs.(afero.Lstater)
	if !ok {
		return a.Fs.Stat(name)
	}
	info, _, err := lstater.LstatIfPossible(name)
	return info, err
}
