package types

import (
	"io"
	"io/fs"
	"os"
)

// File is the subset of *os.File used for incremental writes.
// Both *os.File and afero.File satisfy it.
type File interface {
	io.Closer
	io.ReaderAt
	io.WriterAt
	Stat() (fs.FileInfo, error)
	Truncate(size int64) error
}

// SourceReader is what manifest resolution and checksumming read through.
type SourceReader interface {
	Stat(name string) (fs.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]fs.DirEntry, error)
}

// TargetWriter covers materializing artifacts into an environment root.
type TargetWriter interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	Chmod(name string, mode fs.FileMode) error
	MkdirAll(path string, perm fs.FileMode) error
	Rename(oldpath, newpath string) error
	Remove(name string) error
	RemoveAll(path string) error
}

// Linker handles link-mode targets. Lstat may fall back to Stat on
// backends without symlinks.
type Linker interface {
	Symlink(oldname, newname string) error
	Readlink(name string) (string, error)
	Lstat(name string) (fs.FileInfo, error)
}

// FS is the full filesystem surface distsync runs against.
type FS interface {
	SourceReader
	TargetWriter
	Linker
}
