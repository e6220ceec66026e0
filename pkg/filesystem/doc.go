// Package filesystem implements types.FS on top of afero. NewOS is the real
// disk, NewMemory an in-memory tree for tests, and NewAferoFS wraps any
// other afero backend.
package filesystem
