// Package materialize writes artifacts into an environment directory.
//
// Copy mode compares the source against the existing target chunk by chunk
// and rewrites only the byte ranges that differ, so an unchanged file is never
// touched and a large file with a small edit only sees that edit. Link mode
// creates a symbolic link to the source and leaves a correct link alone.
//
// When the operating system refuses to create symbolic links for the current
// user, the Materializer acquires an elevated link service through its
// Elevator on first need and keeps it until Close. It never falls back to
// copying.
//
// A Materializer is not safe for concurrent use. Environments synchronized in
// parallel each get their own.
package materialize
