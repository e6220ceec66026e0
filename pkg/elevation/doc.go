// Package elevation provides the link service used when the operating system
// refuses symbolic link creation to an unprivileged process.
//
// A helper process is started with elevated rights and listens on a
// loopback port. The caller talks to it with a small request/response
// protocol: newline-delimited JSON objects carrying a command from a fixed
// set (ping, create-link, stop) and a shared token issued when the helper
// was started. The helper exits when it receives stop.
//
// The helper is a scoped resource: Launcher.Acquire starts it on first
// need and the returned Handle must be closed on every exit path.
package elevation
