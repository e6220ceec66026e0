// Package state persists the distribution descriptor: which artifacts the
// last synchronization put into an environment, and with which content
// signature. The next run plans against it.
package state
