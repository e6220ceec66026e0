// Package config loads the distsync configuration.
//
// Layers, lowest precedence first:
//  1. embedded defaults (embedded/defaults.toml)
//  2. the configuration file (distsync.toml or distsync.yaml)
//  3. DISTSYNC_* environment variables
//
// Environment variables map to keys by dropping the prefix, lower-casing and
// using a double underscore as the section separator:
// DISTSYNC_SYNC__CONTINUE_ON_ERROR=true sets sync.continue_on_error.
//
// Keys are joined with "::" internally because launch argument names such as
// -Dosgi.console contain dots.
package config
