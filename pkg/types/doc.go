// Package types defines the core data model shared by distsync's packages:
// artifact identities and descriptors, execution plans, launch
// configuration layers, the touched-file set and runtime path patterns, as
// well as the FS abstraction every filesystem-facing component works through.
package types
