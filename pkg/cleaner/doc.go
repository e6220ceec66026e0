// Package cleaner removes everything from an environment directory that the
// current synchronization pass did not produce.
//
// The walk is post-order. Files are deleted unless they were touched in this
// pass or match a runtime path pattern; directories go only when every child
// went and the directory itself is neither touched nor a runtime path. The
// root is never deleted. Running Clean twice with the same inputs deletes
// nothing the second time.
package cleaner
