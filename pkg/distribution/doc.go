// Package distribution runs synchronization passes: for each environment it
// plans against the previous descriptor, materializes the changes, writes the
// merged launch configuration, records the new descriptor and sweeps
// everything the pass did not touch.
package distribution
