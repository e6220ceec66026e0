// Package status compares a synchronized environment against the descriptor
// its last synchronization recorded, without changing anything.
//
// Every recorded artifact gets one State. Copies are checked by size against
// the recorded source signature, links by their destination, extracted
// archives by the presence of their target directory. Sources are
// re-examined so that artifacts whose source changed since the last pass are
// reported as outdated.
package status
