// Package cache implements the build cache.
//
// A build is identified by a deterministic digest over everything that can
// change its output: target platforms, stage bases, the step structure, and
// the contents of every host file referenced by a copy step. Identical
// inputs always produce identical digests; any change to a step, an
// environment variable, or a copied file produces a new digest.
//
// Digests map to previously exported archives through a sqlite database
// under the XDG state directory. A lookup only hits when the recorded
// output archive is still present on disk; rows whose archives have been
// deleted are dropped on sight.
package cache
