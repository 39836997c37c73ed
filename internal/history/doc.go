// Package history stores committed checkpoints of the tuple space.
//
// A checkpoint is a root hash plus the full set of GNAT leaves that made up
// the live state when it was committed. Roots are content-addressed
// (term.RootHash over sorted leaf hashes), so identical states always
// commit to identical roots and commits are idempotent.
//
// The engine's retrieve and reset operations are the only consumers;
// produce and consume never touch history.
package history
