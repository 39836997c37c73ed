// Package engine implements the tuple-space matching engine and its facade.
//
// The engine pairs produced data with waiting continuations under
// linear-logic rules: a produce deposits a datum on one channel, a consume
// registers patterns plus a continuation over an ordered channel group, and
// the first complete pairing fires the continuation with the matched data.
//
// ARCHITECTURE:
//
// Speculative-then-commit matching:
// A matching attempt walks (channel, pattern) pairs against shuffled
// candidate pools, marking candidates taken only in per-attempt
// bookkeeping. Nothing touches the store until every pair has a distinct
// candidate; a failed attempt discards the bookkeeping and persists the new
// datum or continuation instead. A failed attempt is therefore invisible to
// every other operation.
//
// Channel-set locking:
// Every operation computes the channel hashes it may touch and holds the
// two-step lock on exactly that set. Operations on disjoint channel sets
// run in parallel; overlapping ones serialize. Produce discovers its set
// from the join table before locking (the two-step pattern), since a
// continuation may wait jointly on several channels.
//
// Deliberate nondeterminism:
// Candidate order and group order are shuffled per attempt through an
// injectable Shuffler, so equally valid matches carry no systematic bias.
// Callers needing reproducibility record the consume id of whatever fired;
// tests inject a seeded shuffler.
//
// Reset and installs:
// reset(root) restores exactly the root's leaves, then replays every
// registered install in registration order, so standing handlers survive
// rollback deterministically.
package engine
