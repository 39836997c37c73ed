// Package term defines the value model and content-addressed identity for
// the tuple space.
//
// Payloads, patterns, and continuations are built from a sealed Value
// interface (string, int, bool, array, object - no floats, no null) so that
// every stored item has exactly one canonical serialization.
//
// All identity is content-addressed: channel hashes key the two-step lock,
// group keys address rows, consume ids name logical consume events for
// audit and replay, and root hashes name checkpoints. Every hash is SHA-256
// with domain separation over RFC 8785 canonical JSON.
package term
