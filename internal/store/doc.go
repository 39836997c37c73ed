// Package store provides SQLite-backed durable storage for live tuple-space
// rows.
//
// Three tables carry the state:
//   - data: one row per stored Datum, addressed by channel hash
//   - continuations: one row per WaitingContinuation, addressed by the
//     content hash of its exact ordered channel group
//   - joins: per-channel index of channel groups, consulted by produce to
//     find every group a new datum might complete
//
// # Critical Patterns
//
// Logical time: all ordering uses seq (a monotonic counter), never
// timestamps. Positional removal (RemoveDatum/RemoveContinuation by index)
// is defined against seq order, so positions are stable within one
// transaction.
//
// Transactions: View/Update guarantee rollback-or-commit on every exit
// path. SQLITE_BUSY and SQLITE_LOCKED map to the retriable ErrConflict;
// the engine retries the whole operation, not just the transaction.
//
// Snapshots: Snapshot/BulkInsert convert between live tables and GNAT
// leaves for the history store. Joins are derived state and are rebuilt
// from continuations on restore.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All content-addressed keys are computed in internal/term/hash.go using
// RFC 8785 canonical JSON and SHA-256 with domain separation.
package store
