package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/roach88/tuplespace/internal/store"
	"github.com/roach88/tuplespace/internal/term"
)

//go:embed schema.sql
var schemaSQL string

// ErrUnknownRoot is returned when a root names no committed checkpoint.
var ErrUnknownRoot = errors.New("history: unknown root")

// Store is the content-addressed checkpoint store. It shares the engine's
// SQLite file but owns its own tables: one row per committed root, one row
// per leaf under that root.
//
// Roots are derived purely from leaf content (term.RootHash over sorted leaf
// hashes), so committing the same state twice yields the same root, and a
// restored state re-commits to the root it was restored from.
type Store struct {
	db *sql.DB
}

// New attaches the history tables to the live store's database.
func New(s *store.Store) (*Store, error) {
	db := s.DB()
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// EmptyRoot returns the canonical root of the empty state. It is always a
// valid reset target, committed or not.
func (h *Store) EmptyRoot() string {
	return term.EmptyRootHash()
}

// Commit stores a leaf set and returns its root. Idempotent: re-committing
// an already-known root is a no-op that returns the same root.
func (h *Store) Commit(ctx context.Context, gnats []term.GNAT) (string, error) {
	type leaf struct {
		hash      string
		groupHash string
		body      []byte
	}

	leaves := make([]leaf, 0, len(gnats))
	hashes := make([]string, 0, len(gnats))
	for _, g := range gnats {
		if g.Row.IsEmpty() {
			// Empty rows are equivalent to absence and never persist.
			continue
		}
		body, err := term.MarshalGNAT(g)
		if err != nil {
			return "", fmt.Errorf("history: commit: %w", err)
		}
		lh, err := term.LeafHash(g)
		if err != nil {
			return "", fmt.Errorf("history: commit: %w", err)
		}
		leaves = append(leaves, leaf{hash: lh, groupHash: term.GroupKey(g.Channels), body: body})
		hashes = append(hashes, lh)
	}

	root := term.RootHash(hashes)

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("history: commit: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO history_roots (root, leaf_count)
		VALUES (?, ?)
		ON CONFLICT(root) DO NOTHING
	`, root, len(leaves))
	if err != nil {
		return "", fmt.Errorf("history: commit: insert root: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("history: commit: rows affected: %w", err)
	}
	if inserted > 0 {
		for _, l := range leaves {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO history_leaves (root, leaf_hash, group_hash, gnat)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(root, group_hash) DO NOTHING
			`, root, l.hash, l.groupHash, string(l.body))
			if err != nil {
				return "", fmt.Errorf("history: commit: insert leaf: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("history: commit: %w", err)
	}
	return root, nil
}

// ValidateRoot reports whether root names a legitimate checkpoint: either a
// previously committed root or the canonical empty root.
func (h *Store) ValidateRoot(ctx context.Context, root string) (bool, error) {
	if root == h.EmptyRoot() {
		return true, nil
	}

	var count int
	err := h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM history_roots WHERE root = ?`, root,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("history: validate root: %w", err)
	}
	return count > 0, nil
}

// Leaves returns the full leaf set under root, ordered by group hash.
// The empty root always yields an empty set.
func (h *Store) Leaves(ctx context.Context, root string) ([]term.GNAT, error) {
	ok, err := h.ValidateRoot(ctx, root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT gnat FROM history_leaves
		WHERE root = ?
		ORDER BY group_hash ASC
	`, root)
	if err != nil {
		return nil, fmt.Errorf("history: get leaves: %w", err)
	}
	defer rows.Close()

	var gnats []term.GNAT
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("history: get leaves: scan: %w", err)
		}
		g, err := term.UnmarshalGNAT([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("history: get leaves: %w", err)
		}
		gnats = append(gnats, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: get leaves: %w", err)
	}
	return gnats, nil
}

// Leaf returns the single GNAT stored under root for the exact ordered
// channel group, or nil when the group has no leaf there.
func (h *Store) Leaf(ctx context.Context, root string, group []term.Channel) (*term.GNAT, error) {
	ok, err := h.ValidateRoot(ctx, root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}

	var body string
	err = h.db.QueryRowContext(ctx, `
		SELECT gnat FROM history_leaves
		WHERE root = ? AND group_hash = ?
	`, root, term.GroupKey(group)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: get leaf: %w", err)
	}

	g, err := term.UnmarshalGNAT([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("history: get leaf: %w", err)
	}
	return &g, nil
}
