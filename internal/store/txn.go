package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tuplespace/internal/term"
)

// ErrReadOnly is returned when a write method is called on a View
// transaction. This is a usage error, not a retriable condition.
var ErrReadOnly = errors.New("store: write inside read-only transaction")

// ErrNotFound is returned by positional removals when the index does not
// name an existing entry.
var ErrNotFound = errors.New("store: entry not found")

// Txn is a handle to one open transaction. A Txn is exclusively owned by
// its caller for its duration and must not outlive the View/Update call
// that produced it.
type Txn struct {
	tx       *sql.Tx
	ctx      context.Context
	writable bool
}

func (t *Txn) writeGuard() error {
	if !t.writable {
		return ErrReadOnly
	}
	return nil
}

// NextSeq advances and returns the monotonic logical clock.
// The clock survives clear and reset so that consume ids never repeat.
func (t *Txn) NextSeq() (int64, error) {
	if err := t.writeGuard(); err != nil {
		return 0, err
	}

	var seq int64
	err := t.tx.QueryRowContext(t.ctx,
		`UPDATE seq_counter SET next = next + 1 WHERE id = 1 RETURNING next - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, mapSQLiteErr(fmt.Errorf("next seq: %w", err))
	}
	return seq, nil
}

// Data returns the channel's stored data in insertion order.
// Index positions in the returned slice are the positions RemoveDatum uses.
func (t *Txn) Data(channel term.Channel) ([]term.Datum, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT payload, persist FROM data
		WHERE channel_hash = ?
		ORDER BY seq ASC, id ASC
	`, term.ChannelHash(channel))
	if err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("get data: %w", err))
	}
	defer rows.Close()

	var data []term.Datum
	for rows.Next() {
		var payloadJSON string
		var persist bool
		if err := rows.Scan(&payloadJSON, &persist); err != nil {
			return nil, fmt.Errorf("get data: scan: %w", err)
		}
		payload, err := term.UnmarshalValue([]byte(payloadJSON))
		if err != nil {
			return nil, fmt.Errorf("get data: %w", err)
		}
		data = append(data, term.Datum{Payload: payload, Persist: persist})
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("get data: %w", err))
	}
	return data, nil
}

// PutDatum appends a datum to the channel's data list.
func (t *Txn) PutDatum(channel term.Channel, d term.Datum) error {
	if err := t.writeGuard(); err != nil {
		return err
	}

	payloadJSON, err := term.MarshalCanonical(d.Payload)
	if err != nil {
		return fmt.Errorf("put datum: %w", err)
	}
	seq, err := t.NextSeq()
	if err != nil {
		return fmt.Errorf("put datum: %w", err)
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO data (channel_hash, channel, payload, persist, seq)
		VALUES (?, ?, ?, ?, ?)
	`, term.ChannelHash(channel), string(channel), string(payloadJSON), d.Persist, seq)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("put datum: %w", err))
	}
	return nil
}

// RemoveDatum deletes the datum at the given position in the channel's
// insertion-ordered data list. Returns ErrNotFound for a stale index.
func (t *Txn) RemoveDatum(channel term.Channel, index int) error {
	if err := t.writeGuard(); err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("remove datum: index %d: %w", index, ErrNotFound)
	}

	var id int64
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT id FROM data
		WHERE channel_hash = ?
		ORDER BY seq ASC, id ASC
		LIMIT 1 OFFSET ?
	`, term.ChannelHash(channel), index).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("remove datum: index %d: %w", index, ErrNotFound)
	}
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("remove datum: %w", err))
	}

	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM data WHERE id = ?`, id); err != nil {
		return mapSQLiteErr(fmt.Errorf("remove datum: %w", err))
	}
	return nil
}

// Continuations returns the waiting continuations registered on the exact
// ordered channel group, in insertion order.
func (t *Txn) Continuations(group []term.Channel) ([]term.WaitingContinuation, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT patterns, continuation, persist, consume_id FROM continuations
		WHERE group_hash = ?
		ORDER BY seq ASC, id ASC
	`, term.GroupKey(group))
	if err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("get continuations: %w", err))
	}
	defer rows.Close()

	var conts []term.WaitingContinuation
	for rows.Next() {
		var patternsJSON, contJSON, consumeID string
		var persist bool
		if err := rows.Scan(&patternsJSON, &contJSON, &persist, &consumeID); err != nil {
			return nil, fmt.Errorf("get continuations: scan: %w", err)
		}
		wc, err := unmarshalWaiting(patternsJSON, contJSON, persist, consumeID)
		if err != nil {
			return nil, fmt.Errorf("get continuations: %w", err)
		}
		conts = append(conts, wc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("get continuations: %w", err))
	}
	return conts, nil
}

// PutContinuation appends a waiting continuation to the group's list.
func (t *Txn) PutContinuation(group []term.Channel, wc term.WaitingContinuation) error {
	if err := t.writeGuard(); err != nil {
		return err
	}

	channelsJSON, err := marshalChannels(group)
	if err != nil {
		return fmt.Errorf("put continuation: %w", err)
	}
	patternsJSON, err := marshalPatterns(wc.Patterns)
	if err != nil {
		return fmt.Errorf("put continuation: %w", err)
	}
	contJSON, err := term.MarshalContinuation(wc.Continuation)
	if err != nil {
		return fmt.Errorf("put continuation: %w", err)
	}
	seq, err := t.NextSeq()
	if err != nil {
		return fmt.Errorf("put continuation: %w", err)
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO continuations (group_hash, channels, patterns, continuation, persist, consume_id, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, term.GroupKey(group), channelsJSON, patternsJSON, string(contJSON), wc.Persist, wc.ConsumeID, seq)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("put continuation: %w", err))
	}
	return nil
}

// RemoveContinuation deletes the continuation at the given position in the
// group's insertion-ordered list. Returns ErrNotFound for a stale index.
func (t *Txn) RemoveContinuation(group []term.Channel, index int) error {
	if err := t.writeGuard(); err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("remove continuation: index %d: %w", index, ErrNotFound)
	}

	var id int64
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT id FROM continuations
		WHERE group_hash = ?
		ORDER BY seq ASC, id ASC
		LIMIT 1 OFFSET ?
	`, term.GroupKey(group), index).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("remove continuation: index %d: %w", index, ErrNotFound)
	}
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("remove continuation: %w", err))
	}

	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM continuations WHERE id = ?`, id); err != nil {
		return mapSQLiteErr(fmt.Errorf("remove continuation: %w", err))
	}
	return nil
}

// Joins returns every channel group the channel participates in, ordered by
// group key for determinism.
func (t *Txn) Joins(channel term.Channel) ([][]term.Channel, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT channels FROM joins
		WHERE channel_hash = ?
		ORDER BY group_hash ASC
	`, term.ChannelHash(channel))
	if err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("get joins: %w", err))
	}
	defer rows.Close()

	var groups [][]term.Channel
	for rows.Next() {
		var channelsJSON string
		if err := rows.Scan(&channelsJSON); err != nil {
			return nil, fmt.Errorf("get joins: scan: %w", err)
		}
		group, err := unmarshalChannels(channelsJSON)
		if err != nil {
			return nil, fmt.Errorf("get joins: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("get joins: %w", err))
	}
	return groups, nil
}

// AddJoin records that channel participates in group. Idempotent.
func (t *Txn) AddJoin(channel term.Channel, group []term.Channel) error {
	if err := t.writeGuard(); err != nil {
		return err
	}

	channelsJSON, err := marshalChannels(group)
	if err != nil {
		return fmt.Errorf("add join: %w", err)
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO joins (channel_hash, group_hash, channels)
		VALUES (?, ?, ?)
		ON CONFLICT(channel_hash, group_hash) DO NOTHING
	`, term.ChannelHash(channel), term.GroupKey(group), channelsJSON)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("add join: %w", err))
	}
	return nil
}

// RemoveJoin deletes one channel's membership record for group.
func (t *Txn) RemoveJoin(channel term.Channel, group []term.Channel) error {
	if err := t.writeGuard(); err != nil {
		return err
	}

	_, err := t.tx.ExecContext(t.ctx, `
		DELETE FROM joins WHERE channel_hash = ? AND group_hash = ?
	`, term.ChannelHash(channel), term.GroupKey(group))
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("remove join: %w", err))
	}
	return nil
}

// Clear deletes all live rows. The logical clock is NOT reset - sequence
// numbers stay unique across the life of the store.
func (t *Txn) Clear() error {
	if err := t.writeGuard(); err != nil {
		return err
	}

	for _, stmt := range []string{
		`DELETE FROM data`,
		`DELETE FROM continuations`,
		`DELETE FROM joins`,
	} {
		if _, err := t.tx.ExecContext(t.ctx, stmt); err != nil {
			return mapSQLiteErr(fmt.Errorf("clear: %w", err))
		}
	}
	return nil
}
