package store

import (
	"fmt"
	"sort"

	"github.com/roach88/tuplespace/internal/term"
)

// Snapshot collects the full live state as GNAT leaves: data grouped under
// each channel's singleton group, continuations under their exact ordered
// group, merged where the group is the same. Leaves come back sorted by
// group key so snapshots of equal states are identical.
//
// Joins are not part of a snapshot - they are derived state and are rebuilt
// from continuations on BulkInsert.
func (t *Txn) Snapshot() ([]term.GNAT, error) {
	type leaf struct {
		gnat term.GNAT
	}
	leaves := make(map[string]*leaf)

	get := func(group []term.Channel) *leaf {
		key := term.GroupKey(group)
		l, ok := leaves[key]
		if !ok {
			channels := make([]term.Channel, len(group))
			copy(channels, group)
			l = &leaf{gnat: term.GNAT{Channels: channels}}
			leaves[key] = l
		}
		return l
	}

	// Data: every datum lives under its channel's singleton group.
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT channel, payload, persist FROM data
		ORDER BY seq ASC, id ASC
	`)
	if err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("snapshot data: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var channel, payloadJSON string
		var persist bool
		if err := rows.Scan(&channel, &payloadJSON, &persist); err != nil {
			return nil, fmt.Errorf("snapshot data: scan: %w", err)
		}
		payload, err := term.UnmarshalValue([]byte(payloadJSON))
		if err != nil {
			return nil, fmt.Errorf("snapshot data: %w", err)
		}
		l := get([]term.Channel{term.Channel(channel)})
		l.gnat.Row.Data = append(l.gnat.Row.Data, term.Datum{Payload: payload, Persist: persist})
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("snapshot data: %w", err))
	}

	// Continuations: under their exact ordered group.
	crows, err := t.tx.QueryContext(t.ctx, `
		SELECT channels, patterns, continuation, persist, consume_id FROM continuations
		ORDER BY seq ASC, id ASC
	`)
	if err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("snapshot continuations: %w", err))
	}
	defer crows.Close()

	for crows.Next() {
		var channelsJSON, patternsJSON, contJSON, consumeID string
		var persist bool
		if err := crows.Scan(&channelsJSON, &patternsJSON, &contJSON, &persist, &consumeID); err != nil {
			return nil, fmt.Errorf("snapshot continuations: scan: %w", err)
		}
		group, err := unmarshalChannels(channelsJSON)
		if err != nil {
			return nil, fmt.Errorf("snapshot continuations: %w", err)
		}
		wc, err := unmarshalWaiting(patternsJSON, contJSON, persist, consumeID)
		if err != nil {
			return nil, fmt.Errorf("snapshot continuations: %w", err)
		}
		l := get(group)
		l.gnat.Row.Continuations = append(l.gnat.Row.Continuations, wc)
	}
	if err := crows.Err(); err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("snapshot continuations: %w", err))
	}

	keys := make([]string, 0, len(leaves))
	for k := range leaves {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	gnats := make([]term.GNAT, 0, len(leaves))
	for _, k := range keys {
		gnats = append(gnats, leaves[k].gnat)
	}
	return gnats, nil
}

// BulkInsert loads GNAT leaves into the live tables, in leaf order.
// Data entries are only legal on singleton groups; join rows are rebuilt for
// every channel of every group that carries continuations.
//
// BulkInsert does not clear first - reset composes Clear + BulkInsert inside
// one transaction.
func (t *Txn) BulkInsert(gnats []term.GNAT) error {
	if err := t.writeGuard(); err != nil {
		return err
	}

	for _, g := range gnats {
		if len(g.Channels) == 0 {
			return fmt.Errorf("bulk insert: leaf with empty channel group")
		}
		if len(g.Row.Data) > 0 && len(g.Channels) != 1 {
			return fmt.Errorf("bulk insert: data on multi-channel group %v", g.Channels)
		}

		for _, d := range g.Row.Data {
			if err := t.PutDatum(g.Channels[0], d); err != nil {
				return fmt.Errorf("bulk insert: %w", err)
			}
		}

		if len(g.Row.Continuations) > 0 {
			for _, wc := range g.Row.Continuations {
				if err := t.PutContinuation(g.Channels, wc); err != nil {
					return fmt.Errorf("bulk insert: %w", err)
				}
			}
			for _, c := range g.Channels {
				if err := t.AddJoin(c, g.Channels); err != nil {
					return fmt.Errorf("bulk insert: %w", err)
				}
			}
		}
	}
	return nil
}

// GNATAt returns the live row for one exact ordered channel group, or nil
// if the row is empty. Used by show-style inspection, not by matching.
func (t *Txn) GNATAt(group []term.Channel) (*term.GNAT, error) {
	g := term.GNAT{Channels: group}

	if len(group) == 1 {
		data, err := t.Data(group[0])
		if err != nil {
			return nil, err
		}
		g.Row.Data = data
	}

	conts, err := t.Continuations(group)
	if err != nil {
		return nil, err
	}
	g.Row.Continuations = conts

	if g.Row.IsEmpty() {
		return nil, nil
	}
	return &g, nil
}
