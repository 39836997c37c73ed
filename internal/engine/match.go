package engine

import (
	"fmt"
	"sort"

	"github.com/roach88/tuplespace/internal/store"
	"github.com/roach88/tuplespace/internal/term"
)

// candidate is one datum in a speculative pool. index is its position in
// the store's insertion order; -1 marks a freshly produced datum that has
// not been stored. taken is per-attempt bookkeeping only - it never touches
// the store.
type candidate struct {
	index int
	datum term.Datum
	taken bool
}

// pool holds one channel's candidates in shuffled probe order.
type pool struct {
	entries []*candidate
}

// picked records one pattern's successful candidate within an attempt.
type picked struct {
	channel term.Channel
	cand    *candidate
	result  term.Value
}

// buildPools reads the data list of every distinct channel in group and
// shuffles each into probe order. When extra is non-nil it joins the
// produced channel's pool as an unstored candidate (index -1).
func (e *Engine) buildPools(txn *store.Txn, group []term.Channel, produced term.Channel, extra *term.Datum) (map[term.Channel]*pool, error) {
	pools := make(map[term.Channel]*pool)

	for _, ch := range group {
		if _, ok := pools[ch]; ok {
			continue
		}
		data, err := txn.Data(ch)
		if err != nil {
			return nil, err
		}
		p := &pool{entries: make([]*candidate, 0, len(data)+1)}
		for i, d := range data {
			p.entries = append(p.entries, &candidate{index: i, datum: d})
		}
		if extra != nil && ch == produced {
			p.entries = append(p.entries, &candidate{index: -1, datum: *extra})
		}
		e.shuffler.Shuffle(len(p.entries), func(i, j int) {
			p.entries[i], p.entries[j] = p.entries[j], p.entries[i]
		})
		pools[ch] = p
	}

	return pools, nil
}

// attempt walks (channel, pattern) pairs in order, searching each channel's
// remaining candidates for a datum the matcher accepts. A candidate taken
// for one pattern is unavailable to later patterns of the same attempt. If
// any pattern finds no candidate, every speculative take is rolled back and
// the attempt reports no match; the store is untouched either way.
func (e *Engine) attempt(pools map[term.Channel]*pool, group []term.Channel, patterns []term.Pattern) ([]picked, bool, error) {
	picks := make([]picked, 0, len(group))

	rollback := func() {
		for _, p := range picks {
			p.cand.taken = false
		}
	}

	for i, ch := range group {
		pat := patterns[i]
		found := false
		for _, c := range pools[ch].entries {
			if c.taken {
				continue
			}
			result, ok, err := e.matcher.Match(pat, c.datum.Payload)
			if err != nil {
				rollback()
				return nil, false, err
			}
			if ok {
				c.taken = true
				picks = append(picks, picked{channel: ch, cand: c, result: result})
				found = true
				break
			}
		}
		if !found {
			rollback()
			return nil, false, nil
		}
	}

	return picks, true, nil
}

// commitPicks turns a fully successful attempt into real mutations:
// every matched non-persistent stored datum is removed. Removals per
// channel run highest-position-first so earlier removals do not shift the
// positions of later ones.
func commitPicks(txn *store.Txn, picks []picked) error {
	byChannel := make(map[term.Channel][]int)
	for _, p := range picks {
		if p.cand.datum.Persist || p.cand.index < 0 {
			continue
		}
		byChannel[p.channel] = append(byChannel[p.channel], p.cand.index)
	}

	for ch, indexes := range byChannel {
		sort.Sort(sort.Reverse(sort.IntSlice(indexes)))
		for _, i := range indexes {
			if err := txn.RemoveDatum(ch, i); err != nil {
				return fmt.Errorf("commit match: %w", err)
			}
		}
	}
	return nil
}

// matchedData renders picks as the result list handed to the fired
// continuation, in pattern order.
func matchedData(picks []picked) []MatchedDatum {
	out := make([]MatchedDatum, len(picks))
	for i, p := range picks {
		out[i] = MatchedDatum{
			Channel: p.channel,
			Payload: p.cand.datum.Payload,
			Value:   p.result,
			Persist: p.cand.datum.Persist,
		}
	}
	return out
}

// usedExtra reports whether the attempt consumed the unstored produced
// datum.
func usedExtra(picks []picked) bool {
	for _, p := range picks {
		if p.cand.index < 0 {
			return true
		}
	}
	return false
}
