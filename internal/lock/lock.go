// Package lock provides the two-step channel-set lock.
//
// Each operation computes the set of channel hashes it may touch and holds
// exclusive access to exactly that set for its duration. Disjoint sets run
// in parallel; overlapping sets serialize. Keys are always acquired in
// sorted order, which fixes a global lock order and rules out deadlock
// between operations that disagree on subset composition.
//
// "Two-step" covers the case where the set is unknown until a preliminary
// read happens: produce must read the join table to learn every group its
// channel participates in before the real hash set is known. TwoStep runs
// that discovery unlocked, acquires the discovered set, re-runs discovery
// under the lock, and widens the set if it grew in between.
//
// Fairness is whatever sync.Mutex provides - no FIFO guarantee. Starved
// acquisition has not been observed at the contention levels this engine
// sees; revisit if it ever is.
package lock

import (
	"slices"
	"sync"
)

// KeySetLock grants exclusive access to sets of resource keys.
// The zero value is not usable; call New.
type KeySetLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty KeySetLock.
func New() *KeySetLock {
	return &KeySetLock{entries: make(map[string]*entry)}
}

// Acquire locks every key in keys and returns the release function.
// Keys are deduplicated and locked in sorted order. Release unlocks in
// reverse order and is safe to call exactly once.
func (l *KeySetLock) Acquire(keys []string) (release func()) {
	canonical := canonicalize(keys)

	locked := make([]*entry, 0, len(canonical))
	for _, k := range canonical {
		e := l.retain(k)
		e.mu.Lock()
		locked = append(locked, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(locked) - 1; i >= 0; i-- {
				locked[i].mu.Unlock()
			}
			for _, k := range canonical {
				l.unretain(k)
			}
		})
	}
}

// With runs fn while holding keys, releasing on every exit path including
// panic.
func (l *KeySetLock) With(keys []string, fn func() error) error {
	release := l.Acquire(keys)
	defer release()
	return fn()
}

// TwoStep implements the discover-then-lock pattern. discover computes the
// key set without holding any lock; the set is then acquired and discovery
// re-run under it. If a concurrent operation grew the set in between (a
// consume adding a join, say), the lock is widened and the check repeats.
// critical runs once the held set covers the discovered set.
func (l *KeySetLock) TwoStep(discover func() ([]string, error), critical func() error) error {
	keys, err := discover()
	if err != nil {
		return err
	}
	keys = canonicalize(keys)

	for {
		release := l.Acquire(keys)

		again, err := discover()
		if err != nil {
			release()
			return err
		}
		again = canonicalize(again)

		if covers(keys, again) {
			err := critical()
			release()
			return err
		}

		// The set grew between discovery and acquisition. Widen and retry
		// with the union so the canonical order is preserved.
		release()
		keys = canonicalize(append(keys, again...))
	}
}

// retain returns the entry for key, creating it if needed, with its
// refcount bumped.
func (l *KeySetLock) retain(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	return e
}

// unretain drops one reference and evicts the entry at zero so the table
// does not grow without bound.
func (l *KeySetLock) unretain(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(l.entries, key)
	}
}

// canonicalize sorts and deduplicates keys.
func canonicalize(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	slices.Sort(out)
	return slices.Compact(out)
}

// covers reports whether have (sorted) contains every element of want
// (sorted).
func covers(have, want []string) bool {
	i := 0
	for _, w := range want {
		for i < len(have) && have[i] < w {
			i++
		}
		if i >= len(have) || have[i] != w {
			return false
		}
	}
	return true
}
