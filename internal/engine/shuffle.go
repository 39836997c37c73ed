package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
)

// Shuffler supplies the candidate-order randomness for matching attempts.
// Implemented by the seeded production shuffler and, in tests, by seeded or
// no-op shufflers that make match choices reproducible.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// lockedShuffler wraps a rand.Rand for concurrent use; matching attempts on
// disjoint channel sets run in parallel and share the engine's shuffler.
type lockedShuffler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewShuffler returns a production shuffler seeded from crypto/rand.
func NewShuffler() Shuffler {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; zero seed keeps
		// the engine usable if it somehow does.
		return NewSeededShuffler(0)
	}
	return NewSeededShuffler(int64(binary.LittleEndian.Uint64(b[:])))
}

// NewSeededShuffler returns a deterministic shuffler for tests and replay
// experiments.
func NewSeededShuffler(seed int64) Shuffler {
	return &lockedShuffler{rng: rand.New(rand.NewSource(seed))}
}

// Shuffle implements Shuffler.
func (s *lockedShuffler) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(n, swap)
}

// orderedShuffler keeps candidates in store order. Used by tests that need
// fully predictable picks.
type orderedShuffler struct{}

// NewOrderedShuffler returns a shuffler that never reorders anything.
func NewOrderedShuffler() Shuffler {
	return orderedShuffler{}
}

// Shuffle implements Shuffler.
func (orderedShuffler) Shuffle(int, func(i, j int)) {}
