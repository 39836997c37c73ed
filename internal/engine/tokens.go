package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// TokenSource generates operation tokens for log correlation. One token is
// minted per public engine call and threaded through every log line that
// call emits. Implemented by UUIDv7Source (production) and FixedSource
// (tests).
type TokenSource interface {
	Next() string
}

// UUIDv7Source mints time-ordered UUIDs so log streams sort by issue time.
type UUIDv7Source struct{}

// Next implements TokenSource.
func (UUIDv7Source) Next() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the entropy source does; fall back to v4.
		return uuid.NewString()
	}
	return id.String()
}

// FixedSource mints predictable tokens ("t-1", "t-2", ...) for tests and
// golden traces.
type FixedSource struct {
	prefix string
	n      atomic.Int64
}

// NewFixedSource creates a FixedSource with the given prefix.
func NewFixedSource(prefix string) *FixedSource {
	return &FixedSource{prefix: prefix}
}

// Next implements TokenSource.
func (f *FixedSource) Next() string {
	return fmt.Sprintf("%s-%d", f.prefix, f.n.Add(1))
}
