package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/tuplespace/internal/term"
)

// createTestStore creates a fresh on-disk store under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestWaiting creates a waiting continuation with minimal fields.
func createTestWaiting(tag string, persist bool, patterns ...string) term.WaitingContinuation {
	ps := make([]term.Pattern, len(patterns))
	for i, p := range patterns {
		ps[i] = term.Pattern(p)
	}
	return term.WaitingContinuation{
		Patterns:     ps,
		Continuation: term.Continuation{Tag: tag},
		Persist:      persist,
		ConsumeID:    "consume-" + tag,
	}
}
