// Package cuematch implements pattern matching over CUE unification.
//
// A pattern is a CUE expression; a payload matches when unifying its
// canonical JSON with the pattern yields a concrete, valid value. This
// gives patterns the full CUE vocabulary: exact values ("42"), type
// constraints ("int"), bounds ("int & >10"), open structs
// ("{kind: \"order\", total: int}"), disjunctions, and "_" as the
// match-anything wildcard, with the same semantics as the install files
// the CLI loads.
package cuematch

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/tuplespace/internal/term"
)

// Matcher matches payloads against CUE patterns. Compiled patterns are
// cached: a standing continuation's patterns are evaluated on every
// produce, so compilation cost must be paid once, not per probe.
//
// Safe for concurrent use.
type Matcher struct {
	ctx *cue.Context

	mu    sync.RWMutex
	cache map[term.Pattern]cue.Value
}

// New creates a Matcher with a fresh CUE context.
func New() *Matcher {
	return &Matcher{
		ctx:   cuecontext.New(),
		cache: make(map[term.Pattern]cue.Value),
	}
}

// Match reports whether payload satisfies the CUE expression in pattern.
// The returned value is the unified result decoded back into a payload
// value; for concrete payloads this is the payload itself.
//
// A malformed pattern is an error, not a non-match: patterns come from
// callers, and silently ignoring a typo in one would make a continuation
// unfireable with no diagnostic.
func (m *Matcher) Match(pattern term.Pattern, payload term.Value) (term.Value, bool, error) {
	pat, err := m.compile(pattern)
	if err != nil {
		return nil, false, err
	}

	canonical, err := term.MarshalCanonical(payload)
	if err != nil {
		return nil, false, fmt.Errorf("cuematch: payload not canonical: %w", err)
	}

	// Canonical JSON is valid CUE, so the payload compiles directly.
	val := m.ctx.CompileBytes(canonical)
	if err := val.Err(); err != nil {
		return nil, false, fmt.Errorf("cuematch: compile payload: %w", err)
	}

	unified := pat.Unify(val)
	if unified.Err() != nil {
		return nil, false, nil
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, false, nil
	}

	out, err := unified.MarshalJSON()
	if err != nil {
		return nil, false, fmt.Errorf("cuematch: encode unified value: %w", err)
	}
	result, err := term.UnmarshalValue(out)
	if err != nil {
		return nil, false, fmt.Errorf("cuematch: decode unified value: %w", err)
	}
	return result, true, nil
}

// compile returns the cached compiled form of pattern, compiling and
// caching on first use.
func (m *Matcher) compile(pattern term.Pattern) (cue.Value, error) {
	m.mu.RLock()
	v, ok := m.cache[pattern]
	m.mu.RUnlock()
	if ok {
		return v, nil
	}

	compiled := m.ctx.CompileString(string(pattern))
	if err := compiled.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("cuematch: compile pattern %q: %w", pattern, err)
	}

	m.mu.Lock()
	m.cache[pattern] = compiled
	m.mu.Unlock()
	return compiled, nil
}
