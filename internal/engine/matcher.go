package engine

import "github.com/roach88/tuplespace/internal/term"

// Matcher decides whether a datum satisfies a pattern. Implementations must
// be pure: no side effects, and the same answer for the same inputs within
// one matching attempt, since the engine probes speculatively and discards
// results.
//
// On a match, the returned value is the (possibly transformed) result
// handed to the fired continuation; returning the payload unchanged is
// fine.
type Matcher interface {
	Match(pattern term.Pattern, payload term.Value) (term.Value, bool, error)
}

// MatchFunc adapts a function to the Matcher interface.
type MatchFunc func(pattern term.Pattern, payload term.Value) (term.Value, bool, error)

// Match implements Matcher.
func (f MatchFunc) Match(pattern term.Pattern, payload term.Value) (term.Value, bool, error) {
	return f(pattern, payload)
}

// ExactMatcher matches a payload against the pattern's canonical JSON
// rendering, with "_" as the match-anything wildcard. Useful for tests and
// simple deployments; production wiring uses the CUE matcher.
type ExactMatcher struct{}

// Match implements Matcher.
func (ExactMatcher) Match(pattern term.Pattern, payload term.Value) (term.Value, bool, error) {
	if pattern == "_" {
		return payload, true, nil
	}
	canonical, err := term.MarshalCanonical(payload)
	if err != nil {
		return nil, false, err
	}
	if string(pattern) == string(canonical) {
		return payload, true, nil
	}
	return nil, false, nil
}
