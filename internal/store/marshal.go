package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tuplespace/internal/term"
)

// marshalChannels renders an ordered channel group as canonical JSON TEXT.
// The same bytes for the same group, always - group rows are compared and
// hashed on this column.
func marshalChannels(group []term.Channel) (string, error) {
	arr := make(term.Array, len(group))
	for i, c := range group {
		arr[i] = term.String(string(c))
	}
	data, err := term.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal channels: %w", err)
	}
	return string(data), nil
}

func unmarshalChannels(data string) ([]term.Channel, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal channels: %w", err)
	}
	group := make([]term.Channel, len(names))
	for i, n := range names {
		group[i] = term.Channel(n)
	}
	return group, nil
}

// marshalPatterns renders a pattern list as canonical JSON TEXT.
func marshalPatterns(patterns []term.Pattern) (string, error) {
	arr := make(term.Array, len(patterns))
	for i, p := range patterns {
		arr[i] = term.String(string(p))
	}
	data, err := term.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal patterns: %w", err)
	}
	return string(data), nil
}

func unmarshalPatterns(data string) ([]term.Pattern, error) {
	var sources []string
	if err := json.Unmarshal([]byte(data), &sources); err != nil {
		return nil, fmt.Errorf("unmarshal patterns: %w", err)
	}
	patterns := make([]term.Pattern, len(sources))
	for i, s := range sources {
		patterns[i] = term.Pattern(s)
	}
	return patterns, nil
}

// unmarshalWaiting reassembles a WaitingContinuation from its stored columns.
func unmarshalWaiting(patternsJSON, contJSON string, persist bool, consumeID string) (term.WaitingContinuation, error) {
	patterns, err := unmarshalPatterns(patternsJSON)
	if err != nil {
		return term.WaitingContinuation{}, err
	}
	k, err := term.UnmarshalContinuation([]byte(contJSON))
	if err != nil {
		return term.WaitingContinuation{}, err
	}
	return term.WaitingContinuation{
		Patterns:     patterns,
		Continuation: k,
		Persist:      persist,
		ConsumeID:    consumeID,
	}, nil
}
