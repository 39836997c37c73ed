package term

import (
	"encoding/json"
	"fmt"
)

// MarshalGNAT renders a GNAT as canonical JSON. The same bytes are used for
// history leaves and for leaf hashing, so a restored leaf re-hashes to the
// identical value.
func MarshalGNAT(g GNAT) ([]byte, error) {
	return MarshalCanonical(g.canonicalMap())
}

// UnmarshalGNAT parses a GNAT from its stored JSON.
func UnmarshalGNAT(data []byte) (GNAT, error) {
	var raw struct {
		Channels []string `json:"channels"`
		Row      struct {
			Data []struct {
				Payload json.RawMessage `json:"payload"`
				Persist bool            `json:"persist"`
			} `json:"data"`
			Continuations []struct {
				Patterns     []string        `json:"patterns"`
				Continuation json.RawMessage `json:"continuation"`
				Persist      bool            `json:"persist"`
				ConsumeID    string          `json:"consume_id"`
			} `json:"continuations"`
		} `json:"row"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return GNAT{}, fmt.Errorf("unmarshal gnat: %w", err)
	}

	g := GNAT{Channels: make([]Channel, len(raw.Channels))}
	for i, c := range raw.Channels {
		g.Channels[i] = Channel(c)
	}

	for i, d := range raw.Row.Data {
		payload, err := UnmarshalValue(d.Payload)
		if err != nil {
			return GNAT{}, fmt.Errorf("unmarshal gnat: data[%d]: %w", i, err)
		}
		g.Row.Data = append(g.Row.Data, Datum{Payload: payload, Persist: d.Persist})
	}

	for i, wc := range raw.Row.Continuations {
		k, err := UnmarshalContinuation(wc.Continuation)
		if err != nil {
			return GNAT{}, fmt.Errorf("unmarshal gnat: continuations[%d]: %w", i, err)
		}
		patterns := make([]Pattern, len(wc.Patterns))
		for j, p := range wc.Patterns {
			patterns[j] = Pattern(p)
		}
		g.Row.Continuations = append(g.Row.Continuations, WaitingContinuation{
			Patterns:     patterns,
			Continuation: k,
			Persist:      wc.Persist,
			ConsumeID:    wc.ConsumeID,
		})
	}

	return g, nil
}

func (g GNAT) canonicalMap() Object {
	chans := make(Array, len(g.Channels))
	for i, c := range g.Channels {
		chans[i] = String(string(c))
	}

	data := make(Array, 0, len(g.Row.Data))
	for _, d := range g.Row.Data {
		data = append(data, d.canonicalMap())
	}

	conts := make(Array, 0, len(g.Row.Continuations))
	for _, wc := range g.Row.Continuations {
		conts = append(conts, wc.canonicalMap())
	}

	return Object{
		"channels": chans,
		"row": Object{
			"data":          data,
			"continuations": conts,
		},
	}
}

func (d Datum) canonicalMap() Object {
	return Object{
		"payload": d.Payload,
		"persist": Bool(d.Persist),
	}
}

func (wc WaitingContinuation) canonicalMap() Object {
	pats := make(Array, len(wc.Patterns))
	for i, p := range wc.Patterns {
		pats[i] = String(string(p))
	}
	return Object{
		"patterns":     pats,
		"continuation": wc.Continuation.canonicalMap(),
		"persist":      Bool(wc.Persist),
		"consume_id":   String(wc.ConsumeID),
	}
}

// MarshalContinuation renders a continuation as canonical JSON for storage.
func MarshalContinuation(k Continuation) ([]byte, error) {
	return MarshalCanonical(k.canonicalMap())
}

// UnmarshalContinuation parses a continuation from its stored JSON.
func UnmarshalContinuation(data []byte) (Continuation, error) {
	var raw struct {
		Tag string `json:"tag"`
		Env Object `json:"env"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Continuation{}, fmt.Errorf("unmarshal continuation: %w", err)
	}
	return Continuation{Tag: raw.Tag, Env: raw.Env}, nil
}
