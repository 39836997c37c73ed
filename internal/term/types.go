package term

import "slices"

// Channel is the address data and continuations are placed at.
// Channels are opaque strings; ordering and hashing are total.
type Channel string

// Pattern is the source text of a pattern, interpreted by the pluggable
// matcher. The engine never inspects pattern structure itself.
type Pattern string

// Continuation is the opaque code-to-resume registered by a consume.
// Tag identifies the handler; Env carries whatever closed-over values the
// caller wants returned when the continuation fires.
type Continuation struct {
	Tag string `json:"tag"`
	Env Object `json:"env,omitempty"`
}

// canonicalMap renders the continuation for canonical hashing.
func (c Continuation) canonicalMap() Object {
	obj := Object{"tag": String(c.Tag)}
	if len(c.Env) > 0 {
		obj["env"] = c.Env
	}
	return obj
}

// Datum is a stored payload plus its persistence flag. Non-persistent data
// is consumed exactly once by a match; persistent data survives matches.
type Datum struct {
	Payload Value `json:"payload"`
	Persist bool  `json:"persist"`
}

// WaitingContinuation is a registered pattern list plus continuation for one
// channel group. Patterns correspond positionally to the group's channels.
// ConsumeID is the content hash identifying the logical consume event.
type WaitingContinuation struct {
	Patterns     []Pattern    `json:"patterns"`
	Continuation Continuation `json:"continuation"`
	Persist      bool         `json:"persist"`
	ConsumeID    string       `json:"consume_id"`
}

// Row aggregates everything stored at one exact ordered channel group:
// the data on its channels and the continuations waiting on the group.
// An empty row is equivalent to absence.
type Row struct {
	Data          []Datum               `json:"data"`
	Continuations []WaitingContinuation `json:"continuations"`
}

// IsEmpty reports whether the row holds nothing.
func (r Row) IsEmpty() bool {
	return len(r.Data) == 0 && len(r.Continuations) == 0
}

// GNAT is the full persisted unit at one history leaf: a channel group plus
// its row. It is the atom the checkpoint store commits and restores.
type GNAT struct {
	Channels []Channel `json:"channels"`
	Row      Row       `json:"row"`
}

// Install is a permanently standing continuation. Installs live in the
// process-wide registry, outside checkpointed state, and are replayed after
// every reset.
type Install struct {
	Channels     []Channel
	Patterns     []Pattern
	Continuation Continuation
}

// ChannelNames converts a channel slice to plain strings.
func ChannelNames(channels []Channel) []string {
	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = string(c)
	}
	return names
}

// SameGroup reports whether two ordered channel groups are identical.
func SameGroup(a, b []Channel) bool {
	return slices.Equal(a, b)
}
