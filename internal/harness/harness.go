// Package harness executes scripted scenarios against a fresh engine and
// records deterministic traces for golden-file comparison.
//
// Determinism comes from three choices: a seeded shuffler (scenario.seed),
// fixed operation tokens, and an isolated per-run store. Checkpoint roots
// appear in traces under their symbolic save names, never as hashes.
package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/tuplespace/internal/cuematch"
	"github.com/roach88/tuplespace/internal/engine"
	"github.com/roach88/tuplespace/internal/history"
	"github.com/roach88/tuplespace/internal/store"
	"github.com/roach88/tuplespace/internal/term"
)

// Result holds the trace of one scenario run.
type Result struct {
	Scenario string
	Events   []term.Object
}

// Run executes a scenario against a brand-new engine and store. Each step
// appends one trace event; any step error aborts the run.
func Run(scenario *Scenario) (*Result, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "tuplespace-harness-*")
	if err != nil {
		return nil, fmt.Errorf("harness: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	s, err := store.Open(filepath.Join(dir, "space.db"))
	if err != nil {
		return nil, fmt.Errorf("harness: open store: %w", err)
	}
	defer s.Close()

	h, err := history.New(s)
	if err != nil {
		return nil, fmt.Errorf("harness: open history: %w", err)
	}

	eng := engine.New(s, h, cuematch.New(),
		engine.WithShuffler(engine.NewSeededShuffler(scenario.Seed)),
		engine.WithTokens(engine.NewFixedSource("t")),
	)

	ctx := context.Background()
	result := &Result{Scenario: scenario.Name}
	roots := make(map[string]string) // save name -> root hash

	for i, step := range scenario.Steps {
		event, err := runStep(ctx, eng, step, roots)
		if err != nil {
			return nil, fmt.Errorf("harness: step %d (%s): %w", i, step.Op, err)
		}
		event["seq"] = term.Int(int64(i + 1))
		event["op"] = term.String(step.Op)
		result.Events = append(result.Events, event)
	}
	return result, nil
}

// runStep executes one step and returns its trace event (without seq/op,
// which Run fills in).
func runStep(ctx context.Context, eng *engine.Engine, step Step, roots map[string]string) (term.Object, error) {
	switch step.Op {
	case "produce":
		payload, err := payloadValue(step.Payload)
		if err != nil {
			return nil, err
		}
		match, err := eng.Produce(ctx, term.Channel(step.Channel), payload, step.Persist)
		if err != nil {
			return nil, err
		}
		event := term.Object{
			"channel": term.String(step.Channel),
			"payload": payload,
		}
		if step.Persist {
			event["persist"] = term.Bool(true)
		}
		addMatch(event, match)
		return event, nil

	case "consume":
		channels, patterns := stepGroup(step)
		match, err := eng.Consume(ctx, channels, patterns, term.Continuation{Tag: step.Tag}, step.Persist)
		if err != nil {
			return nil, err
		}
		event := groupEvent(step)
		if step.Persist {
			event["persist"] = term.Bool(true)
		}
		addMatch(event, match)
		return event, nil

	case "install":
		channels, patterns := stepGroup(step)
		if err := eng.Install(ctx, channels, patterns, term.Continuation{Tag: step.Tag}); err != nil {
			return nil, err
		}
		return groupEvent(step), nil

	case "checkpoint":
		root, err := eng.Checkpoint(ctx)
		if err != nil {
			return nil, err
		}
		roots[step.Save] = root
		return term.Object{"root": term.String(step.Save)}, nil

	case "reset":
		root, ok := roots[step.Root]
		if !ok {
			return nil, fmt.Errorf("unsaved root %q", step.Root)
		}
		if err := eng.Reset(ctx, root); err != nil {
			return nil, err
		}
		return term.Object{"root": term.String(step.Root)}, nil

	case "clear":
		if err := eng.Clear(ctx); err != nil {
			return nil, err
		}
		return term.Object{}, nil

	default:
		return nil, fmt.Errorf("unknown op %q", step.Op)
	}
}

// stepGroup converts a step's channel/pattern lists.
func stepGroup(step Step) ([]term.Channel, []term.Pattern) {
	channels := make([]term.Channel, len(step.Channels))
	for i, c := range step.Channels {
		channels[i] = term.Channel(c)
	}
	patterns := make([]term.Pattern, len(step.Patterns))
	for i, p := range step.Patterns {
		patterns[i] = term.Pattern(p)
	}
	return channels, patterns
}

// groupEvent builds the common event fields of consume/install steps.
func groupEvent(step Step) term.Object {
	chs := make(term.Array, len(step.Channels))
	for i, c := range step.Channels {
		chs[i] = term.String(c)
	}
	pats := make(term.Array, len(step.Patterns))
	for i, p := range step.Patterns {
		pats[i] = term.String(p)
	}
	return term.Object{
		"channels": chs,
		"patterns": pats,
		"tag":      term.String(step.Tag),
	}
}

// addMatch records whether the step fired and, if so, what.
func addMatch(event term.Object, match *engine.Match) {
	if match == nil {
		event["fired"] = term.Bool(false)
		return
	}
	event["fired"] = term.Bool(true)
	event["continuation"] = term.String(match.Continuation.Tag)
	data := make(term.Array, len(match.Data))
	for i, d := range match.Data {
		data[i] = d.Value
	}
	event["data"] = data
}
