package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tuplespace/internal/term"
)

// TraceJSON renders a result as canonical JSON: deterministic key order,
// NFC-normalized strings, no floats. Byte-identical across runs with the
// same scenario and seed.
func TraceJSON(result *Result) ([]byte, error) {
	events := make(term.Array, len(result.Events))
	for i, e := range result.Events {
		events[i] = e
	}
	return term.MarshalCanonical(term.Object{
		"scenario": term.String(result.Scenario),
		"events":   events,
	})
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	traceJSON, err := TraceJSON(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}
