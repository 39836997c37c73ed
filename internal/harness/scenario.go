package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tuplespace/internal/term"
)

// Scenario is a deterministic script of space operations. Scenarios are
// defined in YAML:
//
//	name: order_flow
//	seed: 1
//	steps:
//	  - op: install
//	    channels: [orders]
//	    patterns: ['{kind: "order", total: int}']
//	    tag: handle-order
//	  - op: produce
//	    channel: orders
//	    payload: { kind: order, total: 250 }
//	  - op: checkpoint
//	    save: after-order
//	  - op: reset
//	    root: after-order
//
// Checkpoint roots are referred to by symbolic name (save/root), never by
// hash, so traces stay stable when hashing details change.
type Scenario struct {
	Name  string `yaml:"name"`
	Seed  int64  `yaml:"seed"`
	Steps []Step `yaml:"steps"`
}

// Step is one scripted operation.
type Step struct {
	Op string `yaml:"op"` // produce | consume | install | checkpoint | reset | clear

	// produce
	Channel string `yaml:"channel,omitempty"`
	Payload any    `yaml:"payload,omitempty"`

	// consume / install
	Channels []string `yaml:"channels,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"`
	Tag      string   `yaml:"tag,omitempty"`

	// produce / consume
	Persist bool `yaml:"persist,omitempty"`

	// checkpoint: symbolic name the root is saved under
	Save string `yaml:"save,omitempty"`

	// reset: symbolic name of a previously saved root
	Root string `yaml:"root,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks structural requirements before any step runs.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("no steps")
	}

	saved := make(map[string]bool)
	for i, step := range s.Steps {
		switch step.Op {
		case "produce":
			if step.Channel == "" {
				return fmt.Errorf("step %d: produce needs a channel", i)
			}
			if step.Payload == nil {
				return fmt.Errorf("step %d: produce needs a payload", i)
			}
		case "consume", "install":
			if len(step.Channels) == 0 {
				return fmt.Errorf("step %d: %s needs channels", i, step.Op)
			}
			if len(step.Channels) != len(step.Patterns) {
				return fmt.Errorf("step %d: %d channels but %d patterns", i, len(step.Channels), len(step.Patterns))
			}
			if step.Tag == "" {
				return fmt.Errorf("step %d: %s needs a tag", i, step.Op)
			}
		case "checkpoint":
			if step.Save == "" {
				return fmt.Errorf("step %d: checkpoint needs a save name", i)
			}
			saved[step.Save] = true
		case "reset":
			if step.Root == "" {
				return fmt.Errorf("step %d: reset needs a root name", i)
			}
			if !saved[step.Root] {
				return fmt.Errorf("step %d: reset references unsaved root %q", i, step.Root)
			}
		case "clear":
			// no fields
		case "":
			return fmt.Errorf("step %d: missing op", i)
		default:
			return fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
	}
	return nil
}

// payloadValue converts the YAML payload of a produce step into a payload
// value. YAML integers, strings, bools, lists, and maps are supported;
// floats and nulls are rejected, matching what the space can store.
func payloadValue(v any) (term.Value, error) {
	switch x := v.(type) {
	case int:
		return term.Int(x), nil
	case int64:
		return term.Int(x), nil
	case uint64:
		return term.Int(int64(x)), nil
	case string:
		return term.String(x), nil
	case bool:
		return term.Bool(x), nil
	case []any:
		arr := make(term.Array, len(x))
		for i, e := range x {
			ev, err := payloadValue(e)
			if err != nil {
				return nil, err
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(term.Object, len(x))
		for k, e := range x {
			ev, err := payloadValue(e)
			if err != nil {
				return nil, err
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported payload value %T", v)
	}
}
