package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/tuplespace/internal/term"
)

// LoadInstalls loads standing-handler definitions from the .cue files of a
// directory. The files declare installs under a top-level "install" field:
//
//	install: handle_orders: {
//		channels: ["orders"]
//		patterns: ["{kind: \"order\", total: int}"]
//		tag:      "handle-order"
//	}
//
// Channels and patterns are parallel lists; patterns are CUE expression
// source, kept as strings here and compiled by the matcher at match time.
// Installs are returned sorted by declaration label so registration order
// is stable across runs.
func LoadInstalls(dir string) ([]term.Install, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("install directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("accessing install directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning install directory: %w", err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	installsVal := value.LookupPath(cue.ParsePath("install"))
	if !installsVal.Exists() {
		return nil, nil
	}

	iter, err := installsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating installs: %w", err)
	}

	var installs []term.Install
	for iter.Next() {
		ins, err := decodeInstall(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("install %q: %w", iter.Selector(), err)
		}
		installs = append(installs, ins)
	}
	return installs, nil
}

// decodeInstall extracts one install declaration from its CUE value.
func decodeInstall(v cue.Value) (term.Install, error) {
	var decl struct {
		Channels []string `json:"channels"`
		Patterns []string `json:"patterns"`
		Tag      string   `json:"tag"`
	}
	if err := v.Decode(&decl); err != nil {
		return term.Install{}, err
	}
	if len(decl.Channels) == 0 {
		return term.Install{}, fmt.Errorf("no channels")
	}
	if len(decl.Channels) != len(decl.Patterns) {
		return term.Install{}, fmt.Errorf("%d channels but %d patterns", len(decl.Channels), len(decl.Patterns))
	}
	if decl.Tag == "" {
		return term.Install{}, fmt.Errorf("missing tag")
	}

	channels := make([]term.Channel, len(decl.Channels))
	for i, c := range decl.Channels {
		channels[i] = term.Channel(c)
	}
	patterns := make([]term.Pattern, len(decl.Patterns))
	for i, p := range decl.Patterns {
		patterns[i] = term.Pattern(p)
	}
	return term.Install{
		Channels:     channels,
		Patterns:     patterns,
		Continuation: term.Continuation{Tag: decl.Tag},
	}, nil
}

// FindCUEFiles returns the .cue files directly inside dir, sorted by name.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".cue") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
