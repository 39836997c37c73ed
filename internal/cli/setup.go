package cli

import (
	"context"
	"io"

	"github.com/roach88/tuplespace/internal/cuematch"
	"github.com/roach88/tuplespace/internal/engine"
	"github.com/roach88/tuplespace/internal/history"
	"github.com/roach88/tuplespace/internal/store"
)

// openEngine builds a ready engine from the global flags: config file,
// store override, shuffle seed, and the install directory (loaded and
// registered before the command's own work). The returned cleanup closes
// the store.
func openEngine(ctx context.Context, opts *RootOptions) (*engine.Engine, func(), error) {
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "loading config", err)
	}
	if opts.Store != "" {
		cfg.StorePath = opts.Store
	}

	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "opening store", err)
	}
	cleanup := func() { s.Close() }

	h, err := history.New(s)
	if err != nil {
		cleanup()
		return nil, nil, WrapExitError(ExitCommandError, "opening history", err)
	}

	var engOpts []engine.Option
	if cfg.Seed != 0 {
		engOpts = append(engOpts, engine.WithShuffler(engine.NewSeededShuffler(cfg.Seed)))
	}
	eng := engine.New(s, h, cuematch.New(), engOpts...)

	if cfg.InstallDir != "" {
		installs, err := LoadInstalls(cfg.InstallDir)
		if err != nil {
			cleanup()
			return nil, nil, WrapExitError(ExitCommandError, "loading installs", err)
		}
		for _, ins := range installs {
			if err := eng.Install(ctx, ins.Channels, ins.Patterns, ins.Continuation); err != nil {
				cleanup()
				return nil, nil, WrapExitError(ExitCommandError, "registering install", err)
			}
		}
	}

	return eng, cleanup, nil
}

// formatter builds the command's OutputFormatter from the global flags.
func formatter(opts *RootOptions, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   opts.Verbose,
	}
}
