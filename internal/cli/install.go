package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tuplespace/internal/engine"
)

// InstallOptions holds flags for the install command.
type InstallOptions struct {
	*RootOptions
	Dir string
}

// NewInstallCommand creates the install command.
func NewInstallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InstallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "install --dir <specs-dir>",
		Short: "Register standing continuations from CUE files",
		Long: `Load standing-handler definitions from the .cue files of a directory
and register each one. Installs are permanent for the process and replayed
after every reset; a handler whose patterns would match existing data is
rejected.

Example:
  tuplespace install --dir ./handlers`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "directory of .cue install files (required)")
	cmd.MarkFlagRequired("dir")

	return cmd
}

func runInstall(cmd *cobra.Command, opts *InstallOptions) error {
	installs, err := LoadInstalls(opts.Dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading installs", err)
	}
	if len(installs) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no installs declared in %s", opts.Dir))
	}

	ctx := cmd.Context()
	eng, cleanup, err := openEngine(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	f := formatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	registered := make([]string, 0, len(installs))
	for _, ins := range installs {
		if err := eng.Install(ctx, ins.Channels, ins.Patterns, ins.Continuation); err != nil {
			if engine.IsUsageError(err) {
				return WrapExitError(ExitFailure, fmt.Sprintf("install %s rejected", ins.Continuation.Tag), err)
			}
			return WrapExitError(ExitCommandError, "install failed", err)
		}
		registered = append(registered, ins.Continuation.Tag)
		f.VerboseLog("installed %s on %v", ins.Continuation.Tag, ins.Channels)
	}

	if f.Format == "json" {
		return f.Success(map[string]any{"installed": registered})
	}
	return f.Success(fmt.Sprintf("installed %d handler(s)", len(registered)))
}
