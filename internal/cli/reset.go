package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/tuplespace/internal/engine"
)

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <root>",
		Short: "Restore the space to a committed root",
		Long: `Replace the live state with the leaves committed under the given root,
then replay registered installs. Fails when the root names no committed
checkpoint.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, cleanup, err := openEngine(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.Reset(ctx, args[0]); err != nil {
				if engine.IsCheckpointError(err) {
					return WrapExitError(ExitFailure, "unknown root", err)
				}
				return WrapExitError(ExitCommandError, "reset failed", err)
			}

			f := formatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if f.Format == "json" {
				return f.Success(map[string]any{"root": args[0]})
			}
			return f.Success("reset to " + args[0])
		},
	}
	return cmd
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the space",
		Long: `Reset the space to the canonical empty root: every datum and waiting
continuation is dropped, then registered installs are replayed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, cleanup, err := openEngine(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.Clear(ctx); err != nil {
				return WrapExitError(ExitCommandError, "clear failed", err)
			}

			f := formatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if f.Format == "json" {
				return f.Success(map[string]any{"cleared": true})
			}
			return f.Success("cleared")
		},
	}
	return cmd
}
