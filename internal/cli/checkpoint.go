package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCheckpointCommand creates the checkpoint command.
func NewCheckpointCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Commit the current state and print its root",
		Long: `Commit the current live state to the history store and print the
resulting root hash. Committing identical state twice prints the same
root; the root is a valid target for reset and retrieve forever after.`,
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

			root, err := eng.Checkpoint(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "checkpoint failed", err)
			}

			f := formatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if f.Format == "json" {
				return f.Success(map[string]any{"root": root})
			}
			fmt.Fprintln(f.Writer, root)
			return nil
		},
	}
	return cmd
}
