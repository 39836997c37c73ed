package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tuplespace/internal/term"
)

// ConsumeOptions holds flags for the consume command.
type ConsumeOptions struct {
	*RootOptions
	Patterns []string
	Tag      string
	Persist  bool
}

// NewConsumeCommand creates the consume command.
func NewConsumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConsumeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "consume <channel>...",
		Short: "Register a continuation over a channel group",
		Long: `Register patterns plus a continuation over an ordered channel group,
one --pattern per channel. If the current data already completes the
match, the continuation fires immediately; otherwise it waits.

Patterns are CUE expressions: "_" matches anything, "int & >10" matches
bounded integers, '{kind: "order"}' matches open structs.

Example:
  tuplespace consume orders --pattern '{kind: "order", total: int}' --tag handle-order
  tuplespace consume a b --pattern int --pattern int --tag pair`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsume(cmd, opts, args)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Patterns, "pattern", nil, "CUE pattern, one per channel (required)")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "continuation tag (required)")
	cmd.Flags().BoolVar(&opts.Persist, "persist", false, "continuation survives firings")
	cmd.MarkFlagRequired("pattern")
	cmd.MarkFlagRequired("tag")

	return cmd
}

func runConsume(cmd *cobra.Command, opts *ConsumeOptions, channelArgs []string) error {
	if len(opts.Patterns) != len(channelArgs) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("%d channels but %d patterns", len(channelArgs), len(opts.Patterns)))
	}

	channels := make([]term.Channel, len(channelArgs))
	for i, c := range channelArgs {
		channels[i] = term.Channel(c)
	}
	patterns := make([]term.Pattern, len(opts.Patterns))
	for i, p := range opts.Patterns {
		patterns[i] = term.Pattern(p)
	}

	ctx := cmd.Context()
	eng, cleanup, err := openEngine(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	match, err := eng.Consume(ctx, channels, patterns, term.Continuation{Tag: opts.Tag}, opts.Persist)
	if err != nil {
		return WrapExitError(ExitCommandError, "consume failed", err)
	}

	f := formatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	return reportMatch(f, match, fmt.Sprintf("waiting as %s", opts.Tag))
}
