package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tuplespace/internal/engine"
	"github.com/roach88/tuplespace/internal/term"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Root string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [channel...]",
		Short: "Show stored rows, live or under a root",
		Long: `Show the space's rows. With no arguments, every live row is printed.
With channel arguments and --root, the single historical row stored for
that exact ordered channel group is printed instead.

Example:
  tuplespace show
  tuplespace show orders --root 4f1c...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Root, "root", "", "read under this committed root instead of live state")

	return cmd
}

func runShow(cmd *cobra.Command, opts *ShowOptions, channelArgs []string) error {
	ctx := cmd.Context()
	eng, cleanup, err := openEngine(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	f := formatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Root != "" {
		if len(channelArgs) == 0 {
			return NewExitError(ExitCommandError, "--root requires a channel group")
		}
		channels := make([]term.Channel, len(channelArgs))
		for i, c := range channelArgs {
			channels[i] = term.Channel(c)
		}
		g, err := eng.Retrieve(ctx, opts.Root, channels)
		if err != nil {
			if engine.IsCheckpointError(err) {
				return WrapExitError(ExitFailure, "unknown root", err)
			}
			return WrapExitError(ExitCommandError, "retrieve failed", err)
		}
		if g == nil {
			if f.Format == "json" {
				return f.Success(map[string]any{"found": false})
			}
			return f.Success("no row for that group under " + opts.Root)
		}
		return printGNATs(f, []term.GNAT{*g})
	}

	gnats, err := eng.Snapshot(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading state", err)
	}
	return printGNATs(f, gnats)
}

// printGNATs renders rows in the configured format.
func printGNATs(f *OutputFormatter, gnats []term.GNAT) error {
	if f.Format == "json" {
		rows := make([]map[string]any, len(gnats))
		for i, g := range gnats {
			rows[i] = map[string]any{
				"channels":      term.ChannelNames(g.Channels),
				"data":          len(g.Row.Data),
				"continuations": len(g.Row.Continuations),
			}
		}
		return f.Success(map[string]any{"rows": rows})
	}

	if len(gnats) == 0 {
		fmt.Fprintln(f.Writer, "(empty)")
		return nil
	}
	for _, g := range gnats {
		fmt.Fprintf(f.Writer, "[%s]\n", strings.Join(term.ChannelNames(g.Channels), ", "))
		for _, d := range g.Row.Data {
			b, err := term.MarshalCanonical(d.Payload)
			if err != nil {
				return err
			}
			marker := ""
			if d.Persist {
				marker = " (persist)"
			}
			fmt.Fprintf(f.Writer, "  datum %s%s\n", b, marker)
		}
		for _, wc := range g.Row.Continuations {
			marker := ""
			if wc.Persist {
				marker = " (persist)"
			}
			fmt.Fprintf(f.Writer, "  waiting %s%s on %v\n", wc.Continuation.Tag, marker, wc.Patterns)
		}
	}
	return nil
}
