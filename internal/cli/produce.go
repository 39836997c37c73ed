package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tuplespace/internal/engine"
	"github.com/roach88/tuplespace/internal/term"
)

// ProduceOptions holds flags for the produce command.
type ProduceOptions struct {
	*RootOptions
	Persist bool
}

// NewProduceCommand creates the produce command.
func NewProduceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProduceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "produce <channel> <payload-json>",
		Short: "Deposit a datum on a channel",
		Long: `Deposit a datum on a channel. If a waiting continuation's patterns are
completed by the new datum, that continuation fires and is printed;
otherwise the datum is stored.

Payloads are JSON without floats or nulls.

Example:
  tuplespace produce orders '{"kind":"order","total":250}'
  tuplespace produce counters 42 --persist`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProduce(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.Persist, "persist", false, "datum survives matches")

	return cmd
}

func runProduce(cmd *cobra.Command, opts *ProduceOptions, channel, payloadJSON string) error {
	payload, err := term.UnmarshalValue([]byte(payloadJSON))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid payload JSON", err)
	}

	ctx := cmd.Context()
	eng, cleanup, err := openEngine(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	match, err := eng.Produce(ctx, term.Channel(channel), payload, opts.Persist)
	if err != nil {
		return WrapExitError(ExitCommandError, "produce failed", err)
	}

	f := formatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	return reportMatch(f, match, fmt.Sprintf("stored on %s", channel))
}

// reportMatch prints a fired match, or the stored message when nothing
// fired. Shared by produce and consume.
func reportMatch(f *OutputFormatter, match *engine.Match, storedMsg string) error {
	if match == nil {
		if f.Format == "json" {
			return f.Success(map[string]any{"fired": false})
		}
		return f.Success(storedMsg)
	}

	if f.Format == "json" {
		data := make([]map[string]any, len(match.Data))
		for i, d := range match.Data {
			data[i] = map[string]any{
				"channel": string(d.Channel),
				"payload": d.Payload,
				"value":   d.Value,
				"persist": d.Persist,
			}
		}
		return f.Success(map[string]any{
			"fired":        true,
			"continuation": match.Continuation.Tag,
			"consume_id":   match.ConsumeID,
			"persistent":   match.Persistent,
			"data":         data,
		})
	}

	fmt.Fprintf(f.Writer, "fired %s (%s)\n", match.Continuation.Tag, match.ConsumeID)
	for _, d := range match.Data {
		b, err := term.MarshalCanonical(d.Value)
		if err != nil {
			return err
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n", d.Channel, b)
	}
	return nil
}
