// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ik5/audslot/assets"
)

func prepCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "prep <input> <output.wav>",
		Short: "Transcode an audio file into a canonical mono 16-bit WAV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := assets.NewLoader(
				assets.WithSampleRate(e.settings.SampleRate),
				assets.WithLogger(e.logger),
			)
			if err != nil {
				return err
			}
			if err := loader.Convert(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d Hz mono)\n", args[0], args[1], e.settings.SampleRate)
			return nil
		},
	}
}

func formatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the input formats prep and play understand",
		Args:  cobra.NoArgs,
		// The configuration is not needed here.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(assets.DefaultRegistry().Formats(), " "))
			return nil
		},
	}
}
