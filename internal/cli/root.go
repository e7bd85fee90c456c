// SPDX-License-Identifier: EPL-2.0

// Package cli implements the audslot command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ik5/audslot/config"
)

const defaultConfigPath = "audslot.yaml"

// env is filled by the root command before any subcommand runs.
type env struct {
	configPath string
	logLevel   string

	settings *config.Settings
	logger   *slog.Logger
}

// RootCommand creates the audslot command tree.
func RootCommand() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "audslot",
		Short:         "Prepare audio assets and drive playback sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", defaultConfigPath, "Path to the YAML configuration, created when missing")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "Override log_level from the configuration")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return e.load(cmd)
	}

	root.AddCommand(
		prepCommand(e),
		playCommand(e),
		formatsCommand(),
	)
	return root
}

func (e *env) load(cmd *cobra.Command) error {
	settings, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	if e.logLevel != "" {
		settings.LogLevel = e.logLevel
		if err := settings.Validate(); err != nil {
			return err
		}
	}

	e.settings = settings
	e.logger = settings.Logger(cmd.ErrOrStderr())
	return nil
}
