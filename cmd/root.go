// Package cmd assembles the command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gbif-alert/gbif-alert-go/cmd/importcmd"
	"github.com/gbif-alert/gbif-alert-go/cmd/notify"
	"github.com/gbif-alert/gbif-alert-go/cmd/species"
	"github.com/gbif-alert/gbif-alert-go/internal/conf"
	"github.com/gbif-alert/gbif-alert-go/internal/logging"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gbif-alert",
		Short: "Observation import pipeline and alert notifications",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := conf.Load()
			if err != nil {
				return err
			}
			*settings = *loaded
			logging.SetLogDirectory(settings.Logging.Dir)
			return nil
		},
	}

	rootCmd.AddCommand(
		configCommand(settings),
		importcmd.Command(settings),
		notify.Command(settings),
		species.Command(settings),
	)
	return rootCmd
}
