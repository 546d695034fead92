package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gbif-alert/gbif-alert-go/internal/conf"
)

func configCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(configInitCommand(settings))
	return cmd
}

func configInitCommand(settings *conf.Settings) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to a file",
		Long: "Writes the currently effective configuration, defaults plus any " +
			"loaded overrides, to a YAML file that can be edited and used as config.yaml.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.Save(settings, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "config.yaml", "target file")
	return cmd
}
