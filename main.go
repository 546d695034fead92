package main

import (
	"os"

	"github.com/gbif-alert/gbif-alert-go/cmd"
	"github.com/gbif-alert/gbif-alert-go/internal/conf"
	"github.com/gbif-alert/gbif-alert-go/internal/logging"
)

func main() {
	logging.Init()

	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings)
	err := rootCmd.Execute()
	if closeErr := logging.Shutdown(); closeErr != nil {
		logging.Warn("closing log files", "error", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}
