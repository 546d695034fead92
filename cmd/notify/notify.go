// Package notify runs one notification scheduler pass.
package notify

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gbif-alert/gbif-alert-go/internal/conf"
	"github.com/gbif-alert/gbif-alert-go/internal/datastore"
	"github.com/gbif-alert/gbif-alert-go/internal/notification"
	"github.com/gbif-alert/gbif-alert-go/internal/observability/metrics"
)

// Command creates the notify subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Evaluate all alerts and deliver the due ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd, settings)
		},
	}
}

func runNotify(cmd *cobra.Command, settings *conf.Settings) error {
	provider, err := notification.NewFromSettings(settings)
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("notifications are disabled in configuration")
	}

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer store.Close()

	alertMetrics, err := metrics.NewAlertMetrics(prometheus.NewRegistry())
	if err != nil {
		return err
	}

	scheduler := notification.NewScheduler(store, provider, alertMetrics)
	result, err := scheduler.ProcessAlerts(cmd.Context(), time.Now().UTC())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"scheduler pass: %d alerts evaluated, %d sent, %d failed\n",
		result.Evaluated, result.Sent, result.Failed)
	return nil
}
