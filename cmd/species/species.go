// Package species manages the species reference table.
package species

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gbif-alert/gbif-alert-go/internal/conf"
	"github.com/gbif-alert/gbif-alert-go/internal/datastore"
)

// Command creates the species subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "species",
		Short: "Manage the species reference table",
	}
	cmd.AddCommand(listCommand(settings), addCommand(settings))
	return cmd
}

func openStore(settings *conf.Settings) (datastore.Interface, error) {
	store := datastore.New(settings)
	if store == nil {
		return nil, fmt.Errorf("no database backend enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all known species",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			defer store.Close()

			all, err := store.GetAllSpecies()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTAXON KEY\tNAME")
			for i := range all {
				fmt.Fprintf(w, "%d\t%d\t%s\n", all[i].ID, all[i].GBIFTaxonKey, all[i].Name)
			}
			return w.Flush()
		},
	}
}

func addCommand(settings *conf.Settings) *cobra.Command {
	var name string
	var taxonKey int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a species so the pipeline can import its occurrences",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || taxonKey == 0 {
				return fmt.Errorf("both --name and --taxon-key are required")
			}
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			defer store.Close()

			entry := datastore.Species{Name: name, GBIFTaxonKey: taxonKey}
			if err := store.CreateSpecies(&entry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "species #%d registered: %s (taxon key %d)\n",
				entry.ID, entry.Name, entry.GBIFTaxonKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "scientific name")
	cmd.Flags().IntVar(&taxonKey, "taxon-key", 0, "GBIF taxon key")
	return cmd
}
