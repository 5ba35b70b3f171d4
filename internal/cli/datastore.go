package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/dicomcache/internal/wire"
)

const reportPrecision = time.Millisecond

// DatastoreCmd returns the datastore command group
func DatastoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datastore",
		Short: "Work with the configured AWS HealthImaging datastore",
	}
	cmd.AddCommand(datastoreIndexCmd())
	cmd.AddCommand(datastoreListCmd())
	return cmd
}

func datastoreIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Index every image set in the datastore",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := wire.IndexService().IndexDatastore(context.Background())
			if err != nil {
				return fmt.Errorf("datastore indexing failed: %w", err)
			}
			printReport(report)
			return nil
		},
	}
}

func datastoreListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the datastore's image set IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := wire.AHIStore()
			if err != nil {
				return err
			}
			ids, err := store.ListImageSetIDs(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list image sets: %w", err)
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			fmt.Printf("%d image set(s)\n", len(ids))
			return nil
		},
	}
}
