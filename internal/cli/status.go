package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/dicomcache/internal/wire"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configured stores and local cache contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := wire.Config()

			fmt.Println("dicomcache status")
			fmt.Println()
			if cfg.DICOMwebURL != "" {
				fmt.Printf("  DICOMweb endpoint: %s\n", cfg.DICOMwebURL)
			} else {
				fmt.Println("  DICOMweb endpoint: (not configured)")
			}
			if cfg.DatastoreID != "" {
				fmt.Printf("  HealthImaging datastore: %s (%s)\n", cfg.DatastoreID, cfg.AWSRegion)
			} else {
				fmt.Println("  HealthImaging datastore: (not configured)")
			}
			fmt.Printf("  Database dir: %s\n", cfg.DatabaseDir(wire.ConfigDir()))
			fmt.Println()

			database := wire.Database()
			if err := database.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			counts, err := database.Counts(context.Background())
			if err != nil {
				return fmt.Errorf("failed to count cache contents: %w", err)
			}
			fmt.Printf("  Patients: %d\n", counts.Patients)
			fmt.Printf("  Studies:  %d\n", counts.Studies)
			fmt.Printf("  Series:   %d\n", counts.Series)
			fmt.Printf("  Images:   %d\n", counts.Images)
			fmt.Printf("  Cached tag values: %d\n", counts.Tags)
			return nil
		},
	}
}
