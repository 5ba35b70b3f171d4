// Package cli implements the command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/dicomcache/internal/config"
	"github.com/example/dicomcache/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var (
		dicomwebURL string
		datastoreID string
		awsRegion   string
		cacheDir    string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the configuration and local databases",
		Long: `Create ~/.dicomcache/config.json and the metadata and tag-cache
database files with the required schema. Safe to re-run; existing
settings are kept unless overridden by a flag.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.DefaultConfigDir()
			if err != nil {
				return fmt.Errorf("failed to resolve config directory: %w", err)
			}

			cfg, err := config.LoadOrDefault(dir)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if dicomwebURL != "" {
				cfg.DICOMwebURL = dicomwebURL
			}
			if datastoreID != "" {
				cfg.DatastoreID = datastoreID
			}
			if awsRegion != "" {
				cfg.AWSRegion = awsRegion
			}
			if cacheDir != "" {
				cfg.CacheDir = cacheDir
			}
			if err := config.SaveConfig(dir, cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Printf("Config written to %s/config.json\n", dir)

			pair, err := db.Open(cfg.DatabaseDir(dir))
			if err != nil {
				return fmt.Errorf("failed to open databases: %w", err)
			}
			defer pair.Close()
			if err := pair.InitializeSchema(); err != nil {
				return fmt.Errorf("failed to initialize schema: %w", err)
			}

			fmt.Println("✓ Databases initialized successfully")
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  dicomcache index            # index studies from the DICOMweb endpoint")
			fmt.Println("  dicomcache status")
			return nil
		},
	}

	cmd.Flags().StringVar(&dicomwebURL, "dicomweb-url", "", "DICOMweb endpoint base URL")
	cmd.Flags().StringVar(&datastoreID, "datastore-id", "", "AWS HealthImaging datastore ID")
	cmd.Flags().StringVar(&awsRegion, "region", "", "AWS region of the datastore")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory for the database files")
	return cmd
}
