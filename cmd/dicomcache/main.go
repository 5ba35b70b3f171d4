package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/dicomcache/internal/cli"
	"github.com/example/dicomcache/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "dicomcache",
		Short:   "Local DICOM metadata cache and frame retriever",
		Version: version.String(),
		Long: `dicomcache indexes study metadata from DICOMweb endpoints and AWS
HealthImaging datastores into a local SQLite cache, and retrieves
pixel-data frames on demand.`,
	}

	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.IndexCmd())
	rootCmd.AddCommand(cli.DatastoreCmd())
	rootCmd.AddCommand(cli.FramesCmd())
	rootCmd.AddCommand(cli.StatusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
