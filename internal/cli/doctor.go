package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/dicomcache/internal/config"
	"github.com/example/dicomcache/internal/db"
	"github.com/example/dicomcache/internal/version"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the configuration and database files",
		Long: `Health check for the local setup.

Validates:
- Configuration directory and config.json
- Database files and schema version
- Remote store configuration

Examples:
  dicomcache doctor           # Run full health check
  dicomcache doctor --quiet   # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := []CheckResult{}

			dir, err := config.DefaultConfigDir()
			if err != nil {
				return fmt.Errorf("failed to resolve config directory: %w", err)
			}

			cfg, configResult := checkConfig(dir)
			results = append(results, configResult)
			if cfg != nil {
				results = append(results, checkDatabases(cfg.DatabaseDir(dir)))
				results = append(results, checkRemoteStores(cfg))
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
				}
			}

			if !quiet {
				fmt.Printf("%s\n\n", version.String())
				for _, r := range results {
					printCheck(r)
				}
			}
			if hasErrors {
				return errors.New("environment has issues")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress output, exit code only")
	return cmd
}

func checkConfig(dir string) (*config.Config, CheckResult) {
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, CheckResult{
				Name:    "Configuration",
				Status:  "⚠",
				Details: "no config.json; run `dicomcache init`",
			}
		}
		return nil, CheckResult{Name: "Configuration", Status: "✗", Details: err.Error()}
	}
	return cfg, CheckResult{Name: "Configuration", Status: "✓"}
}

func checkDatabases(dir string) CheckResult {
	path := filepath.Join(dir, db.MetadataFileName)
	if _, err := os.Stat(path); err != nil {
		return CheckResult{
			Name:    "Databases",
			Status:  "⚠",
			Details: fmt.Sprintf("%s missing; run `dicomcache init`", path),
		}
	}

	pair, err := db.Open(dir)
	if err != nil {
		return CheckResult{Name: "Databases", Status: "✗", Details: err.Error()}
	}
	defer pair.Close()

	if err := pair.InitializeSchema(); err != nil {
		if errors.Is(err, db.ErrSchemaVersionMismatch) {
			return CheckResult{
				Name:    "Databases",
				Status:  "✗",
				Details: fmt.Sprintf("schema version != %s; delete %s to rebuild", db.SchemaVersion, dir),
			}
		}
		return CheckResult{Name: "Databases", Status: "✗", Details: err.Error()}
	}
	return CheckResult{Name: "Databases", Status: "✓"}
}

func checkRemoteStores(cfg *config.Config) CheckResult {
	if cfg.DICOMwebURL == "" && cfg.DatastoreID == "" {
		return CheckResult{
			Name:    "Remote stores",
			Status:  "⚠",
			Details: "neither a DICOMweb endpoint nor a datastore is configured",
		}
	}
	if cfg.DatastoreID != "" && cfg.AWSRegion == "" {
		return CheckResult{
			Name:    "Remote stores",
			Status:  "✗",
			Details: "datastore configured without aws_region",
		}
	}
	return CheckResult{Name: "Remote stores", Status: "✓"}
}

func printCheck(r CheckResult) {
	icon := r.Status
	switch r.Status {
	case "✓":
		icon = color.New(color.FgGreen).Sprint(r.Status)
	case "⚠":
		icon = color.New(color.FgYellow).Sprint(r.Status)
	case "✗":
		icon = color.New(color.FgRed).Sprint(r.Status)
	}
	fmt.Printf("%s %s\n", icon, r.Name)
	if r.Status != "✓" && r.Details != "" {
		fmt.Printf("    %s\n", r.Details)
	}
}
