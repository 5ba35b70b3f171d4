package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/dicomcache/internal/ports/primary"
	"github.com/example/dicomcache/internal/wire"
)

// IndexCmd returns the index command
func IndexCmd() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "index [studyInstanceUID]",
		Short: "Index study metadata from the DICOMweb endpoint",
		Long: `Fetch study metadata from the configured DICOMweb endpoint and insert
it into the local cache. With a study UID argument, only that study is
indexed; otherwise studies are discovered through the paginated studies
listing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := primary.IndexStudiesRequest{Limit: limit, Offset: offset}
			if len(args) == 1 {
				req.StudyInstanceUID = args[0]
			}

			report, err := wire.IndexService().IndexStudies(context.Background(), req)
			if err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}
			printReport(report)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of studies to list (0 = server default)")
	cmd.Flags().IntVar(&offset, "offset", 0, "offset into the studies listing")
	return cmd
}

func printReport(report *primary.IndexReport) {
	fmt.Printf("Indexed %d instances in %s\n", report.Indexed, report.Elapsed.Round(reportPrecision))
	if len(report.Failed) > 0 {
		fmt.Printf("%s %d item(s) failed:\n", color.New(color.FgRed).Sprint("✗"), len(report.Failed))
		for _, id := range report.Failed {
			fmt.Printf("  %s\n", id)
		}
		return
	}
	fmt.Printf("%s No failures\n", color.New(color.FgGreen).Sprint("✓"))
}
