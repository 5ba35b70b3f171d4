package cli

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/dicomcache/internal/wire"
)

// FramesCmd returns the frames command
func FramesCmd() *cobra.Command {
	var (
		outputDir string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "frames <locator>...",
		Short: "Retrieve pixel-data frames by locator",
		Long: `Request the given frame locators from their remote store and wait for
the retrieval to settle. DICOMweb locators are frame URLs; HealthImaging
locators use the ahi:// scheme recorded during datastore indexing.

With --output, each retrieved frame is written as little-endian int16
samples to <dir>/<n>.raw in argument order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := wire.FrameService(args)
			if err != nil {
				return err
			}

			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			result, err := service.FetchFrames(ctx, args)
			if err != nil {
				return fmt.Errorf("frame retrieval failed: %w", err)
			}

			for i, locator := range args {
				samples, ok := result.Frames[locator]
				if !ok {
					fmt.Printf("%s %s\n", color.New(color.FgRed).Sprint("✗"), locator)
					continue
				}
				fmt.Printf("%s %s (%d samples)\n", color.New(color.FgGreen).Sprint("✓"), locator, len(samples))
				if outputDir != "" {
					if err := writeFrame(outputDir, i, samples); err != nil {
						return err
					}
				}
			}
			if len(result.Unresolved) > 0 {
				return fmt.Errorf("%d frame(s) unresolved", len(result.Unresolved))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output", "", "directory to write retrieved frames into")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall retrieval timeout (0 = none)")
	return cmd
}

func writeFrame(dir string, index int, samples []int16) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	raw := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.raw", index))
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
