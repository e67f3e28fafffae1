package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// GetDownloadCmd returns the download command
func GetDownloadCmd() *cobra.Command {
	var index int
	var output string

	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download a result image of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, mimeType, err := apiClient.DownloadImage(args[0], index)
			if err != nil {
				return err
			}

			if output == "" {
				output = fmt.Sprintf("%s_%d.png", args[0], index)
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Printf("Wrote %s (%d bytes, %s)\n", output, len(data), mimeType)
			return nil
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 0, "Image index to download")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path")
	return cmd
}
