package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/diffuselab/sdqueue/internal/types"
)

// GetSubmitCmd returns the submit command
func GetSubmitCmd() *cobra.Command {
	var req types.ImageToImageRequest
	var initImagePath string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a generation job",
		Long:  `Submit a text-to-image job, or an image-to-image job when --init-image is given.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if initImagePath == "" {
				result, err := apiClient.TextToImage(req.DiffusionRequest)
				if err != nil {
					return err
				}
				return printJSON(result)
			}

			image, err := os.ReadFile(initImagePath)
			if err != nil {
				return fmt.Errorf("failed to read init image: %w", err)
			}
			result, err := apiClient.ImageToImage(req, filepath.Base(initImagePath), image)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVarP(&req.Prompt, "prompt", "p", "", "Text prompt (required)")
	cmd.Flags().StringVar(&req.Version, "version", "1-4", "Model version (1-1, 1-2, 1-3, 1-4)")
	cmd.Flags().IntVar(&req.Samples, "samples", 1, "Samples to generate (1-9)")
	cmd.Flags().IntVar(&req.Steps, "steps", 50, "Diffusion steps (10-100)")
	cmd.Flags().IntVar(&req.Seed, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().IntVar(&req.Width, "width", 0, "Output width (multiple of 64)")
	cmd.Flags().IntVar(&req.Height, "height", 0, "Output height (multiple of 64)")
	cmd.Flags().StringVar(&initImagePath, "init-image", "", "Path to a seed image for image-to-image mode")
	cmd.Flags().IntVar(&req.Strength, "strength", 80, "Init image noising strength (1-100)")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
