package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// GetCancelCmd returns the cancel command
func GetCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cancelled, err := apiClient.CancelJob(args[0])
			if err != nil {
				return err
			}
			if cancelled {
				fmt.Println("Job cancelled")
			} else {
				fmt.Println("Nothing to cancel (job already finished?)")
			}
			return nil
		},
	}
}
