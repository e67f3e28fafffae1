package commands

import (
	"github.com/spf13/cobra"
)

// GetQueryCmd returns the query command
func GetQueryCmd() *cobra.Command {
	var statusAbove, statusBelow, windowHours int

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List your jobs inside the lookback window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var above, below *int
			if cmd.Flags().Changed("status-above") {
				above = &statusAbove
			}
			if cmd.Flags().Changed("status-below") {
				below = &statusBelow
			}
			jobs, err := apiClient.QueryJobs(above, below, windowHours)
			if err != nil {
				return err
			}
			return printJSON(jobs)
		},
	}

	cmd.Flags().IntVar(&statusAbove, "status-above", 0, "Only jobs with status strictly above this value")
	cmd.Flags().IntVar(&statusBelow, "status-below", 0, "Only jobs with status strictly below this value")
	cmd.Flags().IntVar(&windowHours, "window-hours", 0, "Lookback window in hours (server default when 0)")
	return cmd
}
