package commands

import (
	"github.com/spf13/cobra"
)

// GetStatusCmd returns the status command
func GetStatusCmd() *cobra.Command {
	var includeFiles bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			resp, err := apiClient.GetJob(args[0], includeFiles)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}

	cmd.Flags().BoolVar(&includeFiles, "files", false, "Inline the output artifacts")
	return cmd
}
