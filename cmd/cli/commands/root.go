// Package commands implements the sdqueue CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diffuselab/sdqueue/pkg/api/v1/client"
	"github.com/diffuselab/sdqueue/pkg/api/v1/routes"
)

// flag names
const (
	flagServerAddress = "server-address"
	flagClientID      = "client-id"
)

// environment variable names
const (
	envServerAddress = "SDQUEUE_SERVER_ADDRESS"
	envClientID      = "SDQUEUE_CLIENT_ID"
)

var (
	// apiClient is the shared API client instance
	apiClient *client.Client
	// serverAddress holds the target API server address
	serverAddress string
	// clientIDFlag identifies the caller; jobs are owned by it
	clientIDFlag string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "sdqueue",
	Short: "sdqueue CLI - submit and manage image generation jobs",
	Long:  `sdqueue CLI is a command line tool for submitting, inspecting and cancelling image generation jobs through the sdqueue API.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if !cmd.Flags().Changed(flagServerAddress) {
			if envAddr := os.Getenv(envServerAddress); envAddr != "" {
				serverAddress = envAddr
			}
		}
		if !cmd.Flags().Changed(flagClientID) {
			if envID := os.Getenv(envClientID); envID != "" {
				clientIDFlag = envID
			}
		}
		return initClient()
	},
}

func initClient() error {
	opts := client.DefaultOptions()
	opts.BaseURL = serverAddress
	opts.ClientID = clientIDFlag

	var err error
	apiClient, err = client.New(opts)
	return err
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", routes.DefaultBaseURL, "Address of the sdqueue API server (env: SDQUEUE_SERVER_ADDRESS)")
	RootCmd.PersistentFlags().StringVarP(&clientIDFlag, flagClientID, "c", "", "Client ID owning the jobs (env: SDQUEUE_CLIENT_ID)")

	RootCmd.AddCommand(GetSubmitCmd())
	RootCmd.AddCommand(GetStatusCmd())
	RootCmd.AddCommand(GetQueryCmd())
	RootCmd.AddCommand(GetCancelCmd())
	RootCmd.AddCommand(GetDownloadCmd())
}

// Execute runs the root command
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
