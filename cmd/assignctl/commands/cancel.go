package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anurisatria/assignd/internal/cli"
	"github.com/anurisatria/assignd/internal/client"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <jobID>",
	Short: "Cancel a running job",
	Long: `Ask the server to stop a running automation job.

Example:
  assignctl cancel 1712832000000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID := args[0]

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		cancelled, err := c.CancelJob(context.Background(), jobID)
		if err != nil {
			return fmt.Errorf("failed to cancel job: %w", err)
		}

		if !quiet {
			if cancelled {
				fmt.Printf("Job %s cancelled\n", jobID)
			} else {
				fmt.Printf("Job %s had already finished\n", jobID)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
