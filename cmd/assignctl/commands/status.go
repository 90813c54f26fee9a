package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anurisatria/assignd/internal/cli"
	"github.com/anurisatria/assignd/internal/client"
)

var statusShowLogs bool

var statusCmd = &cobra.Command{
	Use:   "status <jobID>",
	Short: "Show the status of a job",
	Long: `Show the current status of an automation job, optionally with its logs.

Examples:
  assignctl status 1712832000000
  assignctl status 1712832000000 --logs`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID := args[0]

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		ctx := context.Background()

		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to get job: %w", err)
		}

		if quiet {
			return nil
		}
		if err := cli.PrintJob(job, cli.OutputFormat(format)); err != nil {
			return err
		}

		if statusShowLogs {
			logs, err := c.GetJobLogs(ctx, jobID)
			if err != nil {
				return fmt.Errorf("failed to get job logs: %w", err)
			}
			fmt.Println()
			return cli.PrintLogs(logs.Logs, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusShowLogs, "logs", false, "Also print the job log")
}
