package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anurisatria/assignd/internal/cli"
	"github.com/anurisatria/assignd/internal/client"
	"github.com/anurisatria/assignd/internal/jobs"
)

var jobsRunningOnly bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List automation jobs",
	Long: `List all automation jobs known to the server, newest first.

Examples:
  assignctl jobs
  assignctl jobs --running-only
  assignctl jobs --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		list, err := c.ListJobs(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		if jobsRunningOnly {
			var running []*jobs.Job
			for _, j := range list {
				if j.Status == jobs.StatusRunning {
					running = append(running, j)
				}
			}
			list = running
		}

		if !quiet {
			if len(list) == 0 {
				fmt.Println("No jobs found")
				return nil
			}
			return cli.PrintJobs(list, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().BoolVar(&jobsRunningOnly, "running-only", false, "Show only running jobs")
}
