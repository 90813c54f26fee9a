package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anurisatria/assignd/internal/cli"
	"github.com/anurisatria/assignd/internal/client"
)

var (
	runAdmins   string
	runTime     string
	runIncludes []string
	runExcludes []string
	runExempt   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an automation run",
	Long: `Start an automation run for the given cohort and time of day. The run
executes in the background on the server; use 'assignctl status' to follow it.

Examples:
  assignctl run --admins "admin 1,admin 2" --time pagi
  assignctl run --admins "admin 3,admin 4" --time malam --exempt "admin 5"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		req, err := buildRunRequest(runAdmins, runIncludes, runExcludes, runExempt, runTime)
		if err != nil {
			return err
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		resp, err := c.StartRun(context.Background(), req)
		if err != nil {
			return fmt.Errorf("failed to start run: %w", err)
		}

		if !quiet {
			fmt.Printf("Started job %s (%s)\n", resp.JobID, resp.Status)
			fmt.Printf("Follow it with: assignctl status %s --logs\n", resp.JobID)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runAdmins, "admins", "", "Comma-separated admin names")
	runCmd.Flags().StringVar(&runTime, "time", "pagi", "Time of day (pagi, siang, malam, manual)")
	runCmd.Flags().StringArrayVar(&runIncludes, "include", nil, "Restrict an admin to one campaign: 'admin name=campaignID'")
	runCmd.Flags().StringArrayVar(&runExcludes, "exclude", nil, "Keep an admin off one campaign: 'admin name=campaignID'")
	runCmd.Flags().StringVar(&runExempt, "exempt", "", "Admin exempt from conditional restrictions")
}
