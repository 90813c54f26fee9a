package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anurisatria/assignd/internal/cli"
	"github.com/anurisatria/assignd/internal/client"
)

var (
	planAdmins   string
	planTime     string
	planIncludes []string
	planExcludes []string
	planExempt   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview the campaign assignment plan",
	Long: `Preview which admins would be assigned to which campaigns after applying
all restriction rules, without starting a run.

Examples:
  assignctl plan --admins "admin 1,admin 2" --time pagi
  assignctl plan --admins "admin 3,admin 4" --time siang --exclude "admin 4=247001"
  assignctl plan --admins "admin 1,admin 5,admin 91" --time pagi --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		req, err := buildRunRequest(planAdmins, planIncludes, planExcludes, planExempt, planTime)
		if err != nil {
			return err
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		plan, err := c.CheckPlan(context.Background(), req)
		if err != nil {
			return fmt.Errorf("failed to check plan: %w", err)
		}

		if !quiet {
			if len(plan) == 0 {
				fmt.Println("No campaigns selected for this time of day")
				return nil
			}
			return cli.PrintPlan(plan, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planAdmins, "admins", "", "Comma-separated admin names")
	planCmd.Flags().StringVar(&planTime, "time", "pagi", "Time of day (pagi, siang, malam, manual)")
	planCmd.Flags().StringArrayVar(&planIncludes, "include", nil, "Restrict an admin to one campaign: 'admin name=campaignID'")
	planCmd.Flags().StringArrayVar(&planExcludes, "exclude", nil, "Keep an admin off one campaign: 'admin name=campaignID'")
	planCmd.Flags().StringVar(&planExempt, "exempt", "", "Admin exempt from conditional restrictions")
}
