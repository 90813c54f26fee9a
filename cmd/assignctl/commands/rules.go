package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anurisatria/assignd/internal/cli"
	"github.com/anurisatria/assignd/internal/client"
	"github.com/anurisatria/assignd/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the user rule layer",
	Long:  `Manage the user-defined restriction rules layered on top of the builtin set.`,
}

var rulesApplyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Replace the user rules from a JSON file",
	Long: `Replace the server's user rule layer with the rules in a JSON file.
The file holds an array of rule objects. Requires the admin API key.

Example:
  assignctl rules apply rules.json --api-key admin-123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read rules file: %w", err)
		}

		var userRules []rules.Rule
		if err := json.Unmarshal(data, &userRules); err != nil {
			return fmt.Errorf("failed to parse rules file: %w", err)
		}
		if err := rules.ValidateAll(userRules); err != nil {
			return fmt.Errorf("invalid rules file: %w", err)
		}

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		count, err := c.ReplaceUserRules(context.Background(), userRules)
		if err != nil {
			return fmt.Errorf("failed to apply rules: %w", err)
		}

		if !quiet {
			fmt.Printf("Applied %d user rules\n", count)
		}

		return nil
	},
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a rules file locally",
	Long: `Validate a JSON rules file without contacting the server.

Example:
  assignctl rules check rules.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read rules file: %w", err)
		}

		var userRules []rules.Rule
		if err := json.Unmarshal(data, &userRules); err != nil {
			return fmt.Errorf("failed to parse rules file: %w", err)
		}
		if err := rules.ValidateAll(userRules); err != nil {
			return fmt.Errorf("invalid rules file: %w", err)
		}

		if !quiet {
			fmt.Printf("%s: %d rules, all valid\n", args[0], len(userRules))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesApplyCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
}
