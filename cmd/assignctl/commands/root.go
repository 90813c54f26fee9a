package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "assignctl",
	Short: "CLI tool for campaign admin assignment automation",
	Long: `Assignctl drives the assignd service: it previews assignment plans,
starts automation runs and inspects their jobs.

Examples:
  assignctl plan --admins "admin 1,admin 2" --time pagi
  assignctl run --admins "admin 1,admin 2" --time pagi
  assignctl jobs
  assignctl status 1712832000000
  assignctl cancel 1712832000000`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the assignd API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key for protected endpoints")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Environment (regular, staging)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}
