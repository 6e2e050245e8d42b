// Package cmd implements the dbgenie command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "dbgenie",
	Short: "dbgenie - conversational access to Databricks Genie",
	Long: `dbgenie is a terminal assistant for your Databricks workspace.

It forwards natural language questions to a Databricks Genie space,
polls until the query completes, and renders the result as text.
Running dbgenie without a subcommand starts an interactive chat.`,
	SilenceUsage: true,
	RunE:         runChat,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
