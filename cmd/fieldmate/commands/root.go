// Package commands implements the FieldMate CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root CLI command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fieldmate",
		Short: "FieldMate - business assistant for tradespeople",
		Long: `FieldMate is a conversational business assistant for tradespeople.
It turns chat, WhatsApp, and voice messages into tasks, calendar events,
and invoices, with accounting sync and invoice email delivery.

Examples:
  fieldmate chat "add a task to order copper pipe for the Smith job"
  fieldmate serve
  fieldmate setup`,
		Version: version,
	}

	rootCmd.AddCommand(
		newChatCmd(),
		newServeCmd(),
		newSetupCmd(),
		newHealthCmd(),
	)

	// Global flags.
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
