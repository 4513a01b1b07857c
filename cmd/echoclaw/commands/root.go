// Package commands implements the EchoClaw CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "echoclaw",
		Short: "EchoClaw - a chat assistant that answers like you",
		Long: `EchoClaw answers your WhatsApp (and Discord) messages. It can search the
web, and once it has learned from your own messages it replies in your style.

Examples:
  echoclaw serve
  echoclaw chat
  echoclaw setup
  echoclaw config show`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newConfigCmd(),
		newSetupCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logs")

	return rootCmd
}
