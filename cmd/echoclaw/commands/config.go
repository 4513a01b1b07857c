package commands

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/config"
	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
)

// newConfigCmd creates the `echoclaw config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration and manage the API key",
		Long: `Inspect the effective configuration and manage the AI API key stored in
the operating system's keyring.

Examples:
  echoclaw config show
  echoclaw config set-key
  echoclaw config delete-key`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetKeyCmd(),
		newConfigDeleteKeyCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd, io.Discard)
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

// printConfig writes the redacted configuration as sorted KEY=value lines.
func printConfig(w io.Writer, cfg *config.Config) {
	values := cfg.Redacted()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		fmt.Fprintf(w, "%s=%s\n", k, values[k])
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key",
		Short: "Store the AI API key in the OS keyring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := config.ReadSecret("AI API key (hidden input): ")
			if err != nil {
				return err
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("empty API key")
			}
			if err := config.StoreAPIKey(key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key stored in the OS keyring.")
			return nil
		},
	}
}

func newConfigDeleteKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-key",
		Short: "Remove the AI API key from the OS keyring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := config.DeleteAPIKey()
			switch {
			case errors.Is(err, keyring.ErrNotFound):
				fmt.Fprintln(cmd.OutOrStdout(), "No API key stored.")
				return nil
			case err != nil:
				return fmt.Errorf("deleting from keyring: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key removed from the OS keyring.")
			return nil
		},
	}
}
