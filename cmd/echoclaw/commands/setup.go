package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/access"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/config"
	"github.com/spf13/cobra"
)

// envFile is where the setup wizard writes the configuration.
const envFile = ".env"

// newSetupCmd creates the `echoclaw setup` interactive wizard.
func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Asks for the AI provider, API key and feature switches, then writes a .env
file. The API key can be kept in the OS keyring instead of the file.

Examples:
  echoclaw setup
  echoclaw setup --force`,
		RunE: runSetup,
	}

	cmd.Flags().Bool("force", false, "overwrite an existing .env")
	return cmd
}

// setupAnswers collects the wizard's form values.
type setupAnswers struct {
	Provider       string
	APIKey         string
	KeyInKeyring   bool
	Search         bool
	MaxResults     string
	Persona        bool
	Learning       bool
	Phone          bool
	Restrict       bool
	AllowedIDs     string
	WhatsApp       bool
	DiscordToken   string
	DiscordOwnerID string
}

func runSetup(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if envFileExists(envFile) && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", envFile)
	}

	cfg := config.DefaultConfig()
	ans := setupAnswers{
		Provider:     cfg.AI.Provider,
		KeyInKeyring: true,
		Search:       cfg.Search.Enabled,
		MaxResults:   strconv.Itoa(cfg.Search.MaxResults),
		WhatsApp:     cfg.Channels.WhatsApp.Enabled,
	}

	if err := setupForm(&ans).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled.")
			return nil
		}
		return fmt.Errorf("setup: %w", err)
	}

	ans.APIKey = strings.TrimSpace(ans.APIKey)
	if ans.APIKey != "" && ans.KeyInKeyring {
		if err := config.StoreAPIKey(ans.APIKey); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Could not use the keyring (%v), writing the key to %s.\n", err, envFile)
			ans.KeyInKeyring = false
		}
	}

	if err := ans.apply(cfg); err != nil {
		return err
	}
	if err := config.WriteEnvFile(cfg.EnvMap(), envFile); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s. Start with: echoclaw serve\n", envFile)
	return nil
}

func setupForm(ans *setupAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("AI provider").
				Options(
					huh.NewOption("Google Gemini", config.AIProviderGemini),
					huh.NewOption("OpenAI (or compatible)", config.AIProviderOpenAI),
				).
				Value(&ans.Provider),
			huh.NewInput().
				Title("API key").
				Description("Leave empty to set it later with 'echoclaw config set-key'.").
				EchoMode(huh.EchoModePassword).
				Value(&ans.APIKey),
			huh.NewConfirm().
				Title("Store the API key in the OS keyring?").
				Value(&ans.KeyInKeyring),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Enable web search?").Value(&ans.Search),
			huh.NewInput().
				Title("Search results per query").
				Validate(validateMaxResults).
				Value(&ans.MaxResults),
			huh.NewConfirm().Title("Reply in your own style (persona)?").Value(&ans.Persona),
			huh.NewConfirm().Title("Learn your style from messages you send?").Value(&ans.Learning),
			huh.NewConfirm().Title("Enable phone data (contacts, files, calendar)?").Value(&ans.Phone),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Only answer allowed chats?").Value(&ans.Restrict),
			huh.NewInput().
				Title("Allowed chat IDs").
				Description("Comma separated, e.g. 1203630@g.us. Add more later with /allow.").
				Value(&ans.AllowedIDs),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Connect WhatsApp?").Value(&ans.WhatsApp),
			huh.NewInput().
				Title("Discord bot token").
				Description("Optional.").
				EchoMode(huh.EchoModePassword).
				Value(&ans.DiscordToken),
			huh.NewInput().
				Title("Your Discord user ID").
				Description("Optional. Your messages there count as your own.").
				Value(&ans.DiscordOwnerID),
		),
	)
}

func validateMaxResults(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return errors.New("enter a number >= 0")
	}
	return nil
}

// apply copies the answers onto cfg. A key kept in the keyring is left out
// of the .env file.
func (a *setupAnswers) apply(cfg *config.Config) error {
	if err := validateMaxResults(a.MaxResults); err != nil {
		return err
	}
	n, _ := strconv.Atoi(strings.TrimSpace(a.MaxResults))

	cfg.AI.Provider = a.Provider
	if !a.KeyInKeyring {
		cfg.AI.APIKey = strings.TrimSpace(a.APIKey)
	}
	cfg.Search.Enabled = a.Search
	cfg.Search.MaxResults = n
	cfg.Features.Persona = a.Persona
	cfg.Features.PersonaLearning = a.Learning
	cfg.Features.PhoneIntegration = a.Phone
	cfg.Access.GroupRestriction = a.Restrict
	cfg.Access.AllowedGroupIDs = access.ParseIDs(a.AllowedIDs)
	cfg.Channels.WhatsApp.Enabled = a.WhatsApp
	cfg.Channels.Discord.Token = strings.TrimSpace(a.DiscordToken)
	cfg.Channels.Discord.OwnerID = strings.TrimSpace(a.DiscordOwnerID)
	return cfg.Validate()
}

// envFileExists reports whether path exists.
func envFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
