// Package config – config.go defines the EchoClaw configuration. Values come
// from defaults, an optional YAML file, .env files and the environment, in
// that order of increasing precedence.
package config

import (
	"fmt"
	"strings"
)

// Config is the full runtime configuration.
type Config struct {
	// Debug enables debug logging, including prompts and classifications.
	Debug bool `yaml:"debug" env:"DEBUG_MODE"`

	// LogFormat is "json" (default) or "text".
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	AI       AIConfig       `yaml:"ai"`
	Search   SearchConfig   `yaml:"search"`
	Features FeatureConfig  `yaml:"features"`
	Access   AccessConfig   `yaml:"access"`
	Storage  StorageConfig  `yaml:"storage"`
	Channels ChannelsConfig `yaml:"channels"`
}

// AIConfig configures the language model.
type AIConfig struct {
	// Provider is "gemini" (default) or "openai".
	Provider string `yaml:"provider" env:"AI_PROVIDER"`
	Model    string `yaml:"model" env:"AI_MODEL"`
	BaseURL  string `yaml:"base_url" env:"AI_BASE_URL"`

	// APIKey falls back to GEMINI_API_KEY / GOOGLE_API_KEY or OPENAI_API_KEY,
	// then to the OS keyring.
	APIKey string `yaml:"api_key" env:"AI_API_KEY"`
}

// SearchConfig configures web search.
type SearchConfig struct {
	Enabled    bool `yaml:"enabled" env:"SEARCH_ENABLED"`
	MaxResults int  `yaml:"max_results" env:"MAX_SEARCH_RESULTS"`

	// Provider is "google", "brave" or "duckduckgo". Empty picks google when
	// its keys are set, else duckduckgo.
	Provider       string `yaml:"provider" env:"SEARCH_PROVIDER"`
	GoogleAPIKey   string `yaml:"google_api_key" env:"GOOGLE_SEARCH_API_KEY"`
	GoogleEngineID string `yaml:"google_engine_id" env:"GOOGLE_SEARCH_ENGINE_ID"`
	BraveAPIKey    string `yaml:"brave_api_key" env:"BRAVE_API_KEY"`
}

// FeatureConfig holds the assistant's feature switches.
type FeatureConfig struct {
	PhoneIntegration bool `yaml:"phone_integration" env:"PHONE_INTEGRATION_ENABLED"`
	Persona          bool `yaml:"persona" env:"USER_PERSONA_ENABLED"`
	PersonaLearning  bool `yaml:"persona_learning" env:"USER_PERSONA_LEARNING_MODE"`
}

// AccessConfig controls which chats get replies.
type AccessConfig struct {
	GroupRestriction bool     `yaml:"group_restriction" env:"GROUP_RESTRICTION_ENABLED"`
	AllowedGroupIDs  []string `yaml:"allowed_group_ids" env:"ALLOWED_GROUP_IDS" envSeparator:","`
}

// StorageConfig locates persistent state.
type StorageConfig struct {
	// DatabasePath is the SQLite file shared by the WhatsApp session, the
	// persona profile and the allow-list.
	DatabasePath string `yaml:"database_path" env:"DATABASE_PATH"`

	// PersonaStore is "sqlite" (default) or "file".
	PersonaStore string `yaml:"persona_store" env:"PERSONA_STORE"`
	PersonaFile  string `yaml:"persona_file" env:"PERSONA_FILE"`
}

// ChannelsConfig configures chat transports.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Discord  DiscordConfig  `yaml:"discord"`
}

// WhatsAppConfig configures the WhatsApp channel.
type WhatsAppConfig struct {
	Enabled bool `yaml:"enabled" env:"WHATSAPP_ENABLED"`

	// DeviceName is shown in WhatsApp's linked devices list.
	DeviceName string `yaml:"device_name" env:"WHATSAPP_DEVICE_NAME"`
}

// DiscordConfig configures the Discord channel. It is enabled when Token
// is set.
type DiscordConfig struct {
	Token string `yaml:"token" env:"DISCORD_TOKEN"`

	// OwnerID is the owner's Discord user ID. Their messages count as
	// self-authored (persona learning and owner commands).
	OwnerID string `yaml:"owner_id" env:"DISCORD_OWNER_ID"`
}

// Provider and store names.
const (
	AIProviderGemini = "gemini"
	AIProviderOpenAI = "openai"

	PersonaStoreSQLite = "sqlite"
	PersonaStoreFile   = "file"
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		LogFormat: "json",
		AI: AIConfig{
			Provider: AIProviderGemini,
		},
		Search: SearchConfig{
			Enabled:    true,
			MaxResults: 3,
		},
		Storage: StorageConfig{
			DatabasePath: "./data/echoclaw.db",
			PersonaStore: PersonaStoreSQLite,
			PersonaFile:  "./data/persona.json",
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				Enabled:    true,
				DeviceName: "EchoClaw",
			},
		},
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("MAX_SEARCH_RESULTS must be >= 0, got %d", c.Search.MaxResults)
	}

	switch strings.ToLower(c.AI.Provider) {
	case AIProviderGemini, AIProviderOpenAI:
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q (want gemini or openai)", c.AI.Provider)
	}

	switch strings.ToLower(c.Search.Provider) {
	case "", "google", "brave", "duckduckgo":
	default:
		return fmt.Errorf("unknown SEARCH_PROVIDER %q (want google, brave or duckduckgo)", c.Search.Provider)
	}

	switch strings.ToLower(c.Storage.PersonaStore) {
	case PersonaStoreSQLite, PersonaStoreFile:
	default:
		return fmt.Errorf("unknown PERSONA_STORE %q (want sqlite or file)", c.Storage.PersonaStore)
	}

	switch c.LogFormat {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q (want json or text)", c.LogFormat)
	}
	return nil
}

// EnvMap renders the configuration as environment variables, the format
// written to .env by the setup wizard.
func (c *Config) EnvMap() map[string]string {
	m := map[string]string{
		"DEBUG_MODE":                 fmt.Sprint(c.Debug),
		"LOG_FORMAT":                 c.LogFormat,
		"AI_PROVIDER":                c.AI.Provider,
		"AI_MODEL":                   c.AI.Model,
		"AI_BASE_URL":                c.AI.BaseURL,
		"AI_API_KEY":                 c.AI.APIKey,
		"SEARCH_ENABLED":             fmt.Sprint(c.Search.Enabled),
		"MAX_SEARCH_RESULTS":         fmt.Sprint(c.Search.MaxResults),
		"SEARCH_PROVIDER":            c.Search.Provider,
		"GOOGLE_SEARCH_API_KEY":      c.Search.GoogleAPIKey,
		"GOOGLE_SEARCH_ENGINE_ID":    c.Search.GoogleEngineID,
		"BRAVE_API_KEY":              c.Search.BraveAPIKey,
		"PHONE_INTEGRATION_ENABLED":  fmt.Sprint(c.Features.PhoneIntegration),
		"USER_PERSONA_ENABLED":       fmt.Sprint(c.Features.Persona),
		"USER_PERSONA_LEARNING_MODE": fmt.Sprint(c.Features.PersonaLearning),
		"GROUP_RESTRICTION_ENABLED":  fmt.Sprint(c.Access.GroupRestriction),
		"ALLOWED_GROUP_IDS":          strings.Join(c.Access.AllowedGroupIDs, ","),
		"DATABASE_PATH":              c.Storage.DatabasePath,
		"PERSONA_STORE":              c.Storage.PersonaStore,
		"PERSONA_FILE":               c.Storage.PersonaFile,
		"WHATSAPP_ENABLED":           fmt.Sprint(c.Channels.WhatsApp.Enabled),
		"WHATSAPP_DEVICE_NAME":       c.Channels.WhatsApp.DeviceName,
		"DISCORD_TOKEN":              c.Channels.Discord.Token,
		"DISCORD_OWNER_ID":           c.Channels.Discord.OwnerID,
	}
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}

// secretKeys are masked by Redacted.
var secretKeys = map[string]bool{
	"AI_API_KEY":            true,
	"GOOGLE_SEARCH_API_KEY": true,
	"BRAVE_API_KEY":         true,
	"DISCORD_TOKEN":         true,
}

// Redacted is EnvMap with secrets masked, for display.
func (c *Config) Redacted() map[string]string {
	m := c.EnvMap()
	for k := range secretKeys {
		if v, ok := m[k]; ok {
			m[k] = MaskSecret(v)
		}
	}
	return m
}

// MaskSecret keeps the first and last four characters of long secrets.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
