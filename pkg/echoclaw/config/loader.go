// Package config – loader.go loads configuration from YAML, .env files and
// the environment.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} or $VAR_NAME in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)

// EnvFiles are loaded, in order, before the environment is read. Variables
// already present in the environment are never overwritten.
var EnvFiles = []string{".env", ".env.local"}

// Load builds the configuration. path may be empty, in which case the
// standard locations are searched and a missing file is not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	// Only variables that are set override file and default values.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	resolveAPIKeyFromEnv(cfg)
	cfg.Access.AllowedGroupIDs = cleanIDs(cfg.Access.AllowedGroupIDs)
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	cfg.Search.Provider = strings.ToLower(strings.TrimSpace(cfg.Search.Provider))
	cfg.Storage.PersonaStore = strings.ToLower(strings.TrimSpace(cfg.Storage.PersonaStore))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile returns the first existing config file in the standard
// locations, or "".
func FindConfigFile() string {
	candidates := []string{
		"echoclaw.yaml",
		"echoclaw.yml",
		"config.yaml",
		"config.yml",
		"configs/echoclaw.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// WriteEnvFile writes values to a .env file with owner-only permissions.
func WriteEnvFile(values map[string]string, path string) error {
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}

// loadEnvFiles loads .env files from the working directory.
func loadEnvFiles() {
	for _, f := range EnvFiles {
		// godotenv.Load does NOT overwrite existing env vars.
		_ = godotenv.Load(f)
	}
}

// resolveAPIKeyFromEnv applies the provider-specific key variables when
// AI_API_KEY is unset.
func resolveAPIKeyFromEnv(cfg *Config) {
	if cfg.AI.APIKey != "" {
		return
	}

	var candidates []string
	switch strings.ToLower(cfg.AI.Provider) {
	case AIProviderOpenAI:
		candidates = []string{"OPENAI_API_KEY"}
	default:
		candidates = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	for _, name := range candidates {
		if v := os.Getenv(name); v != "" {
			cfg.AI.APIKey = v
			return
		}
	}
}

// expandEnvVars replaces ${VAR} and $VAR references with their environment
// values. Unset variables are left as written.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// cleanIDs trims IDs and drops empties.
func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
