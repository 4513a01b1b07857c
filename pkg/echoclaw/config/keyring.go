// Package config – keyring.go stores the AI API key in the operating
// system's keyring (Secret Service, Keychain, Credential Manager).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	keyringService = "echoclaw"
	keyringAPIKey  = "ai_api_key"
)

// StoreAPIKey saves the AI API key to the OS keyring.
func StoreAPIKey(value string) error {
	if err := keyring.Set(keyringService, keyringAPIKey, value); err != nil {
		return fmt.Errorf("storing in keyring: %w", err)
	}
	return nil
}

// DeleteAPIKey removes the AI API key from the OS keyring.
func DeleteAPIKey() error {
	return keyring.Delete(keyringService, keyringAPIKey)
}

// ResolveAPIKey fills cfg.AI.APIKey from the keyring when the environment
// did not provide one.
func ResolveAPIKey(cfg *Config, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AI.APIKey != "" {
		logger.Debug("API key loaded from config/env")
		return
	}

	val, err := keyring.Get(keyringService, keyringAPIKey)
	if err == nil && val != "" {
		cfg.AI.APIKey = val
		logger.Debug("API key loaded from OS keyring")
		return
	}

	logger.Warn("no API key found. Set one with: echoclaw config set-key, or set AI_API_KEY")
}

// ReadSecret prompts on stdout and reads a line without echo. Non-terminal
// input (pipes) is read as is.
func ReadSecret(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	var buf [1024]byte
	n, err := os.Stdin.Read(buf[:])
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(string(buf[:n])), nil
}
