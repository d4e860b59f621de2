package userconfig

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	configDirName  = "thrivebase"
	configFileName = "config.json"

	// EnvAPIURL overrides the configured API URL
	EnvAPIURL = "THRIVEBASE_API_URL"
	// DefaultAPIURL is used when nothing else is configured
	DefaultAPIURL = "http://localhost:8000"
)

// UserConfig represents the user's local configuration stored in ~/.config/thrivebase/config.json
type UserConfig struct {
	APIURL string `json:"api_url,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", configDirName)
	return filepath.Join(configDir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If config doesn't exist, return empty config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Create config directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetAPIURL validates and stores the API URL
func SetAPIURL(apiURL string) error {
	normalized, err := NormalizeAPIURL(apiURL)
	if err != nil {
		return err
	}

	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.APIURL = normalized
	return Save(cfg)
}

// ResolveAPIURL picks the API URL by priority:
// 1. the --api-url flag
// 2. THRIVEBASE_API_URL
// 3. the user config file
// 4. DefaultAPIURL
func ResolveAPIURL(flagValue string) (string, error) {
	if flagValue != "" {
		return NormalizeAPIURL(flagValue)
	}

	if env := os.Getenv(EnvAPIURL); env != "" {
		return NormalizeAPIURL(env)
	}

	cfg, err := Load()
	if err != nil {
		return "", err
	}
	if cfg.APIURL != "" {
		return NormalizeAPIURL(cfg.APIURL)
	}

	return DefaultAPIURL, nil
}

// NormalizeAPIURL checks that apiURL is an absolute http(s) URL and strips
// any trailing slash
func NormalizeAPIURL(apiURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(apiURL))
	if err != nil {
		return "", fmt.Errorf("invalid API URL %q: %w", apiURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid API URL %q: scheme must be http or https", apiURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid API URL %q: missing host", apiURL)
	}
	return strings.TrimRight(u.String(), "/"), nil
}
