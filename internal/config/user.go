package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultUserConfigDir is the directory under the user's home for CLI state.
const DefaultUserConfigDir = ".vitality"

// DefaultUserConfigFile is the config file name within the config directory.
const DefaultUserConfigFile = "config.yaml"

// UserConfig represents the contents of ~/.vitality/config.yaml.
type UserConfig struct {
	APIBase string `yaml:"api_base,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// UserConfigPath returns the full path to the CLI config file.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, DefaultUserConfigDir, DefaultUserConfigFile), nil
}

// LoadUser reads the CLI config from path.
// Returns an empty config if the file doesn't exist.
func LoadUser(path string) (*UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &UserConfig{}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.APIBase != "" {
		if err := ValidateBaseURL(cfg.APIBase); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// SaveUser writes the CLI config to path, creating its directory.
func SaveUser(path string, cfg *UserConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
