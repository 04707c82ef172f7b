package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserConfig represents ~/.cohort/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile is a named set of store locations and output defaults. Empty
// fields fall through to the environment.
type Profile struct {
	DuckDB    string `yaml:"duckdb,omitempty" json:"duckdb,omitempty"`
	MetaDB    string `yaml:"meta-db,omitempty" json:"meta_db,omitempty"`
	Manifests string `yaml:"manifests,omitempty" json:"manifests,omitempty"`
	Output    string `yaml:"output,omitempty" json:"output,omitempty"`
}

// ActiveProfile returns the profile to use. An explicit override must name
// an existing profile; a missing current profile yields an empty one.
func (c *UserConfig) ActiveProfile(override string) (Profile, error) {
	if override != "" {
		p, ok := c.Profiles[override]
		if !ok {
			return Profile{}, fmt.Errorf("profile %q not found", override)
		}
		return p, nil
	}
	return c.Profiles[c.CurrentProfile], nil
}

// ConfigDir returns the path to ~/.cohort/.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cohort")
}

// ConfigPath returns the path to ~/.cohort/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads ~/.cohort/config.yaml.
func LoadUserConfig() (*UserConfig, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return &cfg, nil
}

// loadUserConfigOrEmpty treats a missing or unreadable file as no profiles.
func loadUserConfigOrEmpty() *UserConfig {
	cfg, err := LoadUserConfig()
	if err != nil {
		return &UserConfig{Profiles: map[string]Profile{}}
	}
	return cfg
}

// SaveUserConfig writes ~/.cohort/config.yaml.
func SaveUserConfig(cfg *UserConfig) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o600)
}
