package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultProfile is used when the config names no current profile.
const DefaultProfile = "default"

// UserConfig represents ~/.dba/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile represents a single named configuration profile.
type Profile struct {
	Host     string `yaml:"host,omitempty"`
	Username string `yaml:"username,omitempty"`
	Token    string `yaml:"token,omitempty"`
	Output   string `yaml:"output,omitempty"`
	Database int64  `yaml:"database,omitempty"`
}

// emptyUserConfig is used when no config file exists yet.
func emptyUserConfig() *UserConfig {
	return &UserConfig{CurrentProfile: DefaultProfile, Profiles: map[string]Profile{}}
}

// ProfileName returns the profile selected by override or current-profile.
func (c *UserConfig) ProfileName(override string) string {
	switch {
	case override != "":
		return override
	case c.CurrentProfile != "":
		return c.CurrentProfile
	default:
		return DefaultProfile
	}
}

// ActiveProfile returns the profile to use based on the override or current-profile.
func (c *UserConfig) ActiveProfile(override string) Profile {
	return c.Profiles[c.ProfileName(override)]
}

// UpdateProfile applies fn to the named profile and stores the result.
func (c *UserConfig) UpdateProfile(name string, fn func(*Profile)) {
	if c.Profiles == nil {
		c.Profiles = map[string]Profile{}
	}
	p := c.Profiles[name]
	fn(&p)
	c.Profiles[name] = p
}

// ConfigDir returns the path to ~/.dba/.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dba")
}

// ConfigPath returns the path to ~/.dba/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads ~/.dba/config.yaml.
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

// loadOrEmptyUserConfig returns the saved config, or an empty one when the
// file does not exist yet.
func loadOrEmptyUserConfig() *UserConfig {
	cfg, err := LoadUserConfig()
	if err != nil {
		return emptyUserConfig()
	}
	return cfg
}

// SaveUserConfig writes ~/.dba/config.yaml.
func SaveUserConfig(cfg *UserConfig) error {
	if err := os.MkdirAll(ConfigDir(), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o600)
}
