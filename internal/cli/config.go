package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

// Config holds the server connection and the sites this CLI has published.
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version"`
	// Server is the base URL of the sync server
	Server string `yaml:"server"`
	// WebhookToken is sent when replaying GitHub push events
	WebhookToken string `yaml:"webhook_token,omitempty"`
	// CurrentSite is used when a command is not given a site ID
	CurrentSite string `yaml:"current_site,omitempty"`
	// OwnerTokens maps site IDs created by anonymous publishes to their owner token
	OwnerTokens map[string]string `yaml:"owner_tokens,omitempty"`
}

var config *Config

// GetDefaultConfigPath returns the default path for the config file,
// e.g. ~/.config/flowershow/config.yaml on Linux.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "flowershow", DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file, or from the default location
// when file is empty.
func LoadConfig(file string) error {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	yamlStr, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}

	var c Config
	if err = yaml.Unmarshal(yamlStr, &c); err != nil {
		return fmt.Errorf("unable to parse config file: %w", err)
	}
	c.Server = MorphServer(c.Server)
	if err := c.ValidateConfig(); err != nil {
		return err
	}

	config = &c
	return nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

// WriteConfig writes the configuration to file.
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), 0o755)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	// owner tokens grant control of anonymous sites
	err = os.WriteFile(file, yamlStr, 0o600)
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

func (cfg *Config) ValidateConfig() error {
	if cfg.Server == "" {
		return errors.New("server is required")
	}
	if !strings.HasPrefix(cfg.Server, "http://") && !strings.HasPrefix(cfg.Server, "https://") {
		return errors.New("server must start with http:// or https://")
	}
	u, err := url.Parse(cfg.Server)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid server URL: %q", cfg.Server)
	}
	return nil
}

// Print prints the configuration in a human-readable format
func (cfg *Config) Print() {
	fmt.Printf("Server: %s\n", cfg.Server)
	if cfg.CurrentSite != "" {
		fmt.Printf("Current Site: %s\n", cfg.CurrentSite)
	}
	if len(cfg.OwnerTokens) > 0 {
		fmt.Printf("Owned Sites: %d\n", len(cfg.OwnerTokens))
	}
}

// MorphServer adds http:// when no scheme is given and removes trailing slashes.
func MorphServer(server string) string {
	if server == "" {
		return server
	}
	server = strings.TrimRight(server, "/")
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	return server
}

// GetServerURL returns the properly formatted server URL
func (cfg *Config) GetServerURL() string {
	return MorphServer(cfg.Server)
}

// SiteID returns arg when set and the current site otherwise.
func (cfg *Config) SiteID(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if cfg.CurrentSite == "" {
		return "", errors.New("no site given and no current site configured")
	}
	return cfg.CurrentSite, nil
}

// RememberSite makes siteID current and stores its owner token, if any.
func (cfg *Config) RememberSite(siteID, ownerToken string) {
	cfg.CurrentSite = siteID
	if ownerToken == "" {
		return
	}
	if cfg.OwnerTokens == nil {
		cfg.OwnerTokens = make(map[string]string)
	}
	cfg.OwnerTokens[siteID] = ownerToken
}
