package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Cockpit configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Terminal  TerminalConfig  `mapstructure:"terminal"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Channel   ChannelConfig   `mapstructure:"channel"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig locates the backing API server
type ServerConfig struct {
	// URL is the API base URL (scheme://host[:port])
	URL string `mapstructure:"url"`
	// WsURL overrides the websocket endpoint; empty means resolve it via the
	// server's /api/config advertisement
	WsURL string `mapstructure:"ws_url"`
}

// AuthConfig controls where the bearer credential is read from
type AuthConfig struct {
	// TokenFile is the path of the file holding the bearer token.
	// The COCKPIT_TOKEN environment variable takes precedence.
	// Supports ~ for home directory expansion.
	TokenFile string `mapstructure:"token_file"`
}

// TerminalConfig controls embedded terminal behavior
type TerminalConfig struct {
	// Scrollback is the number of output lines retained per terminal (default: 10000)
	Scrollback int `mapstructure:"scrollback"`
	// SettleMs is how long a project switch waits before mounting the new
	// project's terminal (in milliseconds)
	SettleMs int `mapstructure:"settle_ms"`
	// RefitMs is the delay before refitting a terminal after a layout change
	// (in milliseconds)
	RefitMs int `mapstructure:"refit_ms"`
}

// LifecycleConfig controls session status tracking
type LifecycleConfig struct {
	// StatusExpiryS is how many seconds a finished session's status record
	// lingers before removal (default: 30)
	StatusExpiryS int `mapstructure:"status_expiry_s"`
}

// ChannelConfig controls the event channel transport
type ChannelConfig struct {
	// ReconnectDelayS is how many seconds to wait before redialing after the
	// channel drops (default: 3)
	ReconnectDelayS int `mapstructure:"reconnect_delay_s"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory log files are written to.
	// If empty, defaults to the config directory. Supports ~ expansion.
	Dir string `mapstructure:"dir"`
}

// SettleDelay returns the project-switch settle delay as a time.Duration
func (c *TerminalConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
}

// RefitDelay returns the terminal refit delay as a time.Duration
func (c *TerminalConfig) RefitDelay() time.Duration {
	return time.Duration(c.RefitMs) * time.Millisecond
}

// StatusExpiry returns the status record lifetime as a time.Duration
func (c *LifecycleConfig) StatusExpiry() time.Duration {
	return time.Duration(c.StatusExpiryS) * time.Second
}

// ReconnectDelay returns the channel redial delay as a time.Duration
func (c *ChannelConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayS) * time.Second
}

// ResolveTokenFile returns the token file path with ~ expanded. An empty
// setting resolves to "token" inside the config directory.
func (a *AuthConfig) ResolveTokenFile() string {
	if a.TokenFile == "" {
		return filepath.Join(ConfigDir(), "token")
	}
	return expandHome(a.TokenFile)
}

// ResolveLogDir returns the logging directory with ~ expanded, falling back
// to the config directory.
func (l *LoggingConfig) ResolveLogDir() string {
	if l.Dir == "" {
		return ConfigDir()
	}
	return expandHome(l.Dir)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			return home
		}
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:   "http://localhost:3001",
			WsURL: "", // Empty means resolve via /api/config
		},
		Auth: AuthConfig{
			TokenFile: "", // Empty means <config dir>/token
		},
		Terminal: TerminalConfig{
			Scrollback: 10000,
			SettleMs:   100,
			RefitMs:    50,
		},
		Lifecycle: LifecycleConfig{
			StatusExpiryS: 30,
		},
		Channel: ChannelConfig{
			ReconnectDelayS: 3,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Server defaults
	viper.SetDefault("server.url", defaults.Server.URL)
	viper.SetDefault("server.ws_url", defaults.Server.WsURL)

	// Auth defaults
	viper.SetDefault("auth.token_file", defaults.Auth.TokenFile)

	// Terminal defaults
	viper.SetDefault("terminal.scrollback", defaults.Terminal.Scrollback)
	viper.SetDefault("terminal.settle_ms", defaults.Terminal.SettleMs)
	viper.SetDefault("terminal.refit_ms", defaults.Terminal.RefitMs)

	// Lifecycle defaults
	viper.SetDefault("lifecycle.status_expiry_s", defaults.Lifecycle.StatusExpiryS)

	// Channel defaults
	viper.SetDefault("channel.reconnect_delay_s", defaults.Channel.ReconnectDelayS)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cockpit")
	}
	// Fall back to ~/.config/cockpit
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cockpit"
	}
	return filepath.Join(home, ".config", "cockpit")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
