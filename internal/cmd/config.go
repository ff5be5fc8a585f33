package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/cockpit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify Cockpit configuration",
	Long: `View or modify Cockpit configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  cockpit config set server.url http://build-box:3001
  cockpit config set terminal.scrollback 5000
  cockpit config set logging.level debug

Valid keys:
  server.url                 - API base URL (http or https)
  server.ws_url              - Websocket endpoint override (ws or wss)
  auth.token_file            - Path of the bearer token file
  terminal.scrollback        - Retained terminal output lines
  terminal.settle_ms         - Project-switch settle delay in milliseconds
  terminal.refit_ms          - Terminal refit delay in milliseconds
  lifecycle.status_expiry_s  - Finished-session status lifetime in seconds
  channel.reconnect_delay_s  - Event channel redial delay in seconds
  logging.enabled            - Enable debug logging (true/false)
  logging.level              - Log level: debug, info, warn, error
  logging.dir                - Log directory`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/cockpit/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()
	fmt.Println("  server:")
	fmt.Printf("    url:               %s\n", cfg.Server.URL)
	fmt.Printf("    ws_url:            %s\n", valueOrDefault(cfg.Server.WsURL, "(resolved via /api/config)"))
	fmt.Println("  auth:")
	fmt.Printf("    token_file:        %s\n", cfg.Auth.ResolveTokenFile())
	fmt.Println("  terminal:")
	fmt.Printf("    scrollback:        %d\n", cfg.Terminal.Scrollback)
	fmt.Printf("    settle_ms:         %d\n", cfg.Terminal.SettleMs)
	fmt.Printf("    refit_ms:          %d\n", cfg.Terminal.RefitMs)
	fmt.Println("  lifecycle:")
	fmt.Printf("    status_expiry_s:   %d\n", cfg.Lifecycle.StatusExpiryS)
	fmt.Println("  channel:")
	fmt.Printf("    reconnect_delay_s: %d\n", cfg.Channel.ReconnectDelayS)
	fmt.Println("  logging:")
	fmt.Printf("    enabled:           %t\n", cfg.Logging.Enabled)
	fmt.Printf("    level:             %s\n", cfg.Logging.Level)
	fmt.Printf("    dir:               %s\n", cfg.Logging.ResolveLogDir())

	return nil
}

func valueOrDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	if !isValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %s", key)
	}

	// Coerce to the key's natural type so the YAML stays typed
	var typed any = value
	if b, err := strconv.ParseBool(value); err == nil && isBoolKey(key) {
		typed = b
	} else if n, err := strconv.Atoi(value); err == nil && isIntKey(key) {
		typed = n
	}
	viper.Set(key, typed)

	// Reject values the validator would refuse before persisting them
	if _, err := config.Load(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(config.ConfigFile()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typed)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	config.SetDefaults()
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(config.ConfigFile())
	return nil
}

func isValidConfigKey(key string) bool {
	valid := []string{
		"server.url",
		"server.ws_url",
		"auth.token_file",
		"terminal.scrollback",
		"terminal.settle_ms",
		"terminal.refit_ms",
		"lifecycle.status_expiry_s",
		"channel.reconnect_delay_s",
		"logging.enabled",
		"logging.level",
		"logging.dir",
	}
	for _, v := range valid {
		if key == v {
			return true
		}
	}
	return false
}

func isBoolKey(key string) bool {
	return key == "logging.enabled"
}

func isIntKey(key string) bool {
	return strings.HasSuffix(key, "_ms") ||
		strings.HasSuffix(key, "_s") ||
		key == "terminal.scrollback"
}
