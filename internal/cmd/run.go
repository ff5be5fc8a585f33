package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cockpit/internal/auth"
	"github.com/Iron-Ham/cockpit/internal/config"
	"github.com/Iron-Ham/cockpit/internal/event"
	"github.com/Iron-Ham/cockpit/internal/lifecycle"
	"github.com/Iron-Ham/cockpit/internal/logging"
	"github.com/Iron-Ham/cockpit/internal/project"
	"github.com/Iron-Ham/cockpit/internal/terminal"
	"github.com/Iron-Ham/cockpit/internal/tui"
	"github.com/Iron-Ham/cockpit/internal/workspace"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the server and open the live monitor",
	Long: `Connect to the session server, subscribe to its event channel, and open
the live monitor showing per-project session activity and terminals.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var logger *logging.Logger
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.Logging.ResolveLogDir(), cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
	} else {
		logger = logging.NopLogger()
	}
	defer logger.Close()

	credentials := auth.Load(cfg.Auth.ResolveTokenFile())
	if !credentials.HasToken() {
		logger.Warn("no credential loaded; terminal connect will be unavailable",
			"token_file", cfg.Auth.ResolveTokenFile())
	}

	client := project.NewClient(cfg.Server.URL, credentials)
	tracker := lifecycle.NewTracker(logger,
		lifecycle.WithStatusExpiry(cfg.Lifecycle.StatusExpiry()))
	ws := workspace.New(client, tracker, logger)
	registry := terminal.NewRegistry(logger)
	defer registry.Close()

	mux, err := terminal.NewMultiplexer(terminal.MultiplexerConfig{
		Client:      client,
		Credentials: credentials,
		Registry:    registry,
		Logger:      logger,
		Scrollback:  cfg.Terminal.Scrollback,
		SettleDelay: cfg.Terminal.SettleDelay(),
		RefitDelay:  cfg.Terminal.RefitDelay(),
	})
	if err != nil {
		return err
	}
	defer mux.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := ws.FetchProjects(ctx); err != nil {
		// The channel will deliver the list once the server is reachable.
		logger.Warn("initial project fetch failed", "error", err)
	}

	channel, err := event.NewChannel(event.ChannelConfig{
		URL:            eventChannelURL(cfg),
		Credentials:    credentials,
		Handler:        ws.HandleEvent,
		ReconnectDelay: cfg.Channel.ReconnectDelay(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	go func() {
		if err := channel.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("event channel stopped", "error", err)
		}
	}()

	program := tea.NewProgram(tui.NewModel(ws, tracker, registry, mux), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("monitor failed: %w", err)
	}
	return nil
}

// eventChannelURL resolves the event-channel endpoint: an explicit ws_url
// wins, otherwise it is derived from the API base URL.
func eventChannelURL(cfg *config.Config) string {
	if cfg.Server.WsURL != "" {
		return cfg.Server.WsURL + "/ws"
	}
	base := cfg.Server.URL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}
