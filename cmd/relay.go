package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/modcoretech/NG-Download-Manager/internal/channel"
	"github.com/modcoretech/NG-Download-Manager/internal/clipboard"
	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/host/remote"
	"github.com/modcoretech/NG-Download-Manager/internal/relay"
	"github.com/modcoretech/NG-Download-Manager/internal/surface"
	"github.com/modcoretech/NG-Download-Manager/internal/utils"
)

const shutdownTimeout = 5 * time.Second

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the event relay daemon",
	Long: `Run the event relay in the foreground. It follows the download engine's events,
keeps the badge and notifications current and serves the popup channel on loopback.`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

var relayStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running relay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid := readPID()
		if pid == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No running relay found (PID file missing).")
			return nil
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("finding process: %w", err)
		}
		if err := process.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("stopping relay: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Sent stop signal to process %d\n", pid)
		return nil
	},
}

var relayStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the relay is running",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		pid := readPID()
		if pid == 0 {
			fmt.Fprintln(out, "Relay is NOT running.")
			return
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			fmt.Fprintf(out, "Relay is NOT running (Process %d not found).\n", pid)
			return
		}
		// Signal 0 only checks existence
		if err := process.Signal(syscall.Signal(0)); err != nil {
			fmt.Fprintf(out, "Relay is NOT running (Process %d dead).\n", pid)
			return
		}

		fmt.Fprintf(out, "Relay is running (PID: %d, Port: %d).\n", pid, readActivePort())
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
	relayCmd.AddCommand(relayStopCmd)
	relayCmd.AddCommand(relayStatusCmd)

	relayCmd.Flags().String("config", "", "Path to config.toml (default: app dir)")
	relayCmd.Flags().IntP("port", "p", 0, "Channel port (default: 1710 or first available)")
	relayCmd.Flags().String("engine", "", "Download engine base URL")
	relayCmd.Flags().String("engine-token", "", "Bearer token for the download engine")
	relayCmd.Flags().String("webhook", "", "URL receiving a JSON post for every notification")
	relayCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadRelayConfig layers flags over environment, TOML file and defaults
func loadRelayConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("engine") {
		cfg.Engine.URL, _ = flags.GetString("engine")
	}
	if flags.Changed("engine-token") {
		cfg.Engine.Token, _ = flags.GetString("engine-token")
	}
	if flags.Changed("webhook") {
		cfg.Webhook, _ = flags.GetString("webhook")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// relayStack is the relay and every collaborator it pushes through
type relayStack struct {
	relay     *relay.Relay
	hub       *channel.Hub
	badge     *surface.Badge
	notifier  *surface.Notifier
	clipboard *clipboard.Helper
	handler   http.Handler
}

func newRelayStack(cfg *config.Config, settings *config.Store, token string, logger *slog.Logger) *relayStack {
	hub := channel.NewHub(logger)
	badge := surface.NewBadge(hub)
	hub.OnConnect = func() []any { return []any{badge.Current()} }
	notifier := surface.NewNotifier(hub, cfg.Webhook, logger)
	helper := clipboard.New(clipboard.Options{Logger: logger})

	r := relay.New(relay.Options{
		Downloads: remote.NewClient(cfg.Engine.URL, cfg.Engine.Token, logger),
		Notifier:  notifier,
		Badge:     badge,
		Settings:  settings,
		Clipboard: helper,
		Pusher:    hub,
		Logger:    logger,
	})

	return &relayStack{
		relay:     r,
		hub:       hub,
		badge:     badge,
		notifier:  notifier,
		clipboard: helper,
		handler:   channel.NewServer(r, settings, hub, token, logger).Handler(),
	}
}

func (s *relayStack) Close() {
	s.hub.Close()
	s.clipboard.Close()
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadRelayConfig(cmd)
	if err != nil {
		return err
	}
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	color := termenv.NewOutput(os.Stderr).ColorProfile() != termenv.Ascii
	logger := utils.NewLogger(os.Stderr, level, color)
	slog.SetDefault(logger)

	if err := config.EnsureAppDir(); err != nil {
		return fmt.Errorf("create app dir: %w", err)
	}

	lock := flock.New(config.GetLockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return errors.New("ngdm relay is already running. use 'ngdm relay status' to inspect it")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Debug("release lock failed", "err", err)
		}
	}()

	token, err := channel.LoadOrCreateToken(config.GetTokenPath())
	if err != nil {
		return err
	}
	store, err := config.OpenStore(config.GetSettingsDBPath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stack := newRelayStack(cfg, store, token, logger)
	defer stack.Close()

	port, ln, err := listen(cfg.Port)
	if err != nil {
		return err
	}
	if err := saveActivePort(port); err != nil {
		logger.Warn("write port file failed", "err", err)
	}
	defer removeActivePort()
	if err := savePID(); err != nil {
		logger.Warn("write pid file failed", "err", err)
	}
	defer removePID()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{Handler: stack.handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 2)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("channel server: %w", err)
		}
	}()
	go func() {
		errCh <- stack.relay.Run(ctx)
	}()

	logger.Info("relay started", "version", Version, "port", port, "engine", cfg.Engine.URL)
	fmt.Fprintf(cmd.OutOrStdout(), "ngdm relay %s listening on 127.0.0.1:%d\n", Version, port)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to exit.")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	stop()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("channel shutdown failed", "err", err)
	}

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
