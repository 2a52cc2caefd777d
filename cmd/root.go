package cmd

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/modcoretech/NG-Download-Manager/internal/clipboard"
	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/tui"
	"github.com/modcoretech/NG-Download-Manager/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Connection overrides shared by every channel client command
var (
	globalHost  string
	globalToken string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ngdm",
	Short: "A terminal download manager driven by a relay daemon",
	Long: `NG Download Manager relays a download engine's events to a terminal popup.
Run 'ngdm relay' once, then 'ngdm' to open the popup.`,
	Version:      Version,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runPopup,
}

var popupCmd = &cobra.Command{
	Use:   "popup",
	Short: "Open the downloads popup",
	Args:  cobra.NoArgs,
	RunE:  runPopup,
}

// runPopup starts the TUI against the relay. It logs to debug.log so the
// terminal stays clean.
func runPopup(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := utils.OpenLogFile(config.GetLogPath(), popupLogLevel())
	if err != nil {
		logger, closeLog = utils.Discard(), func() error { return nil }
	}
	defer func() { _ = closeLog() }()

	client, err := newChannelClient(logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	copier := clipboard.New(clipboard.Options{Logger: logger})
	defer copier.Close()

	m := tui.InitialRootModel(ctx, tui.Options{
		Backend: client,
		Copier:  copier,
		Logger:  logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		logger.Error("popup exited with error", "err", err)
		return fmt.Errorf("error running popup: %w", err)
	}
	return nil
}

func popupLogLevel() slog.Level {
	cfg, err := config.LoadConfig(config.GetConfigPath())
	if err != nil {
		return slog.LevelInfo
	}
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	return level
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalHost, "host", "", "Relay address host:port (or set NGDM_HOST)")
	rootCmd.PersistentFlags().StringVar(&globalToken, "token", "", "Channel auth token (or set NGDM_TOKEN)")
	rootCmd.SetVersionTemplate("ngdm version {{.Version}}\n")
	rootCmd.AddCommand(popupCmd)
}
