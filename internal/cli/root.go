package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/narodplus/internal/config"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/existflow/narodplus/internal/tui"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFile    string
	logConsole bool
	serverURL  string

	// cfg is loaded once per invocation in PersistentPreRunE
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "narod",
	Short: "Народный+ - loyalty discount codes in your terminal",
	Long: `Народный+ shows the daily discount QR code of your subscription,
keeps your session on this device and works offline through a local cache.

Run 'narod' without arguments to open the QR screen.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config from file (or defaults if not exists)
		loaded, err := config.Load()
		if err != nil {
			logger.Warn("Failed to load config, using defaults", logger.Err(err))
			loaded = config.DefaultConfig()
		}

		// Override with CLI flags if provided
		configChanged := false
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
			configChanged = true
		}
		if cmd.Flags().Changed("log-file") {
			loaded.LogFile = logFile
			configChanged = true
		}
		if cmd.Flags().Changed("log-console") {
			loaded.LogConsole = logConsole
			configChanged = true
		}
		if cmd.Flags().Changed("server") {
			loaded.ServerURL = serverURL
			configChanged = true
		}

		// Save config if changed via CLI flags
		if configChanged {
			if err := loaded.Save(); err != nil {
				logger.Warn("Failed to save config", logger.Err(err))
			}
		}
		cfg = loaded

		logConfig := logger.Config{
			Level:      logger.ParseLevel(cfg.LogLevel),
			FilePath:   cfg.LogFile,
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxAge:     7,
			MaxBackups: 5,
			Console:    cfg.LogConsole,
		}

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.Info("Narod started", logger.F("command", cmd.Name()))
		return nil
	},

	RunE: runQRScreen,

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("Narod exiting", logger.F("command", cmd.Name()))
		_ = logger.Close()
	},
}

// Execute runs the root command until ctx is cancelled
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Backend base URL")

	// Add subcommands
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(subscriptionCmd)
	rootCmd.AddCommand(qrCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(payCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(storageCmd)
}

func runQRScreen(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("Launching QR screen")
	m := tui.NewModel(cmd.Context(), app.QR, cfg.QR.ExpiryCheck, cfg.ConfirmRefresh)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", logger.Err(err))
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	logger.Info("TUI exited normally")
	return nil
}
