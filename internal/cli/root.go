package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/shiftfetch/internal/control"
	"github.com/vietddude/shiftfetch/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
	appCfg  *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "shiftfetch",
	Short: "Resilient API client",
	Long: `shiftfetch executes backend requests through a transport that retries transient failures,
remembers recent failures, and refreshes the session token on 401.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	// Load Configuration
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		return err
	}

	setupLogging(cfg.Logging, isDebug)

	appCfg = cfg
	return nil
}

func setupLogging(cfg config.LoggingConfig, debug bool) {
	slogLevel, _ := cfg.SlogLevel()
	if debug {
		slogLevel = slog.LevelDebug
	}

	if cfg.Format == config.LogFormatJSON {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
		return
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

// newApp builds the application for a one-shot command. Callers must Close it.
func newApp(ctx context.Context) (*control.App, error) {
	app, err := control.NewApp(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to initialize shiftfetch", "error", err)
		return nil, err
	}
	return app, nil
}
