package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/shiftfetch/internal/control"
	"github.com/vietddude/shiftfetch/internal/core/domain"
)

var pollInterval time.Duration

var pollCmd = &cobra.Command{
	Use:   "poll [path]",
	Short: "Poll one endpoint and serve health and metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  runPoll,
}

func init() {
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 0, "poll interval (default from config)")
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := control.NewApp(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to initialize shiftfetch", "error", err)
		return err
	}
	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start shiftfetch", "error", err)
		return err
	}

	interval := pollInterval
	if interval <= 0 {
		interval = appCfg.Poll.Interval
	}

	poller := control.NewPoller(
		func(ctx context.Context, d domain.RequestDescriptor) (*domain.Response, error) {
			return app.Transport().Execute(ctx, d)
		},
		domain.Get(args[0]),
		interval,
		func(resp *domain.Response, err error) {
			if err != nil {
				slog.Warn("Poll failed", "path", args[0], "error", err)
				return
			}
			slog.Info("Poll succeeded", "path", args[0], "status", resp.Status, "bytes", len(resp.Body))
		},
	)

	slog.Info("Polling started", "path", args[0], "interval", interval, "config", cfgPath)
	_ = poller.Run(ctx)
	slog.Info("Received signal, shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
	return nil
}
