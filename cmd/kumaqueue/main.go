package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/sonroyaalmerol/kumaqueue/internal/backend"
	"github.com/sonroyaalmerol/kumaqueue/internal/config"
	"github.com/sonroyaalmerol/kumaqueue/internal/handlers"
	"github.com/sonroyaalmerol/kumaqueue/internal/repository"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "kumaqueue",
		Short:         "Discord music bot with a persistent per-guild queue",
		Version:       appVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(botCmd(), apiCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("exiting", "err", err)
		cancel()
		os.Exit(1)
	}
}

func botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Connect to Discord and play queued requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadBot()
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel)

			bot, err := handlers.NewBot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return bot.Run(cmd.Context())
		},
	}
}

func apiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the REST backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadAPI()
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel)

			db, err := repository.OpenDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			return backend.New(repository.NewRepo(db), cfg.APIToken).Run(cmd.Context(), cfg.ListenAddr)
		},
	}
}

func setupLogging(level string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLevel(level)})))
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "unknown"
	}
	return bi.Main.Version
}
