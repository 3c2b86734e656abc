package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/festy23/contribution_engine/internal/app"
	appConfig "github.com/festy23/contribution_engine/internal/config"
	"github.com/festy23/contribution_engine/pkg/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "engine",
	Short: "Contribution scoring engine",
	Long:  "Scores pull-request contributions into an append-only points ledger and serves leaderboards.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return appConfig.LoadDotEnv(envFile)
	},
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file")
}

// loadConfig reads and validates configuration and builds the logger.
func loadConfig() (appConfig.Config, *zap.SugaredLogger, error) {
	cfg := appConfig.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	log, err := logger.NewWithConfig(cfg.Logger)
	if err != nil {
		return cfg, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}

// withApp bootstraps the engine around run and releases it afterwards.
func withApp(run func(cmd *cobra.Command, a *app.App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		log = log.With("command", cmd.CommandPath())
		a, err := app.Bootstrap(cmd.Context(), cfg, log)
		if err != nil {
			log.Errorw("bootstrap failed", "error", err)
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warnw("close failed", "error", err)
			}
		}()

		return run(cmd, a)
	}
}
