package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/festy23/contribution_engine/internal/app"
)

// reportCmd runs one background job by hand and prints its report as JSON.
func reportCmd(use, short string, run func(ctx context.Context, a *app.App) (interface{}, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			report, err := run(cmd.Context(), a)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}),
	}
}

func init() {
	rootCmd.AddCommand(
		reportCmd("reconcile", "Replay admitted events that were never scored", func(ctx context.Context, a *app.App) (interface{}, error) {
			return a.Pipeline.Reconcile(ctx, a.Config.Engine.ReconcileGrace)
		}),
		reportCmd("integrity", "Compare ledger sums with cached user totals", func(ctx context.Context, a *app.App) (interface{}, error) {
			return a.Ledger.VerifyIntegrity(ctx)
		}),
		reportCmd("snapshot", "Snapshot every leaderboard", func(ctx context.Context, a *app.App) (interface{}, error) {
			return a.Ranking.SnapshotAll(ctx)
		}),
		reportCmd("timeouts", "Release pull requests stuck in review", func(ctx context.Context, a *app.App) (interface{}, error) {
			return a.Reviews.ReleaseStaleReviews(ctx, a.Config.Engine.ReviewTimeout)
		}),
		reportCmd("sync", "Fetch missed pull request changes from GitHub", func(ctx context.Context, a *app.App) (interface{}, error) {
			return a.Sync.Sync(ctx)
		}),
	)
}
