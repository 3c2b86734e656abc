package main

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/festy23/contribution_engine/internal/app"
	"github.com/festy23/contribution_engine/internal/database/migrate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
		ctx := cmd.Context()
		log := a.Logger

		if runMigrations, _ := cmd.Flags().GetBool("migrate"); runMigrations {
			if err := migrate.Migrate(a.DB); err != nil {
				return err
			}
			log.Infow("migrations applied")
		}
		if err := a.SeedFromConfig(ctx); err != nil {
			return err
		}

		gin.SetMode(a.Config.GinMode)
		srv := &http.Server{
			Addr:           a.Config.Server.Address(),
			Handler:        a.Router(),
			ReadTimeout:    a.Config.Server.ReadTimeout,
			WriteTimeout:   a.Config.Server.WriteTimeout,
			IdleTimeout:    a.Config.Server.IdleTimeout,
			MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		}

		jobsCtx, stopJobs := context.WithCancel(ctx)
		var wg sync.WaitGroup
		if noJobs, _ := cmd.Flags().GetBool("no-jobs"); !noJobs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.Jobs.Start(jobsCtx)
			}()
		}

		serveErr := make(chan error, 1)
		go func() {
			log.Infow("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		var runErr error
		select {
		case <-ctx.Done():
			log.Infow("shutdown requested")
		case runErr = <-serveErr:
			log.Errorw("http server failed", "error", runErr)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("http shutdown incomplete", "error", err)
		}
		stopJobs()
		wg.Wait()
		log.Infow("server stopped")
		return runErr
	}),
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "Apply migrations before serving")
	serveCmd.Flags().Bool("no-jobs", false, "Do not run background jobs")
	rootCmd.AddCommand(serveCmd)
}
