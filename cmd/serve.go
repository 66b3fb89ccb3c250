package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/patiponrmutl/TutorSystem/database"
	"github.com/patiponrmutl/TutorSystem/handlers"
	"github.com/patiponrmutl/TutorSystem/repository"
	"github.com/patiponrmutl/TutorSystem/routes"
	"github.com/patiponrmutl/TutorSystem/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := database.Migrate(db, log); err != nil {
				return err
			}

			svc := services.NewTutorService(repository.NewTutorRepository(db), log)
			health := handlers.Health(func(ctx context.Context) error { return database.HealthCheck(ctx, db) })
			e := routes.NewServer(log, handlers.NewTutorHandler(svc, log), health)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := ":" + cfg.AppPort
			errCh := make(chan error, 1)
			go func() {
				log.Infow("server listening", "addr", addr, "env", cfg.AppEnv)
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Infow("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}
}
