package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonesrussell/catalogwatch/internal/api"
	"github.com/jonesrussell/catalogwatch/internal/config"
	"github.com/jonesrussell/catalogwatch/internal/database"
	"github.com/jonesrussell/catalogwatch/internal/handlers"
	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/repository"
)

const shutdownTimeout = 10 * time.Second

// SetupHTTPServer builds the router with all handlers wired.
func SetupHTTPServer(cfg *config.Config, db *database.DB, log logger.Logger) *http.Server {
	sqlxDB := db.DB()

	h := api.Handlers{
		Changes: handlers.NewChangeHandler(
			repository.NewChangeLogRepository(sqlxDB, log),
			repository.NewMaterializedStateRepository(sqlxDB, log),
			log,
		),
		Admin: handlers.NewAdminHandler(
			repository.NewCrawlConfigRepository(sqlxDB, log),
			repository.NewCrawlRunRepository(sqlxDB, log),
			log,
		),
	}

	router := api.NewRouter(cfg, h, log)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// RunServer serves until the context is cancelled, then shuts down gracefully.
func RunServer(ctx context.Context, server *http.Server, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
