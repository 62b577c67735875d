package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"odatagate/internal/api"
	"odatagate/internal/config"
	"odatagate/internal/logging"
	"odatagate/internal/pg"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var db *sql.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = pg.Open(ctx, cfg.Database.URL, pg.DefaultPoolOptions())
		if err != nil {
			return err
		}
		defer db.Close()
	}

	svc, err := buildService(cfg, db, logger)
	if err != nil {
		return err
	}

	if db != nil && cfg.Database.AutoMigrate {
		ddl, err := pg.GenerateDDL(svc.Schemas)
		if err != nil {
			return err
		}
		if err := pg.ApplyDDL(ctx, db, ddl, logger.Named("ddl")); err != nil {
			return err
		}
	}

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           api.NewRouter(svc, cfg.Server.BasePath, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started",
			zap.String("addr", srv.Addr),
			zap.String("base_path", cfg.Server.BasePath),
			zap.Bool("postgres", db != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
