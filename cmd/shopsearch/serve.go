package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/shopsearch/internal/transport/chi"
	"github.com/kailas-cloud/shopsearch/internal/version"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP search API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.bootstrap()
			if err != nil {
				return err
			}

			logger.Info("Starting shopsearch API server",
				zap.String("version", version.Version),
				zap.String("commit", version.Commit),
				zap.Int("http_port", cfg.HTTP.Port),
				zap.String("db_driver", cfg.Database.Driver),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := a.loadCatalog(catalogPath, false)
			if err != nil {
				return err
			}

			opts := chiTransport.Options{Catalog: cat, APIKeys: cfg.Auth.APIKeys}
			if x := a.extractor(); x != nil {
				opts.Extractor = x
			}
			server := chiTransport.NewServer(a.retrieval, a.health(), opts, logger)

			addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
			srv := &http.Server{
				Addr:              addr,
				Handler:           server.Router(),
				ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
				ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
				WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
				logger.Info("Received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during shutdown", zap.Error(err))
			}

			logger.Info("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "product catalog CSV used to attach titles to hits")
	return cmd
}
