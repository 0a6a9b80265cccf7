package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jizdni-rady/backend/internal/handlers"
	"github.com/jizdni-rady/backend/internal/importer"
	"github.com/jizdni-rady/backend/internal/repository"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, database, err := openDatabase(ctx, *configPath)
			if err != nil {
				return err
			}
			defer database.Close()

			opts, err := importOptions(cfg)
			if err != nil {
				return err
			}

			conn := database.Conn()
			imp := importer.New(repository.NewJDFRepository(database), opts)

			router := handlers.NewRouter(handlers.Handlers{
				JDF: handlers.NewJDFHandler(imp, handlers.UploadOptions{
					TempDir:         cfg.TempDir,
					KeepTemp:        cfg.KeepTemp,
					MaxUploadBytes:  cfg.MaxUploadBytes(),
					MaxExtractBytes: cfg.MaxExtractBytes(),
				}),
				Stops:          handlers.NewStopHandler(repository.NewStopRepository(conn)),
				Carriers:       handlers.NewCarrierHandler(repository.NewCarrierRepository(conn)),
				Imports:        handlers.NewImportRunHandler(repository.NewImportRunRepository(conn)),
				Health:         handlers.NewHealthHandler(database),
				AllowedOrigins: cfg.AllowedOrigins,
			})

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			log.Printf("API server starting on :%d", cfg.Port)
			log.Println("JDF endpoints:")
			log.Println("  POST /api/jdf/zip")
			log.Println("  GET  /api/stops, /api/stops/nearest, /api/stops/{id}")
			log.Println("  PUT  /api/stops/{id}/coords")
			log.Println("  GET  /api/carriers/{id}/lines")
			log.Println("  GET  /api/imports")
			log.Println("Health:")
			log.Println("  GET /health (with database check)")

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
				log.Println("Shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
}
