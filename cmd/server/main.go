package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/rpattn/retailops/internal/config"
	"github.com/rpattn/retailops/internal/db"
	"github.com/rpattn/retailops/internal/filestore"
	"github.com/rpattn/retailops/internal/importer"
	"github.com/rpattn/retailops/internal/middleware"
	"github.com/rpattn/retailops/internal/pricing"
	"github.com/rpattn/retailops/internal/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	priceRepo := repository.NewPriceListRepository(conn.Pool)
	discountRepo := repository.NewDiscountRepository(conn.Pool)
	importStore := repository.NewImportStore(conn)

	// Create services
	importOpts := []importer.Option{}
	if cfg.Import.ReportDir != "" {
		importOpts = append(importOpts, importer.WithReportDirectory(cfg.Import.ReportDir))
	}
	if source := buildFileSource(cfg.Staging); source != nil {
		importOpts = append(importOpts, importer.WithFileSource(source))
	}
	importService := importer.NewService(importStore, importOpts...)
	pricingService := pricing.NewService(priceRepo, discountRepo)

	// Sweep terminal jobs out of the registry once their retention expires.
	retention := time.Duration(cfg.Import.RetentionMinutes) * time.Minute
	if retention > 0 {
		go func() {
			ticker := time.NewTicker(retention / 4)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if removed := importService.Tracker().Sweep(retention); removed > 0 {
						log.Printf("[import] swept %d finished jobs", removed)
					}
				}
			}
		}()
	}

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		importer.NewHTTPHandler(importService).Routes(r)
		pricing.NewHTTPHandler(pricingService).Routes(r)
	})

	handler := corsHandler.Handler(middleware.LoggingMiddleware(router))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // SSE subscribers hold the response open
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// buildFileSource picks the staging backend: an S3-compatible bucket when
// configured, else a local directory, else none (inline uploads only).
func buildFileSource(cfg config.StagingConfig) importer.FileSource {
	if cfg.Bucket != "" {
		source, err := filestore.NewS3Source(filestore.S3Config{
			Endpoint: cfg.Endpoint,
			Region:   cfg.Region,
			Bucket:   cfg.Bucket,
			KeyID:    cfg.KeyID,
			Secret:   cfg.Secret,
		})
		if err != nil {
			log.Fatalf("Failed to configure staging bucket: %v", err)
		}
		return source
	}
	if cfg.LocalDir != "" {
		return filestore.NewLocalSource(cfg.LocalDir)
	}
	return nil
}
