package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/galleryplan/engine/internal/api"
	"github.com/galleryplan/engine/internal/api/handlers"
	"github.com/galleryplan/engine/internal/api/validators"
	"github.com/galleryplan/engine/internal/catalog"
	"github.com/galleryplan/engine/internal/repository"
	"github.com/galleryplan/engine/internal/services"
	"github.com/galleryplan/engine/pkg/config"
	"github.com/galleryplan/engine/pkg/database"
	"github.com/galleryplan/engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting galleryplan engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	projectRepo := repository.NewProjectRepository(db)
	artworkRepo := repository.NewArtworkRepository(db)
	linkRepo := repository.NewLinkRepository(db)

	// Catalog gateway
	fetcher := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout, cfg.CatalogRPS)

	// Asynq client for background artwork refresh
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer asynqClient.Close()

	// Services
	projectSvc := services.NewProjectService(db, projectRepo, artworkRepo, linkRepo, fetcher)
	linkSvc := services.NewLinkService(db, projectRepo, artworkRepo, linkRepo, fetcher, asynqClient, cfg.ArtworkRefreshTTL)

	// Handlers
	v := validators.New()
	projectsHandler := handlers.NewProjectsHandler(projectSvc, v)
	linksHandler := handlers.NewLinksHandler(linkSvc, v)

	// Create router with dependencies
	router := api.NewRouter(api.Dependencies{
		ProjectsHandler: projectsHandler,
		LinksHandler:    linksHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
