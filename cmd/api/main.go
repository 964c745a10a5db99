package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/postboard/postboard-backend/internal/api"
	"github.com/postboard/postboard-backend/internal/config"
	"github.com/postboard/postboard-backend/internal/log"
	"github.com/postboard/postboard-backend/internal/media"
	"github.com/postboard/postboard-backend/internal/metrics"
	"github.com/postboard/postboard-backend/internal/migrations"
	"github.com/postboard/postboard-backend/internal/posts"
	"github.com/postboard/postboard-backend/internal/repository"
	"github.com/postboard/postboard-backend/internal/store"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting postboard API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"db", cfg.Database.Type,
		"media", cfg.Media.Provider,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("postboard-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.Database.Type == "postgres" && cfg.Database.AutoMigrate {
		if err := migrations.Run(cfg.Database.PostgresDSN, "up", logger); err != nil {
			logger.Fatalw("Failed to apply migrations", "error", err)
		}
	}

	db, err := repository.New(ctx, repository.Config{
		Type:     cfg.Database.Type,
		DSN:      cfg.Database.PostgresDSN,
		MaxConns: cfg.Database.MaxConns,
	}, logger)
	if err != nil {
		logger.Fatalw("Failed to initialize database", "error", err)
	}
	defer db.Close()
	logger.Infow("Database initialized", "type", cfg.Database.Type)

	// Redis when reachable, in-process LRU otherwise
	cache, err := store.NewCache(cfg.Cache.RedisAddr, cfg.Cache.CategoryCacheTTL, logger, metricsObj)
	if err != nil {
		logger.Fatalw("Failed to setup cache", "error", err)
	}
	defer cache.Close()
	logger.Infow("Cache ready", "in_memory", cache.IsInMemoryMode())

	images, err := newMediaStore(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to setup media store", "error", err)
	}

	// Setup services
	postSvc := posts.NewService(
		db,
		media.Instrument(images, metricsObj, logger),
		logger,
		posts.WithCategoryCache(cache, cfg.Cache.CategoryCacheTTL),
		posts.WithScopedReads(cfg.Auth.ScopedPostReads),
	)

	// Setup API handler and middleware
	handler := api.NewHandler(postSvc, posts.NewValidator(), db, cache, logger)
	middleware := api.NewMiddleware(logger, metricsObj)

	router := handler.Routes(middleware, api.RouterOptions{
		CORSOrigins:    cfg.Security.CORSAllowedOrigins,
		RateLimitRPM:   cfg.Security.RateLimitRPM,
		RequestTimeout: cfg.RequestTimeout,
		Identity: api.IdentityConfig{
			JWTSecret:       cfg.Auth.JWTSecret,
			TrustUserHeader: cfg.Auth.TrustUserHeader,
		},
		ScopedReads: cfg.Auth.ScopedPostReads,
	})

	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)
	if cfg.Auth.TrustUserHeader {
		logger.Warnw("Trusting X-User-ID header for caller identity; do not use outside development")
	}

	// Add metrics endpoint
	router.Handle("/metrics", metricsHandler)

	// Setup HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}

func newMediaStore(cfg *config.Config, logger *zap.SugaredLogger) (media.Store, error) {
	switch cfg.Media.Provider {
	case "memory":
		logger.Warnw("Using in-memory media store; uploaded images are not hosted")
		return media.NewMemory("memory://images"), nil
	default:
		return media.NewCloudinary(cfg.Media.CloudinaryURL, cfg.Media.Folder, logger)
	}
}
