package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"flowmod/api/internal/app"
	"flowmod/api/internal/cache"
	"flowmod/api/internal/config"
	"flowmod/api/internal/directory"
	"flowmod/api/internal/search"
	"flowmod/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	logger := newLogger(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration failed")
	}

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	logger.Info().Str("dir", cfg.MigrationsDir).Msg("running database migrations...")
	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		logger.Fatal().Err(err).Strs("applied", applied).Msg("migrations failed")
	}
	logger.Info().Strs("applied", applied).Msg("migrations completed")

	dataStore := store.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts, logger)

	directoryClient := directory.New(directory.Config{
		BaseURL:          cfg.Directory.URL,
		Token:            cfg.Directory.Token,
		Timeout:          cfg.DirectoryTimeout(),
		BreakerThreshold: cfg.Directory.BreakerThreshold,
		BreakerOpenFor:   cfg.DirectoryBreakerOpenFor(),
	}, logger)
	if !directoryClient.Enabled() {
		logger.Warn().Msg("DIRECTORY_URL not set; group options will list local groups only")
	}

	service := app.New(cfg, dataStore, directoryClient, logger).WithSearch(searchService)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		viewCache, err := cache.NewRedisStore(cfg.RedisURL, cfg.CacheTTL())
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer viewCache.Close()
		service.WithCache(viewCache)
		logger.Info().Dur("ttl", cfg.CacheTTL()).Msg("derived view cache enabled")
	}

	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("env", cfg.Env).
			Msg("starting flowmod api")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server stopped")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
