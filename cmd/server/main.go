package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dfryer1193/gocatalog/catalog/application"
	"github.com/dfryer1193/gocatalog/catalog/media"
	"github.com/dfryer1193/gocatalog/catalog/persistence"
	"github.com/dfryer1193/gocatalog/catalog/remote"
	"github.com/dfryer1193/gocatalog/internal/config"
	"github.com/dfryer1193/gocatalog/internal/middleware"
	"github.com/dfryer1193/gocatalog/internal/rest"
	"github.com/dfryer1193/gocatalog/shared/db/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// requests without a scoped logger still log through the global one
	zerolog.DefaultContextLogger = &log.Logger
}

func main() {
	cfg := config.Load()
	setupLogging(cfg.Log)

	dbConfig := sqlite.NewSQLiteConfig()
	database := sqlite.NewSQLiteDB(dbConfig)
	if err := database.Connect(); err != nil {
		log.Fatal().Err(err).Str("path", dbConfig.Path).Msg("Failed to connect to database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	store, err := media.NewFileStore(cfg.Media.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Media.UploadDir).Msg("Failed to open media store")
	}

	policy := application.ImportSkipInvalid
	if cfg.Import.AbortOnInvalid {
		policy = application.ImportAbortOnInvalid
	}

	catalog := application.NewCatalogService(
		persistence.NewProductRepository(database.DB()),
		store,
		remote.NewHTTPFetcher(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes),
		application.WithImportPolicy(policy),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(cfg.Metrics.Namespace, reg)

	gin.SetMode(gin.ReleaseMode)
	handler := rest.NewProductHandler(catalog, cfg.Server.PublicBaseURL, cfg.Media.MaxUploadBytes, metrics)
	router := rest.NewRouter(handler, database.DB(), metrics, reg, cfg.CORS.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("uploads", store.Root()).
			Str("import_policy", policy.String()).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server")
	}

	log.Info().Msg("Server stopped")
}
