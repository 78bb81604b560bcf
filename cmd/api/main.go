package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"studio/internal/gateway"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/credentials"
	"studio/internal/infra/geoip"
	"studio/internal/insights"
	"studio/internal/media"
	"studio/internal/middleware"
	"studio/internal/providers/genai"
	"studio/internal/session"
	"studio/internal/storage"
	"studio/internal/styles"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ctx := context.Background()

	// Postgres is optional: it backs the style library and the stored Gemini key.
	var (
		dbpool *pgxpool.Pool
		sql    *infra.SQLRunner
	)
	if cfg.DatabaseURL != "" {
		dbpool, err = infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		sql = infra.NewSQLRunner(dbpool, logger)
	}

	apiKey := cfg.GeminiAPIKey
	if apiKey == "" && sql != nil {
		creds := credentials.NewStore(sql)
		lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err = creds.EnsureSchema(lookupCtx); err == nil {
			apiKey, err = creds.GeminiAPIKey(lookupCtx)
		}
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("no stored gemini api key")
		}
	}
	if strings.TrimSpace(apiKey) == "" {
		logger.Fatal().Msg("GEMINI_API_KEY is not set and no key is stored; run cmd/geminikey")
	}

	client, err := genai.NewClient(ctx, genai.Options{
		APIKey:        apiKey,
		BaseURL:       cfg.GeminiBaseURL,
		FastModel:     cfg.GeminiFastModel,
		ProModel:      cfg.GeminiProModel,
		RatePerMinute: cfg.GeminiRatePerMinute,
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create gemini client")
	}
	gw := gateway.New(client, logger)

	styleStore, err := openStyleStore(ctx, cfg, sql)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open style store")
	}

	previews, err := storage.NewFileStore(cfg.PreviewStoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open preview storage")
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()
	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}

	ingestor := media.NewIngestor(previews)
	app := &handlers.App{
		Sessions: session.NewStore(gw, gw, ingestor, cfg.SessionTTL, logger),
		Styles:   styles.NewLibrary(styleStore, gw, logger),
		Insights: insights.NewFetcher(gw, cfg.InsightsTTL, logger),
		Ingestor: ingestor,
		Previews: previews,
		Logger:   logger,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DefaultLanguage: cfg.DefaultNarrativeLanguage,
		CountryLookup:   lookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// openStyleStore prefers Postgres when a database is configured and falls
// back to JSON files under STYLE_STORE_PATH.
func openStyleStore(ctx context.Context, cfg *infra.Config, sql *infra.SQLRunner) (styles.PersistentKeyValueStore, error) {
	if sql != nil {
		store := styles.NewPostgresStore(sql, "studio", cfg.StyleStoreCapacityBytes)
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.EnsureSchema(schemaCtx); err != nil {
			return nil, err
		}
		return store, nil
	}
	return styles.NewFileStore(cfg.StyleStorePath, cfg.StyleStoreCapacityBytes)
}
