package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/entitlement"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/payments"
	"server/internal/providers/image"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	sqlRunner := infra.NewSQLRunner(dbpool, logger)

	pipeline, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation pipeline")
	}

	ledger := entitlement.NewLedger(sqlRunner, cfg.GenerationLimit, logger)
	checkout := payments.NewCheckout(payments.CheckoutOptions{
		SecretKey: cfg.StripeSecretKey,
		BaseURL:   cfg.BaseURL,
		Logger:    logger,
	})

	app := &handlers.App{
		SQL:      sqlRunner,
		Logger:   logger,
		Config:   cfg,
		Pipeline: pipeline,
		Ledger:   ledger,
		Checkout: checkout,
	}

	countryLookup := buildCountryLookup(cfg, logger)
	router := httpapi.NewRouter(app, countryLookup, allowedOrigins(cfg))

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildPipeline wires every provider adapter from config. Adapters missing
// credentials stay in the order but report unconfigured and are skipped at
// request time.
func buildPipeline(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*image.Pipeline, error) {
	replicate := image.NewReplicateProvider(image.ReplicateOptions{
		APIToken:     cfg.ReplicateAPIToken,
		ModelVersion: cfg.ReplicateModelVersion,
	})
	vertex := image.NewVertexProvider(image.VertexOptions{
		ProjectID:       cfg.GoogleCloudProjectID,
		Location:        cfg.GoogleCloudLocation,
		CredentialsJSON: cfg.GoogleCloudCredentials,
	})
	gemini, err := image.NewGeminiProvider(ctx, image.GeminiOptions{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
	if err != nil {
		return nil, err
	}
	huggingface := image.NewHuggingFaceProvider(image.HuggingFaceOptions{
		APIKey: cfg.HuggingFaceAPIKey,
	})

	return image.NewPipeline(logger, replicate, vertex, gemini, huggingface), nil
}

func buildCountryLookup(cfg *infra.Config, logger infra.Logger) middleware.CountryLookup {
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, country resolution degraded")
		return nil
	}
	if resolver == nil {
		return nil
	}
	return resolver.CountryCode
}

func allowedOrigins(cfg *infra.Config) []string {
	origins := []string{cfg.BaseURL}
	if cfg.AppEnv == "development" {
		origins = append(origins, "http://localhost:3000", "http://localhost:5173")
	}
	return dedupe(origins)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		v = strings.TrimRight(v, "/")
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
