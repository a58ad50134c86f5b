// Package main provides the entrypoint for the trafigo API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafigo/trafigo/internal/api"
	"github.com/trafigo/trafigo/internal/api/middleware"
	"github.com/trafigo/trafigo/internal/auth"
	"github.com/trafigo/trafigo/internal/database"
	"github.com/trafigo/trafigo/internal/fusion"
	"github.com/trafigo/trafigo/internal/geocode/nominatim"
	"github.com/trafigo/trafigo/internal/planner"
	"github.com/trafigo/trafigo/internal/provider/resilience"
	"github.com/trafigo/trafigo/internal/roadnet"
	"github.com/trafigo/trafigo/internal/roadnet/overpass"
	"github.com/trafigo/trafigo/internal/telemetry"
	"github.com/trafigo/trafigo/internal/traffic/opendata"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "trafigo-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting trafigo API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	place := os.Getenv("ROUTE_PLACE")
	if place == "" {
		place = "Barcelona, Spain"
	}

	segmentsURL := os.Getenv("SEGMENTS_URL")
	congestionURL := os.Getenv("CONGESTION_URL")
	if segmentsURL == "" || congestionURL == "" {
		log.Fatal().Msg("SEGMENTS_URL and CONGESTION_URL must be set")
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to the network cache database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Outbound provider clients share a registry so the ops surface can
	// report breaker state per provider.
	providers := resilience.NewRegistry()

	overpassHTTP := resilience.NewClient(resilience.ClientConfig{
		Name:       overpass.ProviderName,
		Timeout:    120 * time.Second,
		MaxRetries: 2,
	})
	providers.Register(overpassHTTP)

	opendataHTTP := resilience.NewClient(resilience.ClientConfig{
		Name:            opendata.ProviderName,
		Timeout:         15 * time.Second,
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
	})
	providers.Register(opendataHTTP)

	nominatimHTTP := resilience.NewClient(resilience.ClientConfig{
		Name:    nominatim.ProviderName,
		Timeout: 10 * time.Second,
	})
	providers.Register(nominatimHTTP)

	// Load the base road network, cached in Postgres across restarts.
	networks := roadnet.NewService(roadnet.ServiceConfig{
		Provider:   overpass.NewClient(overpass.ClientConfig{HTTPClient: overpassHTTP}),
		Repository: roadnet.NewPostgresRepository(pool),
		Logger:     log,
	})

	base, err := networks.GetNetwork(ctx, place)
	if err != nil {
		log.Fatal().Err(err).Str("place", place).Msg("failed to load base network")
	}

	// Load the street segment catalog once; it changes rarely.
	feeds := opendata.NewClient(opendata.ClientConfig{
		SegmentsURL:   segmentsURL,
		CongestionURL: congestionURL,
		HTTPClient:    opendataHTTP,
		Logger:        log,
	})

	segments, segStats, err := feeds.FetchSegments(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load street segment catalog")
	}
	log.Info().
		Int("segments", len(segments)).
		Int("skipped", segStats.Skipped).
		Msg("street segment catalog loaded")

	// Fusion service owns the weighted graph and keeps it fresh.
	graphs := fusion.NewService(fusion.ServiceConfig{
		Base:       base,
		Segments:   segments,
		Congestion: feeds,
		Logger:     log,
	})

	// Warm build so the first query does not pay for it. A feed outage
	// at startup is tolerated; the first query retries.
	if err := graphs.Rebuild(ctx); err != nil {
		log.Warn().Err(err).Msg("initial graph build failed, will retry on first query")
	}

	plannerService := planner.NewService(planner.ServiceConfig{
		Graphs: graphs,
		Logger: log,
	})

	geocoder := nominatim.NewClient(nominatim.ClientConfig{
		ViewBox:    os.Getenv("GEOCODE_VIEWBOX"),
		HTTPClient: nominatimHTTP,
	})

	// Initialize service token auth (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	tokens := auth.NewTokenService(auth.TokenConfig{
		SigningKey: jwtSigningKey,
		Issuer:     "https://api.trafigo.io",
		Audience:   "trafigo-api",
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Tokens:      tokens,
		Planner:     plannerService,
		Geocoder:    geocoder,
		Graphs:      graphs,
		Providers:   providers,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("place", place).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
