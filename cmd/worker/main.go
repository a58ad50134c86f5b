// Package main provides the entrypoint for the trafigo rebuild worker.
// It keeps the routing graph fresh on a schedule so the API rarely has
// to rebuild inline, and optionally consumes Pub/Sub maintenance jobs.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafigo/trafigo/internal/api/middleware"
	"github.com/trafigo/trafigo/internal/database"
	"github.com/trafigo/trafigo/internal/fusion"
	"github.com/trafigo/trafigo/internal/planner"
	"github.com/trafigo/trafigo/internal/roadnet"
	"github.com/trafigo/trafigo/internal/roadnet/overpass"
	"github.com/trafigo/trafigo/internal/traffic/opendata"
	"github.com/trafigo/trafigo/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "trafigo-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting trafigo worker")

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the network cache database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	networks := roadnet.NewService(roadnet.ServiceConfig{
		Provider:   overpass.NewClient(overpass.ClientConfig{}),
		Repository: roadnet.NewPostgresRepository(pool),
		Logger:     log,
	})

	base, err := networks.GetNetwork(ctx, place)
	if err != nil {
		log.Fatal().Err(err).Str("place", place).Msg("failed to load base network")
	}

	feeds := opendata.NewClient(opendata.ClientConfig{
		SegmentsURL:   segmentsURL,
		CongestionURL: congestionURL,
		Logger:        log,
	})

	segments, _, err := feeds.FetchSegments(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load street segment catalog")
	}

	graphs := fusion.NewService(fusion.ServiceConfig{
		Base:       base,
		Segments:   segments,
		Congestion: feeds,
		Logger:     log,
	})

	plannerService := planner.NewService(planner.ServiceConfig{
		Graphs: graphs,
		Logger: log,
	})

	providerMetrics, err := middleware.NewProviderMetrics(opendata.ProviderName)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
	}

	rebuildConfig := worker.DefaultRebuildConfig()
	if interval := os.Getenv("REBUILD_INTERVAL"); interval != "" {
		d, parseErr := time.ParseDuration(interval)
		if parseErr != nil {
			log.Fatal().Err(parseErr).Str("interval", interval).Msg("invalid REBUILD_INTERVAL")
		}
		rebuildConfig.Interval = d
	}

	rebuildJob := worker.NewRebuildJob(worker.RebuildJobConfig{
		Config:          rebuildConfig,
		Logger:          log,
		Graphs:          graphs,
		Planner:         plannerService,
		ProviderMetrics: providerMetrics,
	})

	// Health endpoint for the container platform, with job metrics.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"metrics": rebuildJob.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Scheduled rebuild loop. The first run happens immediately so a
	// fresh graph is available as soon as possible.
	go func() {
		rebuildJob.Run(ctx)

		ticker := time.NewTicker(rebuildConfig.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rebuildJob.Run(ctx)
			}
		}
	}()

	// Optional Pub/Sub consumer for on-demand maintenance jobs.
	if subscription := os.Getenv("PUBSUB_SUBSCRIPTION"); subscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        os.Getenv("GOOGLE_CLOUD_PROJECT"),
			SubscriptionName: subscription,
			RebuildJob:       rebuildJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
