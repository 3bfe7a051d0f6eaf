package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/haasonsaas/limitd/pkg/analytics"
	"github.com/haasonsaas/limitd/pkg/config"
	"github.com/haasonsaas/limitd/pkg/loadgen"
	"github.com/haasonsaas/limitd/pkg/ratelimit"
	"github.com/haasonsaas/limitd/pkg/telemetry"
)

var (
	listen     = flag.String("listen", "", "Listen address (overrides config)")
	configFile = flag.String("config", "limitd.yaml", "Config file path")
	dbPath     = flag.String("db", "", "Database path (overrides config)")
	Version    = "dev"
)

// Server holds the engine and its collaborators behind the HTTP surface.
type Server struct {
	store     *Store
	registry  *ratelimit.Registry
	gateway   *ratelimit.Gateway
	analytics *analytics.Aggregator
	driver    *loadgen.Driver
	metrics   *serverMetrics
	logger    zerolog.Logger
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger := telemetry.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info().Str("version", Version).Msg("limitd starting")

	ctx := context.Background()
	provider, err := telemetry.SetupTracing(ctx, telemetry.TracingOptions{
		ServiceName:    "limitd",
		ServiceVersion: Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		LogSpans:       cfg.Tracing.LogSpans,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up tracing")
	}
	defer provider.Shutdown(ctx)

	db, err := gorm.Open(sqlite.Open(cfg.Server.DBPath), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Str("db", cfg.Server.DBPath).Msg("Failed to open database")
	}

	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	defaults := ratelimit.Params{
		Algorithm:     ratelimit.Algorithm(cfg.Engine.DefaultAlgorithm),
		MaxRequests:   cfg.Engine.DefaultMaxRequests,
		WindowSeconds: cfg.Engine.DefaultWindowSeconds,
	}
	if err := defaults.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid default limiter parameters")
	}

	clock := ratelimit.NewSystemClock()
	registry := ratelimit.NewRegistry(store, clock)
	aggregator := analytics.NewAggregator(cfg.Engine.RecentLogCapacity)
	gateway := ratelimit.NewGateway(store, registry, aggregator, store, clock, logger, ratelimit.GatewayOptions{
		Defaults:  defaults,
		QueueSize: cfg.Engine.LogQueueSize,
	})
	defer gateway.Close()

	srv := &Server{
		store:     store,
		registry:  registry,
		gateway:   gateway,
		analytics: aggregator,
		driver:    loadgen.NewDriver(gateway),
		metrics:   newServerMetrics(prometheus.DefaultRegisterer),
		logger:    logger,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(withRequestContext(logger), gin.Recovery())
	srv.registerRoutes(r)

	logger.Info().Str("listen", cfg.Server.Listen).Msg("Listening")
	if err := r.Run(cfg.Server.Listen); err != nil {
		logger.Fatal().Err(err).Msg("Server exited")
	}
}

func (s *Server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "limitd rate limiter", "version": Version})
	})
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	s.registerKeyRoutes(api)
	s.registerConfigRoutes(api)
	s.registerDecisionRoutes(api)
	s.registerAnalyticsRoutes(api)
	s.registerLoadTestRoutes(api)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
