package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"example.com/progression/internal/api"
	"example.com/progression/internal/app"
	"example.com/progression/internal/auth"
	"example.com/progression/internal/config"
	"example.com/progression/internal/consumer"
	"example.com/progression/internal/logging"
	"example.com/progression/internal/middleware"
	"example.com/progression/internal/observability"
	"example.com/progression/internal/outbox"
	httptransport "example.com/progression/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogFile,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogFormatJSON,
		Environment:   cfg.Environment,
		SentryDSN:     cfg.SentryDSN,
		ServiceName:   "progression-api",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := app.Open(ctx, app.OpenParams{
		Config:     cfg,
		Name:       "progression",
		Migrate:    true,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		log.Fatalf("failed to open %s store: %s", cfg.StoreBackend, err)
	}
	defer backend.Close()

	var (
		redisClient *redis.Client
		limiter     middleware.RequestRateLimiter
	)
	if cfg.RedisAddress != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
		})
		if cfg.TracingEnabled {
			redisClient.AddHook(redisotel.NewTracingHook())
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Errorf("close redis: %s", err)
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warnf("redis ping failed, rankings fall back to the store: %s", err)
		}
		limiter = redis_rate.NewLimiter(redisClient)
	}

	comps := app.Build(app.BuildParams{
		Store:          backend.Store,
		Redis:          redisClient,
		CacheMB:        cfg.ExerciseCacheMB,
		StreakLookback: cfg.StreakLookback,
	})

	var stopEvents func()
	if backend.Memory != nil {
		relay := consumer.NewLocalRelay(backend.Memory, comps.Events, cfg.RelayInterval)
		go relay.Run(ctx)
		stopEvents = relay.Wait
		log.Infof("memory store: relaying events in process every %s", cfg.RelayInterval)
	} else {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers,
			outbox.WithBatchTimeout(cfg.KafkaBatchTimeout),
			outbox.WithAutoTopicCreation(cfg.KafkaAutoCreateTopics))
		defer func() {
			if err := producer.Close(); err != nil {
				log.Errorf("close kafka producer: %s", err)
			}
		}()
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL,
			outbox.WithBasicAuth(cfg.SchemaRegistryUser, cfg.SchemaRegistryPass))
		dispatcher := outbox.NewDispatcher(backend.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
		stopEvents = dispatcher.Wait
	}

	handler := api.NewHandler(comps.Services)
	router := handler.Router(api.RouterParams{
		Auth:               auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}),
		Instrumentation:    observability.NewHTTPInstrumentation(prometheus.DefaultRegisterer),
		RateLimiter:        limiter,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins,
		MetricsHandler:     promhttp.Handler(),
	})

	server := httptransport.NewServer(httptransport.DefaultServerConfig("progression-api", cfg.HTTPAddress), router)

	go func() {
		shutdownCh := make(chan os.Signal, 1)
		signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
		<-shutdownCh
		log.Info("shutdown requested")
		cancel()
	}()

	log.Infof("serving store=%s", cfg.StoreBackend)
	if err := server.Run(ctx); err != nil {
		log.Errorf("server error: %s", err)
	}

	cancel()
	stopEvents()
}
