package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"example.com/progression/internal/app"
	"example.com/progression/internal/config"
	"example.com/progression/internal/consumer"
	"example.com/progression/internal/logging"
	httptransport "example.com/progression/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}
	if cfg.StoreBackend != config.BackendPostgres {
		log.Fatalf("consumer requires the postgres store, got %q", cfg.StoreBackend)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogFile,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogFormatJSON,
		Environment:   cfg.Environment,
		SentryDSN:     cfg.SentryDSN,
		ServiceName:   "progression-consumer",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := app.Open(ctx, app.OpenParams{
		Config:     cfg,
		Name:       "progression",
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %s", err)
	}
	defer backend.Close()

	var redisClient *redis.Client
	if cfg.RedisAddress != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddress, Password: cfg.RedisPassword})
		if cfg.TracingEnabled {
			redisClient.AddHook(redisotel.NewTracingHook())
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Errorf("close redis: %s", err)
			}
		}()
	}

	comps := app.Build(app.BuildParams{
		Store:          backend.Store,
		Redis:          redisClient,
		CacheMB:        cfg.ExerciseCacheMB,
		StreakLookback: cfg.StreakLookback,
	})

	metricsSrv := httptransport.NewServer(httptransport.DefaultServerConfig("consumer metrics", cfg.MetricsAddress), promhttp.Handler())
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := metricsSrv.Run(ctx); err != nil {
			log.Errorf("metrics server error: %s", err)
		}
	}()

	var wg sync.WaitGroup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})

		logger := log.WithFields(log.Fields{"component": "consumer", "topic": topic})
		proc := consumer.NewProcessor(reader, comps.Events, consumer.WithLogger(logger))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if err := reader.Close(); err != nil {
					logger.Warnf("close reader: %s", err)
				}
			}()

			logger.Infof("consumer started (group=%s)", cfg.ConsumerGroupID)
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("consumer stopped with error: %s", err)
			}
		}()
	}

	<-stop
	log.Info("consumer shutdown requested")
	cancel()

	<-metricsDone
	wg.Wait()
}
