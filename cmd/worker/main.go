package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"

	"example.com/progression/internal/app"
	"example.com/progression/internal/config"
	"example.com/progression/internal/logging"
	"example.com/progression/internal/sweep"
	httptransport "example.com/progression/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}
	if cfg.StoreBackend != config.BackendPostgres {
		log.Fatalf("worker requires the postgres store, got %q", cfg.StoreBackend)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogFile,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogFormatJSON,
		Environment:   cfg.Environment,
		SentryDSN:     cfg.SentryDSN,
		ServiceName:   "progression-worker",
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
	sweeper := sweep.New(backend.Store, comps.Streaks, comps.SweepEvaluator, cfg.SweepActiveWindow,
		sweep.WithLeaderboard(comps.Leaderboard),
		sweep.WithChallenges(comps.Challenges))

	scheduler := cron.New()
	if err := sweeper.Schedule(ctx, scheduler, cfg.SweepSchedule); err != nil {
		log.Fatalf("failed to schedule sweep: %s", err)
	}
	scheduler.Start()
	log.Infof("worker started (schedule=%s, window=%s)", cfg.SweepSchedule, cfg.SweepActiveWindow)

	metricsSrv := httptransport.NewServer(httptransport.DefaultServerConfig("worker metrics", cfg.MetricsAddress), promhttp.Handler())
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := metricsSrv.Run(ctx); err != nil {
			log.Errorf("metrics server error: %s", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("worker shutdown requested")
	cancel()
	scheduler.Stop()
	<-metricsDone
}
