package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"example.com/progression/internal/config"
	"example.com/progression/internal/db"
	"example.com/progression/internal/logging"
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
		ServiceName:   "progression-dlqmanager",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, db.NewPoolParams{
		URL:            cfg.PostgresURL,
		TracingEnabled: cfg.TracingEnabled,
		MaxConns:       4,
		Name:           "progression",
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %s", err)
	}
	defer pool.Close()
	if err := db.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "progression"); err != nil {
		log.Warnf("pool metrics: %s", err)
	}

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsSrv := httptransport.NewServer(httptransport.DefaultServerConfig("dlq manager metrics", cfg.MetricsAddress), promhttp.Handler())
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := metricsSrv.Run(ctx); err != nil {
			log.Errorf("metrics server error: %s", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Infof("DLQ manager started (interval=%s, maxRetries=%d)", cfg.DLQPollInterval, cfg.DLQMaxRetries)
		manager.Run(ctx, cfg.DLQPollInterval, cfg.DLQBatchSize)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("dlq manager received shutdown signal")
	cancel()
	<-done
	<-metricsDone
}
