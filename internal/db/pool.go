// Package db opens the pgx connection pool shared by the store, the outbox and the DLQ manager.
package db

import (
	"context"
	"fmt"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

type NewPoolParams struct {
	URL            string
	TracingEnabled bool
	MaxConns       int32
	Name           string
}

// NewPool parses the connection string, attaches the otel tracer when enabled and pings the database.
func NewPool(ctx context.Context, params NewPoolParams) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(params.URL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	if params.TracingEnabled {
		poolConfig.ConnConfig.Tracer = otelpgx.NewTracer()
	}
	if params.MaxConns > 0 {
		poolConfig.MaxConns = params.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	return pool, nil
}

// RegisterPoolMetrics exposes pool statistics on reg, labeled with the database name.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, dbName string) error {
	collector := pgxpoolprometheus.NewCollector(pool, map[string]string{"db_name": dbName})
	if err := reg.Register(collector); err != nil {
		return fmt.Errorf("register pool collector: %w", err)
	}
	return nil
}
