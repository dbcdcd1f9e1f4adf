// Package app assembles the progression components shared by the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"example.com/progression/internal/achievements"
	"example.com/progression/internal/api"
	"example.com/progression/internal/catalog"
	"example.com/progression/internal/challenges"
	"example.com/progression/internal/config"
	"example.com/progression/internal/consumer"
	"example.com/progression/internal/db"
	"example.com/progression/internal/domain"
	"example.com/progression/internal/leaderboard"
	"example.com/progression/internal/notify"
	"example.com/progression/internal/persistence/memory"
	"example.com/progression/internal/persistence/postgres"
	"example.com/progression/internal/records"
	"example.com/progression/internal/social"
	"example.com/progression/internal/stats"
	"example.com/progression/internal/streak"
	"example.com/progression/internal/workout"
)

// Store is implemented by both the memory and the Postgres backends.
type Store interface {
	workout.Repository
	social.Repository
	records.Repository
	streak.Repository
	achievements.Repository
	stats.Repository
	notify.Store
	leaderboard.Store
	challenges.Repository
	catalog.Source

	ActiveUsers(ctx context.Context, since time.Time) ([]string, error)
	UpsertExercises(ctx context.Context, list []domain.Exercise) error
	UpsertAchievements(ctx context.Context, list []domain.Achievement) error
}

// Backend is an opened store. Pool is nil for the memory backend and Memory is nil for Postgres.
type Backend struct {
	Store  Store
	Pool   *pgxpool.Pool
	Memory *memory.Store
}

// Close releases the connection pool, if any.
func (b *Backend) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
}

// OpenParams control how the backend is opened.
type OpenParams struct {
	Config config.Config
	// Name labels the pool metrics.
	Name string
	// Migrate applies the embedded schema after connecting and installs the achievement
	// catalog that user_achievements references.
	Migrate bool
	// Registerer receives the pool collector when non-nil.
	Registerer prometheus.Registerer
}

// Open connects to the configured backend. The memory backend is seeded with the achievement
// catalog and the starter exercises.
func Open(ctx context.Context, params OpenParams) (*Backend, error) {
	cfg := params.Config
	if cfg.StoreBackend == config.BackendMemory {
		store := memory.NewStore(
			memory.WithExercises(StarterExercises()...),
			memory.WithAchievements(achievements.DefaultCatalog()...),
		)
		return &Backend{Store: store, Memory: store}, nil
	}

	pool, err := db.NewPool(ctx, db.NewPoolParams{
		URL:            cfg.PostgresURL,
		TracingEnabled: cfg.TracingEnabled,
		Name:           params.Name,
	})
	if err != nil {
		return nil, err
	}
	if params.Registerer != nil {
		if err := db.RegisterPoolMetrics(params.Registerer, pool, params.Name); err != nil {
			log.Warnf("pool metrics: %s", err)
		}
	}
	store := postgres.NewStore(pool)
	if params.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if err := store.UpsertAchievements(ctx, achievements.DefaultCatalog()); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed achievements: %w", err)
		}
	}
	return &Backend{Store: store, Pool: pool}, nil
}

// Seed upserts the achievement catalog and the starter exercises.
func Seed(ctx context.Context, store Store) error {
	if err := store.UpsertAchievements(ctx, achievements.DefaultCatalog()); err != nil {
		return fmt.Errorf("seed achievements: %w", err)
	}
	if err := store.UpsertExercises(ctx, StarterExercises()); err != nil {
		return fmt.Errorf("seed exercises: %w", err)
	}
	return nil
}

// StarterExercises is the exercise catalog installed by seed.
func StarterExercises() []domain.Exercise {
	return []domain.Exercise{
		{ID: "bench-press", Name: "Bench Press", Category: "strength"},
		{ID: "back-squat", Name: "Back Squat", Category: "strength"},
		{ID: "deadlift", Name: "Deadlift", Category: "strength"},
		{ID: "overhead-press", Name: "Overhead Press", Category: "strength"},
		{ID: "barbell-row", Name: "Barbell Row", Category: "strength"},
		{ID: "pull-up", Name: "Pull-up", Category: "bodyweight"},
		{ID: "push-up", Name: "Push-up", Category: "bodyweight"},
		{ID: "plank", Name: "Plank", Category: "core"},
		{ID: "running", Name: "Running", Category: "cardio"},
		{ID: "rowing", Name: "Rowing", Category: "cardio"},
	}
}

// Components are the services built over one Store.
type Components struct {
	Catalog     *catalog.Catalog
	Records     *records.Detector
	Streaks     *streak.Tracker
	Leaderboard *leaderboard.Board
	Challenges  *challenges.Service
	Services    api.Services

	// Events routes progression and notification events to their handlers.
	Events *consumer.Router
	// SweepEvaluator checks achievements without recomputing the streak first.
	SweepEvaluator *achievements.Evaluator
}

// BuildParams configure Build.
type BuildParams struct {
	Store          Store
	Redis          *redis.Client
	CacheMB        int
	StreakLookback int
}

// Build wires the services. A nil Redis client serves rankings from the store.
func Build(params BuildParams) *Components {
	store := params.Store
	exercises := catalog.New(store, params.CacheMB)
	detector := records.NewDetector(store, exercises)

	var trackerOpts []streak.Option
	if params.StreakLookback > 0 {
		trackerOpts = append(trackerOpts, streak.WithLookback(params.StreakLookback))
	}
	tracker := streak.NewTracker(store, trackerOpts...)
	board := leaderboard.NewBoard(params.Redis, store)
	notifications := notify.NewService(store)
	contests := challenges.NewService(store)

	// The handler and the sweep recompute the streak themselves before checking.
	bare := achievements.NewEvaluator(store, nil)
	router := consumer.NewRouter().
		On(consumer.NewProgressionHandler(tracker, bare, store, board), consumer.ProgressionEvents...).
		On(consumer.NewNotificationHandler(notifications), consumer.NotificationEvents...)

	return &Components{
		Catalog:     exercises,
		Records:     detector,
		Streaks:     tracker,
		Leaderboard: board,
		Challenges:  contests,
		Services: api.Services{
			Workouts:      workout.NewService(store, exercises, detector),
			Social:        social.NewService(store),
			Records:       detector,
			Achievements:  achievements.NewEvaluator(store, tracker),
			Stats:         stats.NewService(store, tracker),
			Leaderboard:   board,
			Notifications: notifications,
			Challenges:    contests,
		},
		Events:         router,
		SweepEvaluator: bare,
	}
}
