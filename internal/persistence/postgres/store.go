// Package postgres provides Postgres-backed persistence for workouts, progression, social data
// and the transactional outbox.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
)

const uniqueViolation = "23505"

// Store implements every progression repository contract on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// inTx runs fn inside one transaction and commits when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// insertOutbox records an event in the same transaction as the state change it describes.
func insertOutbox(ctx context.Context, tx pgx.Tx, eventType, aggregateID, userID string, payload any) error {
	env, err := events.New(eventType, aggregateID, userID, payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, user_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		env.AggregateType,
		env.AggregateID,
		env.UserID,
		env.Type,
		env.Topic,
		env.SchemaSubject,
		env.PartitionKey(),
		env.Payload,
		env.DedupeKey,
	)
	return err
}

// ensureUser creates the progression row on first write.
func ensureUser(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, `INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	return err
}

// applyXP adds delta to the user's XP, clamped at zero, and adjusts the workout count.
func applyXP(ctx context.Context, tx pgx.Tx, userID string, delta, workouts int) error {
	if err := ensureUser(ctx, tx, userID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx,
		`UPDATE users
            SET xp = GREATEST(xp + $2, 0),
                total_workouts = GREATEST(total_workouts + $3, 0),
                updated_at = NOW()
          WHERE user_id = $1`,
		userID, delta, workouts,
	)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// GetProgress returns the user's progression block; unknown users read as zero.
func (s *Store) GetProgress(ctx context.Context, userID string) (domain.UserProgress, error) {
	const query = `SELECT user_id, xp, total_workouts, current_streak, longest_streak, updated_at FROM users WHERE user_id = $1`
	var p domain.UserProgress
	err := s.pool.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.XP, &p.TotalWorkouts, &p.CurrentStreak, &p.LongestStreak, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserProgress{UserID: userID}, nil
	}
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// ExercisesByIDs returns the catalog entries that exist among ids.
func (s *Store) ExercisesByIDs(ctx context.Context, ids []string) ([]domain.Exercise, error) {
	rows, err := s.pool.Query(ctx, `SELECT exercise_id, name, category FROM exercises WHERE exercise_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Exercise, 0, len(ids))
	for rows.Next() {
		var ex domain.Exercise
		if err := rows.Scan(&ex.ID, &ex.Name, &ex.Category); err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// UpsertExercises inserts or replaces catalog entries.
func (s *Store) UpsertExercises(ctx context.Context, list []domain.Exercise) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, ex := range list {
			if _, err := tx.Exec(ctx,
				`INSERT INTO exercises (exercise_id, name, category) VALUES ($1,$2,$3)
                 ON CONFLICT (exercise_id) DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category`,
				ex.ID, ex.Name, ex.Category,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ActiveUsers lists users with workout activity since the given instant.
func (s *Store) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM workouts WHERE updated_at >= $1 OR workout_date >= $1 ORDER BY user_id`, since)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
