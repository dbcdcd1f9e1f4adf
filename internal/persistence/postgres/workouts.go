package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
	"example.com/progression/internal/xp"
)

const workoutColumns = `workout_id, user_id, name, exercises, status, visibility, workout_date, duration_sec, notes,
        xp_earned, is_deleted, started_at, completed_at, last_edited_at, created_at, updated_at`

func scanWorkout(row pgx.Row) (domain.Workout, error) {
	var (
		w          domain.Workout
		exercises  []byte
		status     string
		visibility string
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &exercises, &status, &visibility, &w.Date, &w.Duration, &w.Notes,
		&w.XPEarned, &w.IsDeleted, &w.StartedAt, &w.CompletedAt, &w.LastEditedAt, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return domain.Workout{}, err
	}
	w.Status = domain.WorkoutStatus(status)
	w.Visibility = domain.Visibility(visibility)
	if err := json.Unmarshal(exercises, &w.Exercises); err != nil {
		return domain.Workout{}, fmt.Errorf("decode exercises of %s: %w", w.ID, err)
	}
	return w, nil
}

func collectWorkouts(rows pgx.Rows) ([]domain.Workout, error) {
	defer rows.Close()
	out := make([]domain.Workout, 0)
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateWorkout stores w, credits its XP and bumps the owner's workout count.
func (s *Store) CreateWorkout(ctx context.Context, w domain.Workout) error {
	exercises, err := json.Marshal(w.Exercises)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		insertWorkout := `INSERT INTO workouts (workout_id, user_id, name, exercises, exercise_ids, status, visibility, workout_date,
            duration_sec, notes, xp_earned, total_sets, total_volume, started_at, completed_at, last_edited_at, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

		if _, err := tx.Exec(ctx, insertWorkout,
			w.ID,
			w.UserID,
			w.Name,
			exercises,
			domain.ExerciseIDs(w.Exercises),
			string(w.Status),
			string(w.Visibility),
			w.Date,
			w.Duration,
			w.Notes,
			w.XPEarned,
			xp.TotalSets(w.Exercises),
			w.TotalVolume(),
			w.StartedAt,
			w.CompletedAt,
			w.LastEditedAt,
			w.CreatedAt,
			w.UpdatedAt,
		); err != nil {
			return err
		}

		if err := applyXP(ctx, tx, w.UserID, w.XPEarned, 1); err != nil {
			return err
		}
		if err := insertOutbox(ctx, tx, events.WorkoutCreated, w.ID, w.UserID, events.WorkoutChangedFrom(w, w.XPEarned)); err != nil {
			return err
		}
		if w.Status == domain.StatusCompleted {
			return insertOutbox(ctx, tx, events.WorkoutCompleted, w.ID, w.UserID, events.WorkoutChangedFrom(w, 0))
		}
		return nil
	})
}

// GetWorkout returns the owner's non-deleted workout or nil.
func (s *Store) GetWorkout(ctx context.Context, userID, id string) (*domain.Workout, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+workoutColumns+` FROM workouts WHERE workout_id = $1 AND user_id = $2 AND NOT is_deleted`, id, userID)
	return optionalWorkout(row)
}

// GetActiveWorkout returns any non-deleted workout by id or nil.
func (s *Store) GetActiveWorkout(ctx context.Context, id string) (*domain.Workout, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE workout_id = $1 AND NOT is_deleted`, id)
	return optionalWorkout(row)
}

func optionalWorkout(row pgx.Row) (*domain.Workout, error) {
	w, err := scanWorkout(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// pageQuery accumulates WHERE clauses and positional arguments for keyset pagination.
type pageQuery struct {
	where []string
	args  []any
}

func (q *pageQuery) add(clause string, args ...any) {
	for _, arg := range args {
		q.args = append(q.args, arg)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(q.args)), 1)
	}
	q.where = append(q.where, clause)
}

func (q *pageQuery) sql(cursor *domain.Cursor, limit int) string {
	if cursor != nil {
		q.add("(workout_date, workout_id) < (?, ?)", cursor.Date, cursor.ID)
	}
	stmt := `SELECT ` + workoutColumns + ` FROM workouts WHERE ` + strings.Join(q.where, " AND ") +
		` ORDER BY workout_date DESC, workout_id DESC`
	if limit > 0 {
		q.args = append(q.args, limit+1)
		stmt += fmt.Sprintf(" LIMIT $%d", len(q.args))
	}
	return stmt
}

// trimPage cuts the look-ahead row and derives the next cursor from the last kept row.
func trimPage(list []domain.Workout, limit int) ([]domain.Workout, *domain.Cursor) {
	if limit <= 0 || len(list) <= limit {
		return list, nil
	}
	page := list[:limit]
	last := page[len(page)-1]
	return page, &domain.Cursor{Date: last.Date, ID: last.ID}
}

// ListWorkouts pages through the owner's workouts by date desc, id desc.
func (s *Store) ListWorkouts(ctx context.Context, userID string, filter domain.WorkoutFilter) ([]domain.Workout, *domain.Cursor, error) {
	q := &pageQuery{}
	q.add("user_id = ?", userID)
	q.add("NOT is_deleted")
	if filter.From != nil {
		q.add("workout_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q.add("workout_date <= ?", *filter.To)
	}
	if filter.ExerciseID != "" {
		q.add("? = ANY(exercise_ids)", filter.ExerciseID)
	}

	rows, err := s.pool.Query(ctx, q.sql(filter.Cursor, filter.Limit), q.args...)
	if err != nil {
		return nil, nil, err
	}
	list, err := collectWorkouts(rows)
	if err != nil {
		return nil, nil, err
	}
	page, next := trimPage(list, filter.Limit)
	return page, next, nil
}

// FeedWorkouts lists completed, non-deleted, friends or public workouts authored by userIDs.
func (s *Store) FeedWorkouts(ctx context.Context, userIDs []string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	q := &pageQuery{}
	q.add("user_id = ANY(?)", userIDs)
	q.add("NOT is_deleted")
	q.add("status = ?", string(domain.StatusCompleted))
	q.add("visibility <> ?", string(domain.VisibilityPrivate))

	rows, err := s.pool.Query(ctx, q.sql(cursor, limit), q.args...)
	if err != nil {
		return nil, nil, err
	}
	list, err := collectWorkouts(rows)
	if err != nil {
		return nil, nil, err
	}
	page, next := trimPage(list, limit)
	return page, next, nil
}

// UpdateWorkout replaces the stored workout and applies the XP difference to its owner.
func (s *Store) UpdateWorkout(ctx context.Context, w domain.Workout, eventType string) (int, error) {
	exercises, err := json.Marshal(w.Exercises)
	if err != nil {
		return 0, err
	}

	var delta int
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		var previousXP int
		err := tx.QueryRow(ctx,
			`SELECT xp_earned FROM workouts WHERE workout_id = $1 AND user_id = $2 AND NOT is_deleted FOR UPDATE`,
			w.ID, w.UserID,
		).Scan(&previousXP)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrWorkoutNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE workouts
                SET name = $3, exercises = $4, exercise_ids = $5, status = $6, visibility = $7, workout_date = $8,
                    duration_sec = $9, notes = $10, xp_earned = $11, total_sets = $12, total_volume = $13,
                    started_at = $14, completed_at = $15, last_edited_at = $16, updated_at = $17
              WHERE workout_id = $1 AND user_id = $2`,
			w.ID, w.UserID, w.Name, exercises, domain.ExerciseIDs(w.Exercises), string(w.Status), string(w.Visibility), w.Date,
			w.Duration, w.Notes, w.XPEarned, xp.TotalSets(w.Exercises), w.TotalVolume(),
			w.StartedAt, w.CompletedAt, w.LastEditedAt, w.UpdatedAt,
		); err != nil {
			return err
		}

		delta = w.XPEarned - previousXP
		if delta != 0 {
			if err := applyXP(ctx, tx, w.UserID, delta, 0); err != nil {
				return err
			}
		}
		return insertOutbox(ctx, tx, eventType, w.ID, w.UserID, events.WorkoutChangedFrom(w, delta))
	})
	if err != nil {
		return 0, err
	}
	return delta, nil
}

// SoftDeleteWorkout flags the workout deleted and reverses its XP and count exactly once.
func (s *Store) SoftDeleteWorkout(ctx context.Context, userID, id string) (*domain.Workout, error) {
	var deleted *domain.Workout
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE workouts SET is_deleted = TRUE, updated_at = NOW()
              WHERE workout_id = $1 AND user_id = $2 AND NOT is_deleted
          RETURNING `+workoutColumns,
			id, userID,
		)
		w, err := scanWorkout(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := applyXP(ctx, tx, userID, -w.XPEarned, -1); err != nil {
			return err
		}
		deleted = &w
		return insertOutbox(ctx, tx, events.WorkoutDeleted, id, userID, events.WorkoutChangedFrom(w, -w.XPEarned))
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// CompletedWorkoutDates returns up to limit dates of completed, non-deleted workouts, newest first.
func (s *Store) CompletedWorkoutDates(ctx context.Context, userID string, limit int) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT workout_date FROM workouts
          WHERE user_id = $1 AND status = 'completed' AND NOT is_deleted
          ORDER BY workout_date DESC
          LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

// CompletedWorkouts returns completed, non-deleted workouts dated at or after since, newest first.
func (s *Store) CompletedWorkouts(ctx context.Context, userID string, since time.Time) ([]domain.Workout, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+workoutColumns+` FROM workouts
          WHERE user_id = $1 AND status = 'completed' AND NOT is_deleted AND workout_date >= $2
          ORDER BY workout_date DESC, workout_id DESC`,
		userID, since,
	)
	if err != nil {
		return nil, err
	}
	return collectWorkouts(rows)
}

// ExerciseWorkouts returns the most recent completed workouts containing exerciseID.
func (s *Store) ExerciseWorkouts(ctx context.Context, userID, exerciseID string, limit int) ([]domain.Workout, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+workoutColumns+` FROM workouts
          WHERE user_id = $1 AND status = 'completed' AND NOT is_deleted AND $2 = ANY(exercise_ids)
          ORDER BY workout_date DESC, workout_id DESC
          LIMIT $3`,
		userID, exerciseID, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectWorkouts(rows)
}
