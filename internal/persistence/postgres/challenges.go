package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
)

const challengeColumns = `challenge_id, challenger_id, challenged_id, challenge_type, target_value, unit, exercise_id,
       duration_days, status, challenger_progress, challenged_progress, winner_id, start_date, end_date,
       accepted_at, completed_at, created_at, updated_at`

func scanChallenge(row pgx.Row) (domain.Challenge, error) {
	var (
		c            domain.Challenge
		kind, status string
	)
	err := row.Scan(&c.ID, &c.ChallengerID, &c.ChallengedID, &kind, &c.TargetValue, &c.Unit, &c.ExerciseID,
		&c.Duration, &status, &c.ChallengerProgress, &c.ChallengedProgress, &c.WinnerID, &c.StartDate, &c.EndDate,
		&c.AcceptedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt)
	c.Type = domain.ChallengeType(kind)
	c.Status = domain.ChallengeStatus(status)
	return c, err
}

func collectChallenges(rows pgx.Rows) ([]domain.Challenge, error) {
	defer rows.Close()
	out := make([]domain.Challenge, 0)
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateChallenge stores a pending challenge and enqueues challenge.created for the challenged user.
func (s *Store) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO challenges (`+challengeColumns+`)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
			c.ID, c.ChallengerID, c.ChallengedID, string(c.Type), c.TargetValue, c.Unit, c.ExerciseID,
			c.Duration, string(c.Status), c.ChallengerProgress, c.ChallengedProgress, c.WinnerID, c.StartDate, c.EndDate,
			c.AcceptedAt, c.CompletedAt, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events.ChallengeCreated, c.ID, c.ChallengedID, events.ChallengeFrom(c))
	})
}

// GetChallenge returns the challenge or nil.
func (s *Store) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	c, err := scanChallenge(s.pool.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE challenge_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateChallenge replaces the mutable fields while the row is still in status from. Completing
// a challenge enqueues challenge.completed for both participants in the same transaction.
func (s *Store) UpdateChallenge(ctx context.Context, c domain.Challenge, from domain.ChallengeStatus) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE challenges
                SET status = $3, challenger_progress = $4, challenged_progress = $5, winner_id = $6,
                    start_date = $7, end_date = $8, accepted_at = $9, completed_at = $10, updated_at = $11
              WHERE challenge_id = $1 AND status = $2`,
			c.ID, string(from), string(c.Status), c.ChallengerProgress, c.ChallengedProgress, c.WinnerID,
			c.StartDate, c.EndDate, c.AcceptedAt, c.CompletedAt, c.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrChallengeNotFound
		}
		if c.Status != domain.ChallengeCompleted || from == domain.ChallengeCompleted {
			return nil
		}
		payload := events.ChallengeFrom(c)
		if err := insertOutbox(ctx, tx, events.ChallengeCompleted, c.ID, c.ChallengerID, payload); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events.ChallengeCompleted, c.ID, c.ChallengedID, payload)
	})
}

// ListChallenges returns the challenges userID takes part in, newest first. An empty status
// matches every status.
func (s *Store) ListChallenges(ctx context.Context, userID string, status domain.ChallengeStatus) ([]domain.Challenge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+challengeColumns+` FROM challenges
          WHERE (challenger_id = $1 OR challenged_id = $1) AND ($2 = '' OR status = $2)
          ORDER BY created_at DESC, challenge_id DESC`, userID, string(status))
	if err != nil {
		return nil, err
	}
	return collectChallenges(rows)
}

// ListChallengesByStatus returns every challenge in status, newest first.
func (s *Store) ListChallengesByStatus(ctx context.Context, status domain.ChallengeStatus) ([]domain.Challenge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE status = $1
          ORDER BY created_at DESC, challenge_id DESC`, string(status))
	if err != nil {
		return nil, err
	}
	return collectChallenges(rows)
}

// ExpirePendingChallenges moves pending challenges created before cutoff to expired.
func (s *Store) ExpirePendingChallenges(ctx context.Context, cutoff, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE challenges SET status = 'expired', updated_at = $2
          WHERE status = 'pending' AND created_at < $1`, cutoff, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
