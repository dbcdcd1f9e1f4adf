package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
)

const recordColumns = `record_id, user_id, exercise_id, workout_id, record_type, value, unit, previous_value, improvement, achieved_at`

func scanRecord(row pgx.Row) (domain.PersonalRecord, error) {
	var (
		rec        domain.PersonalRecord
		recordType string
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.ExerciseID, &rec.WorkoutID, &recordType, &rec.Value, &rec.Unit,
		&rec.PreviousValue, &rec.Improvement, &rec.AchievedAt)
	rec.Type = domain.RecordType(recordType)
	return rec, err
}

// CurrentBest returns the maximum-value record for the key, or nil. Ties resolve to the earliest row.
func (s *Store) CurrentBest(ctx context.Context, userID, exerciseID string, recordType domain.RecordType) (*domain.PersonalRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM personal_records
          WHERE user_id = $1 AND exercise_id = $2 AND record_type = $3
          ORDER BY value DESC, achieved_at ASC
          LIMIT 1`,
		userID, exerciseID, string(recordType),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AppendRecord appends a record row and enqueues record.created.
func (s *Store) AppendRecord(ctx context.Context, record domain.PersonalRecord, exerciseName string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO personal_records (`+recordColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			record.ID, record.UserID, record.ExerciseID, record.WorkoutID, string(record.Type), record.Value, record.Unit,
			record.PreviousValue, record.Improvement, record.AchievedAt,
		); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events.RecordCreated, record.ID, record.UserID, events.RecordCreatedFrom(record, exerciseName))
	})
}

// ListRecords returns matching records, newest first. An empty exerciseID matches every exercise.
func (s *Store) ListRecords(ctx context.Context, userID, exerciseID string, since time.Time) ([]domain.PersonalRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM personal_records
          WHERE user_id = $1 AND ($2 = '' OR exercise_id = $2) AND achieved_at >= $3
          ORDER BY achieved_at DESC`,
		userID, exerciseID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PersonalRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveStreak stores the current streak and raises the longest-streak high-water mark.
func (s *Store) SaveStreak(ctx context.Context, userID string, current int) (domain.UserProgress, error) {
	var p domain.UserProgress
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (user_id, current_streak, longest_streak) VALUES ($1, $2, $2)
         ON CONFLICT (user_id) DO UPDATE
            SET current_streak = EXCLUDED.current_streak,
                longest_streak = GREATEST(users.longest_streak, EXCLUDED.current_streak),
                updated_at = NOW()
      RETURNING user_id, xp, total_workouts, current_streak, longest_streak, updated_at`,
		userID, current,
	).Scan(&p.UserID, &p.XP, &p.TotalWorkouts, &p.CurrentStreak, &p.LongestStreak, &p.UpdatedAt)
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("save streak: %w", err)
	}
	return p, nil
}

// ListAchievements returns the catalog.
func (s *Store) ListAchievements(ctx context.Context) ([]domain.Achievement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT achievement_key, name, description, icon, category, requirement, xp_reward, rarity FROM achievements`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Achievement, 0)
	for rows.Next() {
		var (
			a        domain.Achievement
			category string
		)
		if err := rows.Scan(&a.Key, &a.Name, &a.Description, &a.Icon, &category, &a.Requirement, &a.XPReward, &a.Rarity); err != nil {
			return nil, err
		}
		a.Category = domain.AchievementCategory(category)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertAchievements inserts or replaces catalog definitions.
func (s *Store) UpsertAchievements(ctx context.Context, list []domain.Achievement) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range list {
			batch.Queue(
				`INSERT INTO achievements (achievement_key, name, description, icon, category, requirement, xp_reward, rarity)
                 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
                 ON CONFLICT (achievement_key) DO UPDATE
                    SET name = EXCLUDED.name, description = EXCLUDED.description, icon = EXCLUDED.icon,
                        category = EXCLUDED.category, requirement = EXCLUDED.requirement,
                        xp_reward = EXCLUDED.xp_reward, rarity = EXCLUDED.rarity`,
				a.Key, a.Name, a.Description, a.Icon, string(a.Category), a.Requirement, a.XPReward, a.Rarity,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// ListUserAchievements returns the user's unlocks, oldest first.
func (s *Store) ListUserAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, achievement_key, progress, unlocked_at FROM user_achievements
          WHERE user_id = $1 ORDER BY unlocked_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserAchievement, 0)
	for rows.Next() {
		var ua domain.UserAchievement
		if err := rows.Scan(&ua.UserID, &ua.AchievementKey, &ua.Progress, &ua.UnlockedAt); err != nil {
			return nil, err
		}
		out = append(out, ua)
	}
	return out, rows.Err()
}

// UnlockAchievement inserts the unlock, credits the reward and enqueues achievement.unlocked atomically.
// The (user_id, achievement_key) primary key turns a concurrent second unlock into ALREADY_UNLOCKED.
func (s *Store) UnlockAchievement(ctx context.Context, unlock domain.UserAchievement, achievement domain.Achievement) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_achievements (user_id, achievement_key, progress, unlocked_at) VALUES ($1,$2,$3,$4)`,
			unlock.UserID, unlock.AchievementKey, unlock.Progress, unlock.UnlockedAt,
		); err != nil {
			return err
		}
		if err := applyXP(ctx, tx, unlock.UserID, achievement.XPReward, 0); err != nil {
			return err
		}
		aggregateID := unlock.UserID + "/" + unlock.AchievementKey
		return insertOutbox(ctx, tx, events.AchievementUnlocked, aggregateID, unlock.UserID, events.AchievementUnlockedFrom(unlock, achievement))
	})
	if isUniqueViolation(err) {
		return domain.ErrAlreadyUnlocked
	}
	return err
}

// ProgressCounters derives the live achievement counters.
func (s *Store) ProgressCounters(ctx context.Context, userID string) (domain.Counters, error) {
	var c domain.Counters
	err := s.pool.QueryRow(ctx,
		`SELECT
            (SELECT COUNT(*) FROM workouts WHERE user_id = $1 AND status = 'completed' AND NOT is_deleted),
            (SELECT COALESCE(SUM(total_sets), 0) FROM workouts WHERE user_id = $1 AND status = 'completed' AND NOT is_deleted),
            (SELECT COUNT(*) FROM friendships WHERE status = 'accepted' AND (requester_id = $1 OR recipient_id = $1)),
            COALESCE((SELECT xp FROM users WHERE user_id = $1), 0),
            COALESCE((SELECT current_streak FROM users WHERE user_id = $1), 0)`,
		userID,
	).Scan(&c.CompletedWorkouts, &c.TotalSets, &c.Friends, &c.XP, &c.CurrentStreak)
	if err != nil {
		return domain.Counters{}, fmt.Errorf("progress counters: %w", err)
	}
	return c, nil
}

// TopByXP returns users ordered by XP desc.
func (s *Store) TopByXP(ctx context.Context, limit int) ([]domain.UserProgress, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, xp, total_workouts, current_streak, longest_streak, updated_at FROM users
          ORDER BY xp DESC, user_id ASC
          LIMIT NULLIF($1, 0)`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserProgress, 0, limit)
	for rows.Next() {
		var p domain.UserProgress
		if err := rows.Scan(&p.UserID, &p.XP, &p.TotalWorkouts, &p.CurrentStreak, &p.LongestStreak, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TopByWorkouts ranks users by completed workouts dated at or after since.
func (s *Store) TopByWorkouts(ctx context.Context, since time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT w.user_id, COUNT(*) AS workout_count, COALESCE(SUM(w.total_volume), 0) AS volume, COALESCE(MAX(u.xp), 0)
           FROM workouts w
           LEFT JOIN users u ON u.user_id = w.user_id
          WHERE w.status = 'completed' AND NOT w.is_deleted AND w.workout_date >= $1
          GROUP BY w.user_id
          ORDER BY workout_count DESC, volume DESC, w.user_id ASC
          LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.WorkoutCount, &e.TotalVolume, &e.XP); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TopByStreak returns users ordered by current streak desc.
func (s *Store) TopByStreak(ctx context.Context, limit int) ([]domain.UserProgress, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, xp, total_workouts, current_streak, longest_streak, updated_at FROM users
          ORDER BY current_streak DESC, longest_streak DESC, user_id ASC
          LIMIT NULLIF($1, 0)`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserProgress, 0, limit)
	for rows.Next() {
		var p domain.UserProgress
		if err := rows.Scan(&p.UserID, &p.XP, &p.TotalWorkouts, &p.CurrentStreak, &p.LongestStreak, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TopByVolume ranks users by lifted volume over completed workouts dated at or after since.
func (s *Store) TopByVolume(ctx context.Context, since time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT w.user_id, COUNT(*) AS workout_count, COALESCE(SUM(w.total_volume), 0) AS volume,
                COALESCE(MAX(u.xp), 0), COALESCE(MAX(u.current_streak), 0)
           FROM workouts w
           LEFT JOIN users u ON u.user_id = w.user_id
          WHERE w.status = 'completed' AND NOT w.is_deleted AND w.workout_date >= $1
          GROUP BY w.user_id
          ORDER BY volume DESC, workout_count DESC, w.user_id ASC
          LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectStandings(rows)
}

// MemberStandings returns one unranked row per id in userIDs, with period totals counted
// from since. Users without activity read as zero.
func (s *Store) MemberStandings(ctx context.Context, userIDs []string, since time.Time) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.user_id, COUNT(w.workout_id), COALESCE(SUM(w.total_volume), 0),
                COALESCE(MAX(u.xp), 0), COALESCE(MAX(u.current_streak), 0)
           FROM (SELECT DISTINCT unnest($1::text[]) AS user_id) m
           LEFT JOIN users u ON u.user_id = m.user_id
           LEFT JOIN workouts w ON w.user_id = m.user_id AND w.status = 'completed'
                AND NOT w.is_deleted AND w.workout_date >= $2
          GROUP BY m.user_id
          ORDER BY m.user_id`,
		userIDs, since,
	)
	if err != nil {
		return nil, err
	}
	return collectStandings(rows)
}

// UserRanks counts the users strictly ahead of userID on XP, current streak and completed
// workouts since the given instant.
func (s *Store) UserRanks(ctx context.Context, userID string, since time.Time) (domain.UserRanks, error) {
	var ranks domain.UserRanks
	err := s.pool.QueryRow(ctx,
		`WITH self AS (
             SELECT COALESCE(MAX(xp), 0) AS xp, COALESCE(MAX(current_streak), 0) AS streak
               FROM users WHERE user_id = $1
         ), monthly AS (
             SELECT user_id, COUNT(*) AS n FROM workouts
              WHERE status = 'completed' AND NOT is_deleted AND workout_date >= $2
              GROUP BY user_id
         ), own AS (
             SELECT COALESCE(MAX(n), 0) AS n FROM monthly WHERE user_id = $1
         )
         SELECT (SELECT COUNT(*) FROM users, self WHERE users.xp > self.xp) + 1,
                (SELECT COUNT(*) FROM users, self WHERE users.current_streak > self.streak) + 1,
                (SELECT COUNT(*) FROM monthly, own WHERE monthly.n > own.n) + 1,
                (SELECT COUNT(*) FROM users)`,
		userID, since,
	).Scan(&ranks.XPRank, &ranks.StreakRank, &ranks.WorkoutsRank, &ranks.TotalUsers)
	if err != nil {
		return domain.UserRanks{}, fmt.Errorf("user ranks: %w", err)
	}
	return ranks, nil
}

func collectStandings(rows pgx.Rows) ([]domain.LeaderboardEntry, error) {
	defer rows.Close()
	out := make([]domain.LeaderboardEntry, 0)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.WorkoutCount, &e.TotalVolume, &e.XP, &e.CurrentStreak); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
