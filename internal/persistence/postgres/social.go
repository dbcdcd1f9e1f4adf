package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
)

const friendshipColumns = `friendship_id, requester_id, recipient_id, status, created_at, updated_at`

func scanFriendship(row pgx.Row) (domain.Friendship, error) {
	var (
		f      domain.Friendship
		status string
	)
	err := row.Scan(&f.ID, &f.RequesterID, &f.RecipientID, &status, &f.CreatedAt, &f.UpdatedAt)
	f.Status = domain.FriendshipStatus(status)
	return f, err
}

func optionalFriendship(row pgx.Row) (*domain.Friendship, error) {
	f, err := scanFriendship(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFriendship finds the edge between a and b in either direction.
func (s *Store) GetFriendship(ctx context.Context, a, b string) (*domain.Friendship, error) {
	return optionalFriendship(s.pool.QueryRow(ctx,
		`SELECT `+friendshipColumns+` FROM friendships
          WHERE (requester_id = $1 AND recipient_id = $2) OR (requester_id = $2 AND recipient_id = $1)`, a, b))
}

// GetFriendshipByID returns the edge or nil.
func (s *Store) GetFriendshipByID(ctx context.Context, id string) (*domain.Friendship, error) {
	return optionalFriendship(s.pool.QueryRow(ctx,
		`SELECT `+friendshipColumns+` FROM friendships WHERE friendship_id = $1`, id))
}

// CreateFriendship stores a new edge. The unordered pair index turns a crossing request into REQUEST_PENDING.
func (s *Store) CreateFriendship(ctx context.Context, f domain.Friendship) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO friendships (`+friendshipColumns+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		f.ID, f.RequesterID, f.RecipientID, string(f.Status), f.CreatedAt, f.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrRequestPending
	}
	return err
}

// AcceptFriendship marks a pending edge accepted and enqueues friendship.accepted for both users.
func (s *Store) AcceptFriendship(ctx context.Context, f domain.Friendship) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE friendships SET status = 'accepted', updated_at = $2
              WHERE friendship_id = $1 AND status = 'pending'
          RETURNING `+friendshipColumns,
			f.ID, f.UpdatedAt,
		)
		accepted, err := scanFriendship(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRequestNotFound
		}
		if err != nil {
			return err
		}
		payload := events.FriendshipAcceptedFrom(accepted)
		if err := insertOutbox(ctx, tx, events.FriendshipAccepted, accepted.ID, accepted.RequesterID, payload); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events.FriendshipAccepted, accepted.ID, accepted.RecipientID, payload)
	})
}

// DeleteFriendship removes the edge.
func (s *Store) DeleteFriendship(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM friendships WHERE friendship_id = $1`, id)
	return err
}

// ListFriendships returns userID's edges in the given status, newest first.
func (s *Store) ListFriendships(ctx context.Context, userID string, status domain.FriendshipStatus) ([]domain.Friendship, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+friendshipColumns+` FROM friendships
          WHERE status = $2 AND (requester_id = $1 OR recipient_id = $1)
          ORDER BY created_at DESC`, userID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Friendship, 0)
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateLike stores the like; the (workout_id, user_id) key turns a duplicate into ALREADY_LIKED.
func (s *Store) CreateLike(ctx context.Context, like domain.Like) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workout_likes (workout_id, user_id, created_at) VALUES ($1,$2,$3)`,
		like.WorkoutID, like.UserID, like.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyLiked
	}
	return err
}

// DeleteLike removes the like and reports whether one existed.
func (s *Store) DeleteLike(ctx context.Context, workoutID, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM workout_likes WHERE workout_id = $1 AND user_id = $2`, workoutID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateComment stores a comment.
func (s *Store) CreateComment(ctx context.Context, c domain.Comment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workout_comments (comment_id, workout_id, user_id, content, created_at) VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.WorkoutID, c.UserID, c.Content, c.CreatedAt,
	)
	return err
}

// ListComments returns a workout's comments, newest first.
func (s *Store) ListComments(ctx context.Context, workoutID string) ([]domain.Comment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT comment_id, workout_id, user_id, content, created_at FROM workout_comments
          WHERE workout_id = $1 ORDER BY created_at DESC, comment_id DESC`, workoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Comment, 0)
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.WorkoutID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteComment removes userID's own comment and reports whether one was removed.
func (s *Store) DeleteComment(ctx context.Context, userID, commentID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM workout_comments WHERE comment_id = $1 AND user_id = $2`, commentID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) countBy(ctx context.Context, query string, args ...any) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			id    string
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// LikeCounts counts likes per workout id.
func (s *Store) LikeCounts(ctx context.Context, workoutIDs []string) (map[string]int, error) {
	return s.countBy(ctx,
		`SELECT workout_id, COUNT(*) FROM workout_likes WHERE workout_id = ANY($1) GROUP BY workout_id`, workoutIDs)
}

// CommentCounts counts comments per workout id.
func (s *Store) CommentCounts(ctx context.Context, workoutIDs []string) (map[string]int, error) {
	return s.countBy(ctx,
		`SELECT workout_id, COUNT(*) FROM workout_comments WHERE workout_id = ANY($1) GROUP BY workout_id`, workoutIDs)
}

// LikedBy reports which of the workouts userID has liked.
func (s *Store) LikedBy(ctx context.Context, userID string, workoutIDs []string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT workout_id FROM workout_likes WHERE user_id = $1 AND workout_id = ANY($2)`, userID, workoutIDs)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// CreateNotification stores a notification; replays of the same id are ignored.
func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO notifications (notification_id, user_id, notification_type, title, body, data, read, read_at, created_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (notification_id) DO NOTHING`,
		n.ID, n.UserID, n.Type, n.Title, n.Body, data, n.Read, n.ReadAt, n.CreatedAt,
	)
	return err
}

// ListNotifications returns the newest notifications for userID plus the unread total.
func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT notification_id, user_id, notification_type, title, body, data, read, read_at, created_at
           FROM notifications
          WHERE user_id = $1 AND (NOT $2 OR NOT read)
          ORDER BY created_at DESC
          LIMIT $3`,
		userID, unreadOnly, limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]domain.Notification, 0, limit)
	for rows.Next() {
		var (
			n    domain.Notification
			data []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &data, &n.Read, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var unread int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&unread); err != nil {
		return nil, 0, err
	}
	return out, unread, nil
}

// MarkNotificationRead flags one of userID's notifications as read.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE, read_at = COALESCE(read_at, NOW())
          WHERE notification_id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

// MarkAllNotificationsRead flags every unread notification of userID and returns how many changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE, read_at = NOW() WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
