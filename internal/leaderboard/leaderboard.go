// Package leaderboard ranks users by XP through a Redis sorted set backed by the store.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/xp"
)

const (
	XPKey = "leaderboard:xp"
	// BuiltKey marks XPKey as holding every user. Without it the set may only hold users
	// recorded since the last flush and is rebuilt before it is read.
	BuiltKey     = "leaderboard:xp:built"
	DefaultLimit = 10
	MaxLimit     = 100
)

// Kind selects the metric a friends leaderboard is ordered by.
type Kind string

const (
	KindXP       Kind = "xp"
	KindWorkouts Kind = "workouts"
	KindVolume   Kind = "volume"
)

// ParseKind maps a query value onto a Kind; empty selects XP.
func ParseKind(raw string) (Kind, bool) {
	switch k := Kind(raw); k {
	case "":
		return KindXP, true
	case KindXP, KindWorkouts, KindVolume:
		return k, true
	}
	return "", false
}

// Store is the durable source rankings are rebuilt from.
type Store interface {
	TopByXP(ctx context.Context, limit int) ([]domain.UserProgress, error)
	TopByStreak(ctx context.Context, limit int) ([]domain.UserProgress, error)
	TopByWorkouts(ctx context.Context, since time.Time, limit int) ([]domain.LeaderboardEntry, error)
	TopByVolume(ctx context.Context, since time.Time, limit int) ([]domain.LeaderboardEntry, error)
	MemberStandings(ctx context.Context, userIDs []string, since time.Time) ([]domain.LeaderboardEntry, error)
	UserRanks(ctx context.Context, userID string, since time.Time) (domain.UserRanks, error)
	ListFriendships(ctx context.Context, userID string, status domain.FriendshipStatus) ([]domain.Friendship, error)
}

// Board serves the global and friends rankings.
type Board struct {
	redisClient *redis.Client
	store       Store
	now         func() time.Time
}

// NewBoard constructs a Board. A nil redisClient serves every ranking from the store.
func NewBoard(redisClient *redis.Client, store Store) *Board {
	return &Board{redisClient: redisClient, store: store, now: time.Now}
}

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Record sets the user's XP score.
func (b *Board) Record(ctx context.Context, userID string, totalXP int) error {
	if b.redisClient == nil {
		return nil
	}
	if err := b.redisClient.ZAdd(ctx, XPKey, &redis.Z{Score: float64(totalXP), Member: userID}).Err(); err != nil {
		return fmt.Errorf("zadd %s: %w", XPKey, err)
	}
	return nil
}

// Top returns the highest-XP users. The sorted set is served only once it has been rebuilt
// from the store; an unreachable Redis falls back to the store.
func (b *Board) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	limit = ClampLimit(limit)
	if b.redisClient == nil {
		return b.topFromStore(ctx, limit)
	}

	built, err := b.redisClient.Exists(ctx, BuiltKey).Result()
	if err != nil {
		log.Warnf("leaderboard: check %s: %s", BuiltKey, err)
		return b.topFromStore(ctx, limit)
	}
	if built == 0 {
		users, err := b.rebuild(ctx)
		if users == nil {
			return nil, err
		}
		if err != nil {
			log.Warnf("leaderboard: %s", err)
		}
		return rankUsers(users[:min(limit, len(users))]), nil
	}

	scores, err := b.redisClient.ZRevRangeWithScores(ctx, XPKey, 0, int64(limit-1)).Result()
	if err != nil {
		log.Warnf("leaderboard: read %s: %s", XPKey, err)
		return b.topFromStore(ctx, limit)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(scores))
	for i, z := range scores {
		userID, _ := z.Member.(string)
		entries = append(entries, entry(i+1, userID, int(z.Score)))
	}
	return entries, nil
}

// Rebuild replaces the sorted set with every user's XP from the store and marks it complete.
func (b *Board) Rebuild(ctx context.Context) (int, error) {
	if b.redisClient == nil {
		return 0, nil
	}
	users, err := b.rebuild(ctx)
	return len(users), err
}

// rebuild loads every user and rewrites the set. Users is nil only when the store read
// failed; a Redis failure still returns the store rows alongside the error.
func (b *Board) rebuild(ctx context.Context) ([]domain.UserProgress, error) {
	users, err := b.store.TopByXP(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("top by xp: %w", err)
	}
	members := make([]*redis.Z, 0, len(users))
	for _, u := range users {
		members = append(members, &redis.Z{Score: float64(u.XP), Member: u.UserID})
	}
	_, err = b.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, XPKey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, XPKey, members...)
		}
		pipe.Set(ctx, BuiltKey, "1", 0)
		return nil
	})
	if err != nil {
		return users, fmt.Errorf("rebuild %s: %w", XPKey, err)
	}
	return users, nil
}

func (b *Board) topFromStore(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	users, err := b.store.TopByXP(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top by xp: %w", err)
	}
	return rankUsers(users), nil
}

// TopByStreak returns users with the longest running streaks.
func (b *Board) TopByStreak(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	users, err := b.store.TopByStreak(ctx, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("top by streak: %w", err)
	}
	return rankUsers(users), nil
}

// TopByWorkouts ranks users by completed workouts in the current calendar month (UTC).
func (b *Board) TopByWorkouts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	entries, err := b.store.TopByWorkouts(ctx, b.monthStart(), ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("top by workouts: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Level = xp.Level(entries[i].XP)
	}
	return entries, nil
}

// TopByVolume ranks users by lifted volume in the current calendar month (UTC).
func (b *Board) TopByVolume(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	entries, err := b.store.TopByVolume(ctx, b.monthStart(), ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("top by volume: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Level = xp.Level(entries[i].XP)
	}
	return entries, nil
}

// UserRanks returns the user's position on the XP, streak and monthly workout boards.
func (b *Board) UserRanks(ctx context.Context, userID string) (domain.UserRanks, error) {
	ranks, err := b.store.UserRanks(ctx, userID, b.monthStart())
	if err != nil {
		return domain.UserRanks{}, fmt.Errorf("user ranks: %w", err)
	}
	return ranks, nil
}

// Friends ranks the user and their accepted friends by kind. Workout and volume totals
// cover the current calendar month.
func (b *Board) Friends(ctx context.Context, userID string, kind Kind) ([]domain.LeaderboardEntry, error) {
	friendships, err := b.store.ListFriendships(ctx, userID, domain.FriendshipAccepted)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	ids := make([]string, 0, len(friendships)+1)
	ids = append(ids, userID)
	for _, f := range friendships {
		ids = append(ids, f.Other(userID))
	}
	entries, err := b.store.MemberStandings(ctx, ids, b.monthStart())
	if err != nil {
		return nil, fmt.Errorf("member standings: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, c := entries[i], entries[j]
		switch kind {
		case KindWorkouts:
			if a.WorkoutCount != c.WorkoutCount {
				return a.WorkoutCount > c.WorkoutCount
			}
			if a.TotalVolume != c.TotalVolume {
				return a.TotalVolume > c.TotalVolume
			}
		case KindVolume:
			if a.TotalVolume != c.TotalVolume {
				return a.TotalVolume > c.TotalVolume
			}
			if a.WorkoutCount != c.WorkoutCount {
				return a.WorkoutCount > c.WorkoutCount
			}
		default:
			if a.XP != c.XP {
				return a.XP > c.XP
			}
		}
		return a.UserID < c.UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Level = xp.Level(entries[i].XP)
		entries[i].IsCurrentUser = entries[i].UserID == userID
	}
	return entries, nil
}

func (b *Board) monthStart() time.Time {
	now := b.now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func rankUsers(users []domain.UserProgress) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		e := entry(i+1, u.UserID, u.XP)
		e.CurrentStreak = u.CurrentStreak
		entries = append(entries, e)
	}
	return entries
}

func entry(rank int, userID string, totalXP int) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		Rank:   rank,
		UserID: userID,
		XP:     totalXP,
		Level:  xp.Level(totalXP),
	}
}
