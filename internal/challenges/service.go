// Package challenges runs head-to-head contests between two users over a fixed window of days.
package challenges

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"example.com/progression/internal/domain"
)

const (
	DefaultDuration = 7
	MaxDuration     = 90
	// PendingTTL is how long a challenge may wait for an answer before it expires.
	PendingTTL = 7 * 24 * time.Hour
)

// Repository is the storage surface challenges need.
type Repository interface {
	// CreateChallenge stores the challenge and enqueues challenge.created.
	CreateChallenge(ctx context.Context, c domain.Challenge) error
	// GetChallenge returns nil when the challenge does not exist.
	GetChallenge(ctx context.Context, id string) (*domain.Challenge, error)
	// UpdateChallenge returns domain.ErrChallengeNotFound when the stored status is no longer from.
	UpdateChallenge(ctx context.Context, c domain.Challenge, from domain.ChallengeStatus) error
	ListChallenges(ctx context.Context, userID string, status domain.ChallengeStatus) ([]domain.Challenge, error)
	ListChallengesByStatus(ctx context.Context, status domain.ChallengeStatus) ([]domain.Challenge, error)
	ExpirePendingChallenges(ctx context.Context, cutoff, now time.Time) (int, error)

	CompletedWorkouts(ctx context.Context, userID string, since time.Time) ([]domain.Workout, error)
	ExercisesByIDs(ctx context.Context, ids []string) ([]domain.Exercise, error)
}

// CreateInput describes a new challenge.
type CreateInput struct {
	ChallengedID string
	Type         domain.ChallengeType
	TargetValue  float64
	Unit         string
	ExerciseID   string
	Duration     int
}

// RefreshResult summarises one Refresh run.
type RefreshResult struct {
	Expired   int
	Updated   int
	Completed int
}

// Service implements the challenge lifecycle.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger log.FieldLogger
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now, logger: log.WithField("component", "challenges")}
}

// Create issues a pending challenge from challengerID.
func (s *Service) Create(ctx context.Context, challengerID string, in CreateInput) (domain.Challenge, error) {
	in.ChallengedID = strings.TrimSpace(in.ChallengedID)
	if in.ChallengedID == "" {
		return domain.Challenge{}, domain.Validation("challenged_id is required")
	}
	if in.ChallengedID == challengerID {
		return domain.Challenge{}, domain.ErrInvalidChallenge
	}
	if !in.Type.Valid() {
		return domain.Challenge{}, domain.Validation("type must be one of workout_count, volume, specific_exercise")
	}
	if in.TargetValue <= 0 {
		return domain.Challenge{}, domain.Validation("target_value must be positive")
	}
	if in.Duration == 0 {
		in.Duration = DefaultDuration
	}
	if in.Duration < 1 || in.Duration > MaxDuration {
		return domain.Challenge{}, domain.Validation("duration must be between 1 and %d days", MaxDuration)
	}
	if in.Type == domain.ChallengeSpecificExercise {
		if in.ExerciseID == "" {
			return domain.Challenge{}, domain.Validation("exercise_id is required for specific_exercise challenges")
		}
		found, err := s.repo.ExercisesByIDs(ctx, []string{in.ExerciseID})
		if err != nil {
			return domain.Challenge{}, fmt.Errorf("lookup exercise: %w", err)
		}
		if len(found) == 0 {
			return domain.Challenge{}, domain.ErrExerciseNotFound
		}
	} else {
		in.ExerciseID = ""
	}

	now := s.now().UTC()
	c := domain.Challenge{
		ID:           uuid.NewString(),
		ChallengerID: challengerID,
		ChallengedID: in.ChallengedID,
		Type:         in.Type,
		TargetValue:  in.TargetValue,
		Unit:         in.Unit,
		ExerciseID:   in.ExerciseID,
		Duration:     in.Duration,
		Status:       domain.ChallengePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateChallenge(ctx, c); err != nil {
		return domain.Challenge{}, err
	}
	return c, nil
}

// Accept starts the challenge window. Only the challenged user can accept a pending challenge.
func (s *Service) Accept(ctx context.Context, userID, id string) (domain.Challenge, error) {
	c, err := s.pendingFor(ctx, userID, id)
	if err != nil {
		return domain.Challenge{}, err
	}
	now := s.now().UTC()
	end := now.AddDate(0, 0, c.Duration)
	c.Status = domain.ChallengeAccepted
	c.StartDate = &now
	c.EndDate = &end
	c.AcceptedAt = &now
	c.UpdatedAt = now
	if err := s.repo.UpdateChallenge(ctx, c, domain.ChallengePending); err != nil {
		return domain.Challenge{}, err
	}
	return c, nil
}

// Reject declines a pending challenge addressed to userID.
func (s *Service) Reject(ctx context.Context, userID, id string) (domain.Challenge, error) {
	c, err := s.pendingFor(ctx, userID, id)
	if err != nil {
		return domain.Challenge{}, err
	}
	c.Status = domain.ChallengeRejected
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateChallenge(ctx, c, domain.ChallengePending); err != nil {
		return domain.Challenge{}, err
	}
	return c, nil
}

// List returns userID's challenges, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID string, status domain.ChallengeStatus) ([]domain.Challenge, error) {
	if status != "" && !status.Valid() {
		return nil, domain.Validation("unknown challenge status %q", status)
	}
	return s.repo.ListChallenges(ctx, userID, status)
}

// Get returns a challenge userID takes part in. Accepted challenges are scored first.
func (s *Service) Get(ctx context.Context, userID, id string) (domain.Challenge, error) {
	c, err := s.repo.GetChallenge(ctx, id)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	if c == nil || !c.Involves(userID) {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	if c.Status != domain.ChallengeAccepted {
		return *c, nil
	}
	return s.score(ctx, *c)
}

// UpdateProgress recomputes both participants' progress on an accepted challenge and completes
// it once its window has closed. Other statuses are returned unchanged.
func (s *Service) UpdateProgress(ctx context.Context, id string) (domain.Challenge, error) {
	c, err := s.repo.GetChallenge(ctx, id)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	if c == nil {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	if c.Status != domain.ChallengeAccepted {
		return *c, nil
	}
	return s.score(ctx, *c)
}

// Refresh expires unanswered challenges and rescores every accepted one. A failing challenge
// does not stop the run.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	now := s.now().UTC()
	var res RefreshResult
	expired, err := s.repo.ExpirePendingChallenges(ctx, now.Add(-PendingTTL), now)
	if err != nil {
		return res, fmt.Errorf("expire challenges: %w", err)
	}
	res.Expired = expired

	active, err := s.repo.ListChallengesByStatus(ctx, domain.ChallengeAccepted)
	if err != nil {
		return res, fmt.Errorf("list accepted challenges: %w", err)
	}
	var errs error
	for _, c := range active {
		if ctx.Err() != nil {
			return res, multierr.Append(errs, ctx.Err())
		}
		scored, err := s.score(ctx, c)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("challenge %s: %w", c.ID, err))
			continue
		}
		res.Updated++
		if scored.Status == domain.ChallengeCompleted {
			res.Completed++
		}
	}
	if res.Expired > 0 || res.Completed > 0 {
		s.logger.WithFields(log.Fields{"expired": res.Expired, "completed": res.Completed}).Info("challenges settled")
	}
	return res, errs
}

func (s *Service) score(ctx context.Context, c domain.Challenge) (domain.Challenge, error) {
	if c.StartDate == nil || c.EndDate == nil {
		return c, nil
	}
	var err error
	if c.ChallengerProgress, err = s.progress(ctx, c, c.ChallengerID); err != nil {
		return domain.Challenge{}, err
	}
	if c.ChallengedProgress, err = s.progress(ctx, c, c.ChallengedID); err != nil {
		return domain.Challenge{}, err
	}

	now := s.now().UTC()
	c.UpdatedAt = now
	if now.After(*c.EndDate) {
		c.Status = domain.ChallengeCompleted
		c.CompletedAt = &now
		switch {
		case c.ChallengerProgress > c.ChallengedProgress:
			c.WinnerID = c.ChallengerID
		case c.ChallengedProgress > c.ChallengerProgress:
			c.WinnerID = c.ChallengedID
		}
	}
	if err := s.repo.UpdateChallenge(ctx, c, domain.ChallengeAccepted); err != nil {
		return domain.Challenge{}, err
	}
	return c, nil
}

// progress measures userID's completed workouts dated inside the challenge window.
func (s *Service) progress(ctx context.Context, c domain.Challenge, userID string) (float64, error) {
	workouts, err := s.repo.CompletedWorkouts(ctx, userID, *c.StartDate)
	if err != nil {
		return 0, fmt.Errorf("completed workouts of %s: %w", userID, err)
	}
	var total float64
	for _, w := range workouts {
		if w.Date.After(*c.EndDate) {
			continue
		}
		switch c.Type {
		case domain.ChallengeWorkoutCount:
			total++
		case domain.ChallengeVolume:
			total += w.TotalVolume()
		case domain.ChallengeSpecificExercise:
			for _, ex := range w.Exercises {
				if ex.ExerciseID != c.ExerciseID {
					continue
				}
				for _, set := range ex.Sets {
					total += set.Weight * float64(set.Reps)
				}
			}
		}
	}
	return total, nil
}

func (s *Service) pendingFor(ctx context.Context, userID, id string) (domain.Challenge, error) {
	c, err := s.repo.GetChallenge(ctx, id)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	if c == nil || c.ChallengedID != userID || c.Status != domain.ChallengePending {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return *c, nil
}
