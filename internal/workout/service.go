// Package workout orchestrates the workout lifecycle and the progression bookkeeping it triggers.
package workout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
	"example.com/progression/internal/observability"
	"example.com/progression/internal/xp"
)

// List pagination bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Service implements create, update, start, set completion, finish and delete.
type Service struct {
	repo      Repository
	exercises ExerciseVerifier
	records   RecordDetector
	logger    log.FieldLogger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger log.FieldLogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs a Service.
func NewService(repo Repository, exercises ExerciseVerifier, records RecordDetector, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		exercises: exercises,
		records:   records,
		logger:    log.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is the payload for a new workout.
type CreateInput struct {
	Name       string
	Exercises  []domain.ExerciseEntry
	Status     string
	Visibility string
	Date       *time.Time
	Duration   int
	Notes      string
}

// UpdateInput carries the optional fields of an edit. Nil fields are left unchanged.
type UpdateInput struct {
	Name       *string
	Exercises  []domain.ExerciseEntry
	Duration   *int
	Date       *time.Time
	Visibility *string
	Notes      *string
}

// CompleteSetInput toggles one set's completion flag.
type CompleteSetInput struct {
	ExerciseIndex int
	SetIndex      int
	Completed     bool
}

// FinishInput optionally overrides the duration recorded at finish.
type FinishInput struct {
	Duration *int
}

// FinishResult is the finished workout and the records it produced.
type FinishResult struct {
	Workout    domain.Workout
	NewRecords []domain.PersonalRecord
}

// Create validates and stores a planned or directly completed workout.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (_ *domain.Workout, err error) {
	ctx, span := observability.Tracer.Start(ctx, "workout.create")
	defer func() { endSpan(span, err) }()

	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := validateNotes(input.Notes); err != nil {
		return nil, err
	}
	if err := s.validateExercises(ctx, input.Exercises); err != nil {
		return nil, err
	}
	if err := domain.ValidateDuration(input.Duration); err != nil {
		return nil, err
	}
	visibility, err := domain.ParseVisibility(input.Visibility)
	if err != nil {
		return nil, err
	}
	status, err := parseCreateStatus(input.Status)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	w := domain.Workout{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         name,
		Exercises:    input.Exercises,
		Status:       status,
		Visibility:   visibility,
		Date:         now,
		Duration:     input.Duration,
		Notes:        input.Notes,
		CreatedAt:    now,
		LastEditedAt: now,
		UpdatedAt:    now,
	}
	if input.Date != nil {
		w.Date = input.Date.UTC()
	}
	if status == domain.StatusCompleted {
		w.CompletedAt = &now
	}
	w.XPEarned = xp.ForWorkout(w)

	if err := s.repo.CreateWorkout(ctx, w); err != nil {
		return nil, err
	}
	observability.RecordXPDelta(w.XPEarned)
	if status == domain.StatusCompleted {
		observability.RecordWorkoutFinished(now)
		s.detectRecords(ctx, w)
	}
	return &w, nil
}

// Get returns one of the user's workouts.
func (s *Service) Get(ctx context.Context, userID, workoutID string) (*domain.Workout, error) {
	w, err := s.repo.GetWorkout(ctx, userID, workoutID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, domain.ErrWorkoutNotFound
	}
	return w, nil
}

// List pages through the user's workouts by date desc.
func (s *Service) List(ctx context.Context, userID string, filter domain.WorkoutFilter) ([]domain.Workout, *domain.Cursor, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	filter.Limit = min(filter.Limit, MaxListLimit)
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, nil, domain.Validation("from must not be after to")
	}
	return s.repo.ListWorkouts(ctx, userID, filter)
}

// Update edits a workout and recomputes its XP from the final content.
func (s *Service) Update(ctx context.Context, userID, workoutID string, input UpdateInput) (_ *domain.Workout, err error) {
	ctx, span := observability.Tracer.Start(ctx, "workout.update")
	span.SetAttributes(attribute.String("workout.id", workoutID))
	defer func() { endSpan(span, err) }()

	w, err := s.Get(ctx, userID, workoutID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := validateName(*input.Name)
		if err != nil {
			return nil, err
		}
		w.Name = name
	}
	exercisesChanged := input.Exercises != nil
	if exercisesChanged {
		if err := s.validateExercises(ctx, input.Exercises); err != nil {
			return nil, err
		}
		w.Exercises = input.Exercises
	}
	if input.Duration != nil {
		if err := domain.ValidateDuration(*input.Duration); err != nil {
			return nil, err
		}
		w.Duration = *input.Duration
	}
	if input.Date != nil {
		w.Date = input.Date.UTC()
	}
	if input.Visibility != nil {
		visibility, err := domain.ParseVisibility(*input.Visibility)
		if err != nil {
			return nil, err
		}
		w.Visibility = visibility
	}
	if input.Notes != nil {
		if err := validateNotes(*input.Notes); err != nil {
			return nil, err
		}
		w.Notes = *input.Notes
	}

	now := s.now().UTC()
	w.XPEarned = xp.ForWorkout(*w)
	w.LastEditedAt = now
	w.UpdatedAt = now

	delta, err := s.repo.UpdateWorkout(ctx, *w, events.WorkoutUpdated)
	if err != nil {
		return nil, err
	}
	observability.RecordXPDelta(delta)

	if exercisesChanged && w.Status == domain.StatusCompleted {
		s.detectRecords(ctx, *w)
	}
	return w, nil
}

// Start moves a planned workout to in-progress.
func (s *Service) Start(ctx context.Context, userID, workoutID string) (*domain.Workout, error) {
	w, err := s.Get(ctx, userID, workoutID)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.StatusPlanned {
		return nil, domain.ErrInvalidTransition
	}
	now := s.now().UTC()
	w.Status = domain.StatusInProgress
	w.StartedAt = &now
	w.UpdatedAt = now
	if _, err := s.repo.UpdateWorkout(ctx, *w, events.WorkoutUpdated); err != nil {
		return nil, err
	}
	return w, nil
}

// CompleteSet toggles one set's completion flag.
func (s *Service) CompleteSet(ctx context.Context, userID, workoutID string, input CompleteSetInput) (*domain.Workout, error) {
	w, err := s.Get(ctx, userID, workoutID)
	if err != nil {
		return nil, err
	}
	if input.ExerciseIndex < 0 || input.ExerciseIndex >= len(w.Exercises) {
		return nil, domain.ErrInvalidExerciseIndex
	}
	entry := &w.Exercises[input.ExerciseIndex]
	if input.SetIndex < 0 || input.SetIndex >= len(entry.Sets) {
		return nil, domain.ErrInvalidSetIndex
	}

	now := s.now().UTC()
	set := &entry.Sets[input.SetIndex]
	set.Completed = input.Completed
	set.CompletedAt = nil
	if input.Completed {
		set.CompletedAt = &now
	}
	w.UpdatedAt = now
	if _, err := s.repo.UpdateWorkout(ctx, *w, events.WorkoutUpdated); err != nil {
		return nil, err
	}
	return w, nil
}

// Finish completes a workout, settles its XP and runs record detection best-effort.
func (s *Service) Finish(ctx context.Context, userID, workoutID string, input FinishInput) (_ *FinishResult, err error) {
	ctx, span := observability.Tracer.Start(ctx, "workout.finish")
	span.SetAttributes(attribute.String("workout.id", workoutID))
	defer func() { endSpan(span, err) }()

	w, err := s.Get(ctx, userID, workoutID)
	if err != nil {
		return nil, err
	}
	if w.Status == domain.StatusCompleted {
		return nil, domain.ErrInvalidTransition
	}
	if input.Duration != nil {
		if err := domain.ValidateDuration(*input.Duration); err != nil {
			return nil, err
		}
		w.Duration = *input.Duration
	}

	now := s.now().UTC()
	w.Status = domain.StatusCompleted
	w.CompletedAt = &now
	w.UpdatedAt = now
	w.XPEarned = xp.ForWorkout(*w)

	delta, err := s.repo.UpdateWorkout(ctx, *w, events.WorkoutCompleted)
	if err != nil {
		return nil, err
	}
	observability.RecordXPDelta(delta)
	observability.RecordWorkoutFinished(now)

	return &FinishResult{Workout: *w, NewRecords: s.detectRecords(ctx, *w)}, nil
}

// Delete soft deletes a workout and reverses its XP exactly once.
func (s *Service) Delete(ctx context.Context, userID, workoutID string) (err error) {
	ctx, span := observability.Tracer.Start(ctx, "workout.delete")
	span.SetAttributes(attribute.String("workout.id", workoutID))
	defer func() { endSpan(span, err) }()

	deleted, err := s.repo.SoftDeleteWorkout(ctx, userID, workoutID)
	if err != nil {
		return err
	}
	if deleted == nil {
		return domain.ErrWorkoutNotFound
	}
	observability.RecordWorkoutDeleted()
	observability.RecordXPDelta(-deleted.XPEarned)
	return nil
}

// detectRecords never fails the caller; failures are logged and counted.
func (s *Service) detectRecords(ctx context.Context, w domain.Workout) []domain.PersonalRecord {
	if s.records == nil {
		return []domain.PersonalRecord{}
	}
	created, err := s.records.Detect(ctx, w)
	if err != nil {
		observability.RecordDetectionFailure()
		s.logger.WithFields(log.Fields{"workout_id": w.ID, "user_id": w.UserID}).WithError(err).Warn("personal record detection failed")
	}
	if created == nil {
		created = []domain.PersonalRecord{}
	}
	return created
}

func (s *Service) validateExercises(ctx context.Context, entries []domain.ExerciseEntry) error {
	if len(entries) == 0 {
		return domain.Validation("at least one exercise is required")
	}
	if err := domain.ValidateExercises(entries); err != nil {
		return err
	}
	if s.exercises == nil {
		return nil
	}
	return s.exercises.Verify(ctx, domain.ExerciseIDs(entries))
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || len([]rune(name)) > domain.MaxNameLength {
		return "", domain.Validation("name must be between 1 and %d characters", domain.MaxNameLength)
	}
	return name, nil
}

func validateNotes(notes string) error {
	if len([]rune(notes)) > domain.MaxNotesLength {
		return domain.Validation("notes must be at most %d characters", domain.MaxNotesLength)
	}
	return nil
}

func parseCreateStatus(raw string) (domain.WorkoutStatus, error) {
	switch domain.WorkoutStatus(strings.TrimSpace(raw)) {
	case "", domain.StatusPlanned:
		return domain.StatusPlanned, nil
	case domain.StatusCompleted:
		return domain.StatusCompleted, nil
	}
	return "", domain.Validation("status must be planned or completed")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
