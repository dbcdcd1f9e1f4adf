package records

import (
	"context"
	"sort"
	"time"

	"example.com/progression/internal/domain"
)

// DefaultRecentDays is the window used by RecentRecords when none is supplied.
const DefaultRecentDays = 30

// ExerciseBests groups the best record per metric for one exercise.
type ExerciseBests struct {
	ExerciseID string
	Records    map[domain.RecordType]domain.PersonalRecord
}

// UserRecords returns, per exercise, the highest-valued row for every metric type.
func (d *Detector) UserRecords(ctx context.Context, userID string) ([]ExerciseBests, error) {
	rows, err := d.repo.ListRecords(ctx, userID, "", time.Time{})
	if err != nil {
		return nil, err
	}
	return GroupBests(rows), nil
}

// ExerciseRecords returns the full history for one exercise, newest first.
func (d *Detector) ExerciseRecords(ctx context.Context, userID, exerciseID string) ([]domain.PersonalRecord, error) {
	return d.repo.ListRecords(ctx, userID, exerciseID, time.Time{})
}

// RecentRecords returns records achieved within the last days days, newest first.
func (d *Detector) RecentRecords(ctx context.Context, userID string, days int) ([]domain.PersonalRecord, error) {
	if days <= 0 {
		days = DefaultRecentDays
	}
	since := d.now().UTC().AddDate(0, 0, -days)
	return d.repo.ListRecords(ctx, userID, "", since)
}

// GroupBests keeps the maximum-value row per (exercise, type). Ties keep the earliest row.
func GroupBests(rows []domain.PersonalRecord) []ExerciseBests {
	byExercise := make(map[string]*ExerciseBests)
	order := make([]string, 0)
	for _, row := range rows {
		group, ok := byExercise[row.ExerciseID]
		if !ok {
			group = &ExerciseBests{ExerciseID: row.ExerciseID, Records: make(map[domain.RecordType]domain.PersonalRecord)}
			byExercise[row.ExerciseID] = group
			order = append(order, row.ExerciseID)
		}
		current, exists := group.Records[row.Type]
		if !exists || row.Value > current.Value || (row.Value == current.Value && row.AchievedAt.Before(current.AchievedAt)) {
			group.Records[row.Type] = row
		}
	}

	out := make([]ExerciseBests, 0, len(order))
	for _, id := range order {
		out = append(out, *byExercise[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExerciseID < out[j].ExerciseID })
	return out
}
