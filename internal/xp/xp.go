// Package xp maps workout content to experience points and cumulative XP to a level.
package xp

import (
	"math"

	"example.com/progression/internal/domain"
)

const (
	perSet            = 10
	maxDurationBonus  = 60
	secondsPerBonusXP = 60
	levelDivisor      = 100
)

// WorkoutXP awards 10 XP per set plus one XP per full minute of duration, capped at 60.
func WorkoutXP(totalSets, durationSec int) int {
	if totalSets < 0 {
		totalSets = 0
	}
	xp := totalSets * perSet
	if durationSec > 0 {
		xp += min(durationSec/secondsPerBonusXP, maxDurationBonus)
	}
	return xp
}

// TotalSets counts every logged set across the entries.
func TotalSets(entries []domain.ExerciseEntry) int {
	total := 0
	for _, entry := range entries {
		total += len(entry.Sets)
	}
	return total
}

// ForWorkout recomputes the XP a workout is worth from its own content.
func ForWorkout(w domain.Workout) int {
	return WorkoutXP(TotalSets(w.Exercises), w.Duration)
}

// Level is floor(sqrt(xp/100)) + 1.
func Level(totalXP int) int {
	if totalXP <= 0 {
		return 1
	}
	return int(math.Floor(math.Sqrt(float64(totalXP)/levelDivisor))) + 1
}

// Delta is the adjustment to apply to a user's total when a workout moves from oldXP to newXP.
func Delta(oldXP, newXP int) int {
	return newXP - oldXP
}
