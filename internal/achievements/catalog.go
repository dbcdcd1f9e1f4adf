package achievements

import (
	"sort"

	"example.com/progression/internal/domain"
)

// Rarity tiers.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// DefaultCatalog returns the built-in achievement definitions used for seeding.
func DefaultCatalog() []domain.Achievement {
	return []domain.Achievement{
		{Key: "first_workout", Name: "First Steps", Description: "Complete your first workout", Icon: "fitness", Category: domain.CategoryWorkout, Requirement: 1, XPReward: 50, Rarity: RarityCommon},
		{Key: "workout_10", Name: "Getting Started", Description: "Complete 10 workouts", Icon: "barbell", Category: domain.CategoryWorkout, Requirement: 10, XPReward: 100, Rarity: RarityCommon},
		{Key: "workout_50", Name: "Dedicated", Description: "Complete 50 workouts", Icon: "trophy", Category: domain.CategoryWorkout, Requirement: 50, XPReward: 300, Rarity: RarityRare},
		{Key: "workout_100", Name: "Centurion", Description: "Complete 100 workouts", Icon: "medal", Category: domain.CategoryWorkout, Requirement: 100, XPReward: 500, Rarity: RarityEpic},

		{Key: "streak_3", Name: "On Fire", Description: "3 day workout streak", Icon: "flame", Category: domain.CategoryStreak, Requirement: 3, XPReward: 75, Rarity: RarityCommon},
		{Key: "streak_7", Name: "Week Warrior", Description: "7 day workout streak", Icon: "flame", Category: domain.CategoryStreak, Requirement: 7, XPReward: 150, Rarity: RarityRare},
		{Key: "streak_30", Name: "Month Master", Description: "30 day workout streak", Icon: "flame", Category: domain.CategoryStreak, Requirement: 30, XPReward: 500, Rarity: RarityEpic},

		{Key: "social_1", Name: "Social Butterfly", Description: "Add your first friend", Icon: "people", Category: domain.CategorySocial, Requirement: 1, XPReward: 50, Rarity: RarityCommon},
		{Key: "social_10", Name: "Popular", Description: "Have 10 friends", Icon: "people", Category: domain.CategorySocial, Requirement: 10, XPReward: 200, Rarity: RarityRare},

		{Key: "sets_100", Name: "Set Crusher", Description: "Complete 100 sets", Icon: "repeat", Category: domain.CategoryExercise, Requirement: 100, XPReward: 150, Rarity: RarityCommon},
		{Key: "sets_500", Name: "Volume King", Description: "Complete 500 sets", Icon: "repeat", Category: domain.CategoryExercise, Requirement: 500, XPReward: 400, Rarity: RarityEpic},

		{Key: "xp_1000", Name: "Rising Star", Description: "Earn 1000 XP", Icon: "star", Category: domain.CategoryXP, Requirement: 1000, XPReward: 200, Rarity: RarityRare},
		{Key: "xp_5000", Name: "Elite Athlete", Description: "Earn 5000 XP", Icon: "star", Category: domain.CategoryXP, Requirement: 5000, XPReward: 500, Rarity: RarityEpic},
		{Key: "xp_10000", Name: "Legend", Description: "Earn 10000 XP", Icon: "star", Category: domain.CategoryXP, Requirement: 10000, XPReward: 1000, Rarity: RarityLegendary},
	}
}

// SortCatalog orders achievements by category, then requirement, then key.
func SortCatalog(list []domain.Achievement) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Category != list[j].Category {
			return list[i].Category < list[j].Category
		}
		if list[i].Requirement != list[j].Requirement {
			return list[i].Requirement < list[j].Requirement
		}
		return list[i].Key < list[j].Key
	})
}
