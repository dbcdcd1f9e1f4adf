//go:build integration

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/progression/internal/achievements"
	"example.com/progression/internal/config"
	"example.com/progression/internal/domain"
	"example.com/progression/internal/workout"
)

func TestMigratedPostgresCanUnlockAchievements(t *testing.T) {
	ctx := context.Background()
	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("progression"),
		postgrescontainer.WithUsername("progression"),
		postgrescontainer.WithPassword("progression"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })
	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var backend *Backend
	require.Eventually(t, func() bool {
		backend, err = Open(ctx, OpenParams{
			Config:  config.Config{StoreBackend: config.BackendPostgres, PostgresURL: connStr},
			Name:    "integration",
			Migrate: true,
		})
		return err == nil
	}, 30*time.Second, time.Second)
	defer backend.Close()

	catalog, err := backend.Store.ListAchievements(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog, len(achievements.DefaultCatalog()))

	comps := Build(BuildParams{Store: backend.Store, CacheMB: 1})
	require.NoError(t, backend.Store.UpsertExercises(ctx, StarterExercises()))
	_, err = comps.Services.Workouts.Create(ctx, "user-1", workout.CreateInput{
		Name:      "First",
		Status:    string(domain.StatusCompleted),
		Exercises: []domain.ExerciseEntry{{ExerciseID: "deadlift", Sets: []domain.Set{{Reps: 5, Weight: 140}}}},
	})
	require.NoError(t, err)

	unlocked, err := comps.Services.Achievements.Check(ctx, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, unlocked)
	assert.Equal(t, "first_workout", unlocked[0].Key)
}
