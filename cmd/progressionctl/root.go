package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"example.com/progression/internal/app"
	"example.com/progression/internal/config"
	"example.com/progression/internal/logging"
)

var (
	cfg     config.Config
	backend *app.Backend

	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "progressionctl",
	Short: "Operate the workout progression engine",
	Long: `progressionctl runs maintenance tasks against the progression store.

The store is chosen the same way the services choose it: STORE_BACKEND,
POSTGRES_URL and the optional CONFIG_FILE table for APP_ENV.

EXAMPLES:

  progressionctl migrate                   # Apply the database schema
  progressionctl seed                      # Install achievements and starter exercises
  progressionctl streak 5f1c...            # Recompute one user's streak
  progressionctl achievements check 5f1c... # Unlock whatever the user has earned
  progressionctl xp 12 2700                # XP for 12 sets over 45 minutes
  progressionctl token alice               # Mint a local bearer token`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logging.Setup(logging.LoggerSetupParams{
			LogToStdout: false,
			LogLevel:    cfg.LogLevel,
			Environment: cfg.Environment,
			ServiceName: "progressionctl",
		})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if backend != nil {
			backend.Close()
			backend = nil
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// openBackend connects to the configured store once per invocation.
func openBackend(cmd *cobra.Command, migrate bool) (*app.Backend, error) {
	if backend != nil {
		return backend, nil
	}
	b, err := app.Open(cmd.Context(), app.OpenParams{Config: cfg, Name: "progression", Migrate: migrate})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	backend = b
	return backend, nil
}

func components(b *app.Backend) *app.Components {
	return app.Build(app.BuildParams{
		Store:          b.Store,
		CacheMB:        1,
		StreakLookback: cfg.StreakLookback,
	})
}
