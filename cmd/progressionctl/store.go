package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"example.com/progression/internal/app"
	"example.com/progression/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StoreBackend != config.BackendPostgres {
			return fmt.Errorf("migrate needs STORE_BACKEND=postgres, got %q", cfg.StoreBackend)
		}
		if _, err := openBackend(cmd, true); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "✓ schema is up to date")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install the achievement catalog and starter exercises",
	Long: `Upsert the built-in achievement catalog and the starter exercise list.

Running seed again updates names and thresholds in place; user unlocks are
left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd, cfg.StoreBackend == config.BackendPostgres)
		if err != nil {
			return err
		}
		if err := app.Seed(cmd.Context(), b.Store); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		color.New(color.FgGreen).Fprintln(out, "✓ seeded")
		faint := color.New(color.Faint)
		faint.Fprintf(out, "  %d exercises\n", len(app.StarterExercises()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
