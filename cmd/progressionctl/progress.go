package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"example.com/progression/internal/xp"
)

var streakCmd = &cobra.Command{
	Use:   "streak <user-id>",
	Short: "Recompute and persist a user's workout streak",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd, false)
		if err != nil {
			return err
		}
		res, err := components(b).Streaks.Recompute(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("recompute streak: %w", err)
		}
		out := cmd.OutOrStdout()
		bold := color.New(color.Bold)
		bold.Fprintf(out, "%s\n", args[0])
		fmt.Fprintf(out, "  current  %d\n", res.Current)
		fmt.Fprintf(out, "  longest  %d\n", res.Longest)
		return nil
	},
}

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "Achievement maintenance",
}

var achievementsCheckCmd = &cobra.Command{
	Use:   "check <user-id>",
	Short: "Unlock every achievement the user has earned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd, false)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		unlocked, err := components(b).Services.Achievements.Check(ctx, args[0])
		if err != nil {
			return fmt.Errorf("check achievements: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(unlocked) == 0 {
			fmt.Fprintln(out, "No new achievements.")
		}
		green := color.New(color.FgGreen)
		faint := color.New(color.Faint)
		for _, a := range unlocked {
			green.Fprintf(out, "★ %s", a.Name)
			faint.Fprintf(out, " (%s, +%d xp)\n", a.Key, a.XPReward)
		}

		progress, err := b.Store.GetProgress(ctx, args[0])
		if err != nil {
			return fmt.Errorf("read progress: %w", err)
		}
		fmt.Fprintf(out, "xp %d, level %d\n", progress.XP, xp.Level(progress.XP))
		return nil
	},
}

func init() {
	achievementsCmd.AddCommand(achievementsCheckCmd)
	rootCmd.AddCommand(streakCmd)
	rootCmd.AddCommand(achievementsCmd)
}
