package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"example.com/progression/internal/auth"
	"example.com/progression/internal/xp"
)

var xpCmd = &cobra.Command{
	Use:   "xp <sets> [duration-seconds]",
	Short: "Show the XP a workout would earn",
	Long: `Compute the XP for a workout with the given number of sets and duration.

A workout earns 10 XP per set plus 1 XP per full minute, with the minute
bonus capped at 60.`,
	Args: cobra.RangeArgs(1, 2),
	// The calculation needs neither config nor a store.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		sets, err := parseCount("sets", args[0])
		if err != nil {
			return err
		}
		duration := 0
		if len(args) == 2 {
			if duration, err = parseCount("duration", args[1]); err != nil {
				return err
			}
		}

		earned := xp.WorkoutXP(sets, duration)
		out := cmd.OutOrStdout()
		color.New(color.FgCyan, color.Bold).Fprintf(out, "%d xp", earned)
		color.New(color.Faint).Fprintf(out, " (level %d on its own)\n", xp.Level(earned))
		return nil
	},
}

var (
	tokenScopes string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Mint a bearer token signed with the configured secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scopes := auth.AllScopes
		if tokenScopes != "" {
			scopes = strings.Split(tokenScopes, ",")
		}
		tok, err := auth.Sign(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, args[0], scopes, tokenTTL)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func parseCount(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

func init() {
	tokenCmd.Flags().StringVar(&tokenScopes, "scopes", "", "comma separated scopes (default: all)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(xpCmd)
	rootCmd.AddCommand(tokenCmd)
}
