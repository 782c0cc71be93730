package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igevents/pkg/quota"
	"igevents/pkg/repository"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database and extraction statistics",
	Long: `Show database and extraction statistics.

Reports post counts by processing state and totals for stored events,
categories, and tags.`,
	Run: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg, err := loadConfigLenient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)

	store, err := repository.Open(cfg.Database.Path, cfg.Database.Transactional, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	db := store.DB()

	counts := map[string]string{
		"Posts total":       `SELECT COUNT(*) FROM posts`,
		"Posts processed":   `SELECT COUNT(*) FROM posts WHERE processed = 1`,
		"Posts pending":     `SELECT COUNT(*) FROM posts WHERE processed = 0`,
		"Events stored":     `SELECT COUNT(*) FROM events`,
		"Categories in use": `SELECT COUNT(*) FROM categories`,
		"Distinct tags":     `SELECT COUNT(DISTINCT tag) FROM event_tags`,
	}

	order := []string{
		"Posts total", "Posts processed", "Posts pending",
		"Events stored", "Categories in use", "Distinct tags",
	}

	fmt.Println("Extraction Statistics")
	fmt.Println()
	for _, label := range order {
		var n int
		if err := db.QueryRowContext(ctx, counts[label]).Scan(&n); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to query %s: %v\n", label, err)
			os.Exit(1)
		}
		fmt.Printf("  %-18s %d\n", label+":", n)
	}

	// Quota thresholds as a fresh run would enforce them
	tracker := quota.NewTracker(
		cfg.RateLimit.RequestsPerMinute,
		cfg.RateLimit.RequestsPerDay,
		cfg.RateLimit.TokensPerMinute,
		nil,
	)
	qs := tracker.Stats()

	fmt.Println()
	fmt.Println("Configured Quota (enforced at 90% of official limits)")
	fmt.Println()
	fmt.Printf("  %-22s %d (limit %d)\n", "Requests/minute:", qs.RequestsPerMinute.Threshold, qs.RequestsPerMinute.Limit)
	fmt.Printf("  %-22s %d (limit %d)\n", "Requests/day:", qs.RequestsPerDay.Threshold, qs.RequestsPerDay.Limit)
	fmt.Printf("  %-22s %d (limit %d)\n", "Tokens/minute:", qs.TokensPerMinute.Threshold, qs.TokensPerMinute.Limit)
}
