package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"igevents/pkg/repository"
)

var (
	resetPosts  bool
	resetEvents bool
	resetYes    bool
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset processed flags or delete extracted events",
	Long: `Reset processed flags or delete extracted events.

--posts clears the processed flag and attempt counters on all posts,
making them eligible for re-extraction. --events deletes all extracted
events with their category and tag links. At least one flag is required.`,
	Example: `  # Re-extract everything
  igevents reset --posts --events

  # Only clear processed flags
  igevents reset --posts`,
	Run: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetPosts, "posts", false, "clear processed flags and attempt counters")
	resetCmd.Flags().BoolVar(&resetEvents, "events", false, "delete all extracted events")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) {
	if !resetPosts && !resetEvents {
		fmt.Fprintln(os.Stderr, "Nothing to reset: pass --posts, --events, or both.")
		os.Exit(1)
	}

	cfg, err := loadConfigLenient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)

	if !resetYes {
		fmt.Print("This cannot be undone. Continue? (y/N): ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	store, err := repository.Open(cfg.Database.Path, cfg.Database.Transactional, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	if resetEvents {
		deleted, err := store.DeleteExtractedEvents(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to delete events: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted %d events\n", deleted)
	}

	if resetPosts {
		reset, err := store.ResetProcessed(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to reset posts: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Reset %d posts\n", reset)
	}
}
