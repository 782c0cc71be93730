package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"igevents/pkg/inference"
	"igevents/pkg/logger"
	"igevents/pkg/pipeline"
	"igevents/pkg/quota"
	"igevents/pkg/repository"
	"igevents/pkg/storage"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [batch-size]",
	Short: "Process unprocessed posts through event extraction",
	Long: `Process unprocessed posts through event extraction.

Each post's caption, profile bio, and up to three images are sent to the
model. Extracted events are validated, normalized, and stored with their
categories and tags. Posts are marked processed when their events are
stored or when they verifiably contain none.

An optional batch size limits how many posts one run picks up; without it
the configured batch size applies, and zero means all pending posts.`,
	Example: `  # Process all pending posts
  igevents run

  # Process at most 50 posts
  igevents run 50`,
	Args: cobra.MaximumNArgs(1),
	Run:  runExtraction,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runExtraction(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Provide an API key via IGEVENTS_API_KEY or 'igevents auth set'.")
		os.Exit(1)
	}
	initLogging(cfg)
	log := logger.GetLogger()

	batchSize := cfg.Extraction.BatchSize
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			fmt.Fprintf(os.Stderr, "Invalid batch size: %s\n", args[0])
			os.Exit(1)
		}
		batchSize = n
	}

	store, err := repository.Open(cfg.Database.Path, cfg.Database.Transactional, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer store.Close()

	blobs, err := storage.NewStore(cfg.Storage.Root)
	if err != nil {
		log.WithError(err).Fatal("failed to open blob storage")
	}

	tracker := quota.NewTracker(
		cfg.RateLimit.RequestsPerMinute,
		cfg.RateLimit.RequestsPerDay,
		cfg.RateLimit.TokensPerMinute,
		log,
	)

	client := inference.NewClient(cfg.Provider.Endpoint, cfg.Provider.APIKey, 120*time.Second, log)
	gateway := inference.NewGateway(
		client, tracker,
		cfg.Provider.Model,
		cfg.Extraction.Temperature,
		cfg.Extraction.MaxTokens,
		log,
	)

	orchestrator := pipeline.NewOrchestrator(store, store, gateway, blobs, tracker, pipeline.Options{
		RetentionDays: cfg.Extraction.RetentionDays,
		MaxAttempts:   cfg.Extraction.MaxAttempts,
		HorizonDays:   cfg.Extraction.HorizonDays,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("version", version).Info("igevents starting")

	summary, err := orchestrator.RunBatch(ctx, batchSize)
	if err != nil && err != context.Canceled {
		log.WithError(err).Error("batch run failed")
		os.Exit(1)
	}

	fmt.Printf("Posts:  %d seen, %d processed, %d skipped, %d failed\n",
		summary.PostsSeen, summary.PostsProcessed, summary.PostsSkipped, summary.PostsFailed)
	fmt.Printf("Events: %d stored, %d dropped\n",
		summary.EventsInserted, summary.EventsDropped)
}
