package pipeline

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"igevents/pkg/events"
	"igevents/pkg/inference"
	"igevents/pkg/logger"
	"igevents/pkg/quota"
	"igevents/pkg/repository"
	"igevents/pkg/storage"
)

const (
	// maxImagesPerPost caps how many images are sent with one extraction
	maxImagesPerPost = 3

	// statsInterval is how many posts between quota usage log lines
	statsInterval = 5
)

// Summary reports the outcome of one batch run
type Summary struct {
	PostsSeen      int
	PostsProcessed int
	PostsSkipped   int
	PostsFailed    int
	EventsInserted int
	EventsDropped  int
}

// Orchestrator drives the extraction loop: fetch unprocessed posts, assemble
// their content from blob storage, run extraction, normalize and persist
// events, and maintain each post's processed flag.
type Orchestrator struct {
	posts      PostSource
	sink       EventSink
	extractor  Extractor
	blobs      BlobReader
	normalizer events.Normalizer
	tracker    *quota.Tracker
	logger     logger.Logger

	retentionDays int
	maxAttempts   int

	now func() time.Time
}

// Options configures an orchestrator
type Options struct {
	RetentionDays int
	MaxAttempts   int

	// HorizonDays bounds how far out an event start may lie; zero keeps
	// the normalizer's default.
	HorizonDays int
}

// NewOrchestrator wires the pipeline components together
func NewOrchestrator(posts PostSource, sink EventSink, extractor Extractor, blobs BlobReader, tracker *quota.Tracker, opts Options, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 30
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	var normalizer events.Normalizer
	if opts.HorizonDays > 0 {
		normalizer.Horizon = time.Duration(opts.HorizonDays) * 24 * time.Hour
	}
	return &Orchestrator{
		posts:         posts,
		sink:          sink,
		extractor:     extractor,
		blobs:         blobs,
		normalizer:    normalizer,
		tracker:       tracker,
		logger:        log,
		retentionDays: opts.RetentionDays,
		maxAttempts:   opts.MaxAttempts,
		now:           time.Now,
	}
}

// RunBatch processes up to batchSize unprocessed posts, oldest first. A
// batchSize of zero processes everything pending. The run stops early when
// the context is cancelled; the summary covers whatever completed.
func (o *Orchestrator) RunBatch(ctx context.Context, batchSize int) (Summary, error) {
	var sum Summary

	posts, err := o.posts.FetchUnprocessedPosts(ctx, batchSize)
	if err != nil {
		return sum, err
	}

	o.logger.InfoWithFields("starting extraction batch", map[string]interface{}{
		"posts": len(posts),
	})

	for i, post := range posts {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("batch interrupted, stopping")
			return sum, err
		}

		sum.PostsSeen++
		o.processPostSafe(ctx, post, &sum)

		if o.tracker != nil && (i+1)%statsInterval == 0 {
			stats := o.tracker.Stats()
			o.logger.InfoWithFields("quota usage", map[string]interface{}{
				"rpm": stats.RequestsPerMinute.Current,
				"rpd": stats.RequestsPerDay.Current,
				"tpm": stats.TokensPerMinute.Current,
			})
		}
	}

	o.logger.InfoWithFields("extraction batch finished", map[string]interface{}{
		"processed": sum.PostsProcessed,
		"skipped":   sum.PostsSkipped,
		"failed":    sum.PostsFailed,
		"events":    sum.EventsInserted,
	})
	return sum, nil
}

// processPostSafe isolates panics so one bad post cannot take down the batch
func (o *Orchestrator) processPostSafe(ctx context.Context, post repository.Post, sum *Summary) {
	defer func() {
		if r := recover(); r != nil {
			sum.PostsFailed++
			o.logger.ErrorWithFields("post processing panicked", map[string]interface{}{
				"post_id": post.ID,
				"panic":   r,
			})
		}
	}()
	o.processPost(ctx, post, sum)
}

func (o *Orchestrator) processPost(ctx context.Context, post repository.Post, sum *Summary) {
	log := o.logger.WithFields(map[string]interface{}{
		"post_id":  post.ID,
		"username": post.Profile.Username,
	})

	// Posts past the retention window are marked processed without an API
	// call; their events would be over by now anyway.
	if !post.PostedAt.IsZero() {
		cutoff := o.now().AddDate(0, 0, -o.retentionDays)
		if post.PostedAt.Before(cutoff) {
			log.Info("post outside retention window, skipping")
			if err := o.posts.MarkPostProcessed(ctx, post.ID); err != nil {
				log.WithError(err).Error("failed to mark stale post processed")
			}
			sum.PostsSkipped++
			return
		}
	}

	req := o.buildRequest(post)
	raw := o.extractor.Extract(ctx, req)
	if raw == nil {
		o.recordFailure(ctx, post, log)
		sum.PostsFailed++
		return
	}

	inserted := 0
	dropped := 0
	valid := 0
	now := o.now()
	for _, rawEvent := range raw.Events {
		ev, reason := o.normalizer.Validate(rawEvent, raw.Categories, raw.EventTags, now)
		if ev == nil {
			dropped++
			log.InfoWithFields("event dropped", map[string]interface{}{
				"event":  rawEvent.Name,
				"reason": string(reason),
			})
			continue
		}
		valid++

		o.fillLocation(ctx, ev, post.Profile.SchoolID, log)

		if o.sink.InsertEvent(ctx, ev, post.Profile.ID, post.Profile.SchoolID, post.ID, post.CaptionPath) {
			inserted++
		}
	}
	sum.EventsInserted += inserted
	sum.EventsDropped += dropped

	// A post is done when something was stored, or when the model answered
	// cleanly and normalization rejected whatever it found; re-running either
	// case would repeat the same outcome. Persistence failures leave the post
	// pending for another attempt.
	if inserted > 0 || valid == 0 {
		if err := o.posts.MarkPostProcessed(ctx, post.ID); err != nil {
			log.WithError(err).Error("failed to mark post processed")
			return
		}
		sum.PostsProcessed++
		log.InfoWithFields("post processed", map[string]interface{}{
			"inserted": inserted,
			"dropped":  dropped,
		})
		return
	}

	o.recordFailure(ctx, post, log)
	sum.PostsFailed++
}

// recordFailure bumps the attempt counter and retires posts that keep failing
func (o *Orchestrator) recordFailure(ctx context.Context, post repository.Post, log logger.Logger) {
	attempts, err := o.posts.IncrementAttempts(ctx, post.ID)
	if err != nil {
		log.WithError(err).Error("failed to record extraction attempt")
		return
	}
	if attempts >= o.maxAttempts {
		log.WarnWithFields("attempt limit reached, retiring post", map[string]interface{}{
			"attempts": attempts,
		})
		if err := o.posts.MarkPostProcessed(ctx, post.ID); err != nil {
			log.WithError(err).Error("failed to retire post")
		}
		return
	}
	log.WarnWithFields("extraction failed, will retry next run", map[string]interface{}{
		"attempts": attempts,
	})
}

// buildRequest assembles an extraction request from the post row and its
// blobs. Missing captions, bios, and images degrade to an emptier request
// rather than failing the post.
func (o *Orchestrator) buildRequest(post repository.Post) *inference.Request {
	req := &inference.Request{
		Username: post.Profile.Username,
		Bio:      post.Profile.Bio,
	}

	if req.Bio == "" && post.Profile.BioFilePath != "" {
		if bio, ok := o.blobs.ReadText(storage.BucketBios, post.Profile.BioFilePath); ok {
			req.Bio = bio
		}
	}

	if post.CaptionPath != "" {
		if caption, ok := o.blobs.ReadText(storage.BucketCaptions, post.CaptionPath); ok {
			req.Caption = caption
		}
	}

	paths := post.ImagePaths
	if len(paths) > maxImagesPerPost {
		paths = paths[:maxImagesPerPost]
	}
	for _, p := range paths {
		data, ok := o.blobs.ReadBytes(storage.BucketPosts, p)
		if !ok {
			continue
		}
		req.Images = append(req.Images, base64.StdEncoding.EncodeToString(data))
	}

	return req
}

// fillLocation copies the school's street address onto events the model
// placed at the school itself, matching the location name case-insensitively.
// Events at other venues, or without a location name, are left untouched.
func (o *Orchestrator) fillLocation(ctx context.Context, ev *events.Event, schoolID string, log logger.Logger) {
	if schoolID == "" || ev.LocationName == nil {
		return
	}
	name, address, err := o.posts.SchoolAddress(ctx, schoolID)
	if err != nil {
		log.WithError(err).Warn("school lookup failed")
		return
	}
	if address != "" && strings.EqualFold(*ev.LocationName, name) {
		ev.Address = &address
	}
}
