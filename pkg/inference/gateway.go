package inference

import (
	"context"
	"encoding/json"
	"time"

	apierrors "igevents/pkg/errors"
	"igevents/pkg/events"
	"igevents/pkg/logger"
	"igevents/pkg/quota"
)

const (
	// maxAttempts caps throttling retries per extraction
	maxAttempts = 3

	// defaultRetryAfter is the backoff applied when a throttling response
	// carries no usable Retry-After value
	defaultRetryAfter = 60 * time.Second
)

// Gateway wraps the inference call with quota admission control, structured
// output constraints, and a two-tier retry policy: throttling responses are
// retried with server-directed or default backoff, everything else fails
// fast for the affected post.
type Gateway struct {
	client      *Client
	tracker     *quota.Tracker
	estimator   quota.Estimator
	model       string
	temperature float64
	maxTokens   int
	logger      logger.Logger

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewGateway creates a gateway around the given client and tracker
func NewGateway(client *Client, tracker *quota.Tracker, model string, temperature float64, maxTokens int, log logger.Logger) *Gateway {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Gateway{
		client:      client,
		tracker:     tracker,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      log,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Extract runs one post through the model and returns its raw extraction.
// A nil result is a normal outcome, not an error: it covers quota refusal,
// exhausted throttling retries, hard provider errors, and malformed output.
func (g *Gateway) Extract(ctx context.Context, req *Request) *events.RawExtraction {
	messages, texts, imageCount := g.buildMessages(req)

	estimated := g.estimator.Estimate(texts, imageCount)
	if !g.tracker.Admit(estimated) {
		g.logger.WarnWithFields("request refused by quota tracker, skipping", map[string]interface{}{
			"username":         req.Username,
			"estimated_tokens": estimated,
		})
		return nil
	}

	chatReq := &ChatRequest{
		Model:    g.model,
		Messages: messages,
		ResponseFormat: &ResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchema{
				Name:   "event_extraction",
				Schema: extractionSchema,
			},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		g.logger.DebugWithFields("making inference request", map[string]interface{}{
			"attempt":  attempt,
			"username": req.Username,
		})

		resp, err := g.client.ChatCompletion(ctx, chatReq)
		if err != nil {
			if apierrors.IsRateLimit(err) {
				wait := defaultRetryAfter
				if s := apierrors.RetryAfterSeconds(err); s > 0 {
					wait = time.Duration(s) * time.Second
				}
				g.logger.WarnWithFields("throttled by provider", map[string]interface{}{
					"attempt": attempt,
					"wait":    wait,
				})
				if attempt < maxAttempts {
					g.sleep(wait)
					continue
				}
				g.logger.Error("throttling retries exhausted")
				return nil
			}

			// Hard errors (auth, malformed request, 5xx) are not
			// improved by retrying.
			g.logger.WithError(err).Error("inference request failed")
			return nil
		}

		if resp.Usage != nil {
			g.tracker.RecordActual(resp.Usage.TotalTokens)
		}

		if len(resp.Choices) == 0 {
			g.logger.Error("inference response contained no choices")
			return nil
		}

		var raw events.RawExtraction
		if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &raw); err != nil {
			g.logger.WithError(err).Error("model output was not valid extraction JSON")
			return nil
		}

		g.logger.InfoWithFields("extraction succeeded", map[string]interface{}{
			"username": req.Username,
			"events":   len(raw.Events),
		})
		return &raw
	}

	return nil
}

// buildMessages assembles the system prompt and the multi-modal user
// message, returning the text parts and image count for token estimation.
func (g *Gateway) buildMessages(req *Request) ([]Message, []string, int) {
	bio := req.Bio
	if bio == "" {
		bio = "No bio available"
	}
	caption := req.Caption
	if caption == "" {
		caption = "No caption available"
	}

	text := "Instagram Profile: @" + req.Username + "\n\nBio: " + bio + "\n\nPost Caption: " + caption

	parts := []ContentPart{{Type: "text", Text: text}}
	images := req.Images
	if len(images) > 3 {
		images = images[:3]
	}
	for _, img := range images {
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + img},
		})
	}

	prompt := systemPrompt(g.now())
	messages := []Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: parts},
	}

	return messages, []string{prompt, text}, len(images)
}
