package pipeline

import (
	"context"

	"igevents/pkg/events"
	"igevents/pkg/inference"
	"igevents/pkg/repository"
)

// PostSource provides unprocessed posts and their lifecycle operations
type PostSource interface {
	FetchUnprocessedPosts(ctx context.Context, limit int) ([]repository.Post, error)
	MarkPostProcessed(ctx context.Context, postID string) error
	IncrementAttempts(ctx context.Context, postID string) (int, error)
	SchoolAddress(ctx context.Context, schoolID string) (name, address string, err error)
}

// EventSink persists validated events
type EventSink interface {
	InsertEvent(ctx context.Context, ev *events.Event, profileID, schoolID, postID, captionID string) bool
}

// Extractor turns one post's content into a raw extraction. A nil result
// means the post yielded nothing usable this run.
type Extractor interface {
	Extract(ctx context.Context, req *inference.Request) *events.RawExtraction
}

// BlobReader fetches post content from object storage
type BlobReader interface {
	ReadText(bucket, path string) (string, bool)
	ReadBytes(bucket, path string) ([]byte, bool)
}
