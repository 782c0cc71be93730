// Package pipeline drives the batch extraction loop.
//
// The orchestrator fetches unprocessed posts oldest first, assembles each
// post's caption, bio, and images from blob storage, runs them through the
// extractor, and persists whatever the normalizer accepts. Posts older than
// the retention window are retired without an API call.
//
// The processed flag follows one rule: a post is marked processed when its
// events were stored, or when the model answered cleanly and nothing
// survived validation. Extraction and persistence failures leave the post
// pending and bump its attempt counter; posts that keep failing are retired
// at the attempt limit so they cannot burn quota forever.
//
// One bad post never takes down the batch: per-post panics are recovered
// and counted as failures.
package pipeline
