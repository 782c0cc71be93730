// Package repository persists posts, profiles, and extracted events in
// SQLite.
//
// The store covers three concerns:
//
//   - The post lifecycle: fetching unprocessed posts with their profile and
//     image paths, flipping the processed flag, and counting extraction
//     attempts.
//   - Event persistence: inserting validated events together with their
//     category and tag links. Categories are created on first use; the
//     lookup-or-create is safe against concurrent creation races.
//   - Reset tooling: clearing processed flags and deleting extracted events
//     for full re-extraction runs.
//
// Event insertion supports two strategies selected at construction. The
// transactional strategy wraps the event row and all links in one
// commit/rollback, so a failed link aborts the whole event. The best-effort
// strategy writes the event row first and then links sequentially, logging
// and skipping individual link failures; duplicate links are treated as
// already present.
package repository
