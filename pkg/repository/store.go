package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"igevents/pkg/events"
	"igevents/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS schools (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	address TEXT
);

CREATE TABLE IF NOT EXISTS profiles (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	bio           TEXT,
	bio_file_path TEXT,
	school_id     TEXT REFERENCES schools(id)
);

CREATE TABLE IF NOT EXISTS posts (
	id           TEXT PRIMARY KEY,
	shortcode    TEXT NOT NULL UNIQUE,
	profile_id   TEXT NOT NULL REFERENCES profiles(id),
	caption_path TEXT,
	posted_at    TIMESTAMP,
	processed    INTEGER NOT NULL DEFAULT 0,
	attempts     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS post_images (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id   TEXT NOT NULL REFERENCES posts(id),
	file_path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id             TEXT PRIMARY KEY,
	url            TEXT,
	name           TEXT NOT NULL,
	start_datetime TEXT,
	end_datetime   TEXT,
	school_id      TEXT,
	address        TEXT,
	location_name  TEXT,
	description    TEXT,
	is_all_day     INTEGER NOT NULL DEFAULT 0,
	type           TEXT NOT NULL DEFAULT 'in-person',
	status         TEXT NOT NULL DEFAULT 'active',
	profile_id     TEXT,
	post_id        TEXT,
	caption_id     TEXT
);

CREATE TABLE IF NOT EXISTS categories (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS event_categories (
	event_id    TEXT NOT NULL,
	category_id TEXT NOT NULL,
	PRIMARY KEY (event_id, category_id)
);

CREATE TABLE IF NOT EXISTS event_tags (
	event_id TEXT NOT NULL,
	tag      TEXT NOT NULL,
	PRIMARY KEY (event_id, tag)
);
`

// Store persists posts, profiles, and extracted events in SQLite. Event
// insertion runs either as a single transaction or as best-effort
// sequential writes, selected at construction.
type Store struct {
	db            *sql.DB
	transactional bool
	logger        logger.Logger
}

// Open connects to the SQLite database at path, creating the schema when
// missing. The caller should Close the store when done.
func Open(path string, transactional bool, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db, transactional: transactional, logger: log}, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for test seeding
func (s *Store) DB() *sql.DB {
	return s.db
}

// FetchUnprocessedPosts returns posts with processed=false joined with
// their profile and image paths, in insertion order. A limit of zero means
// all unprocessed posts.
func (s *Store) FetchUnprocessedPosts(ctx context.Context, limit int) ([]Post, error) {
	query := `
		SELECT p.id, p.shortcode, p.caption_path, p.posted_at, p.attempts,
		       pr.id, pr.username, pr.bio, pr.bio_file_path, pr.school_id
		FROM posts p
		JOIN profiles pr ON pr.id = p.profile_id
		WHERE p.processed = 0
		ORDER BY p.rowid`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var (
			p           Post
			captionPath sql.NullString
			postedAt    sql.NullTime
			bio         sql.NullString
			bioFilePath sql.NullString
			schoolID    sql.NullString
		)
		err := rows.Scan(
			&p.ID, &p.Shortcode, &captionPath, &postedAt, &p.Attempts,
			&p.Profile.ID, &p.Profile.Username, &bio, &bioFilePath, &schoolID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.CaptionPath = captionPath.String
		if postedAt.Valid {
			p.PostedAt = postedAt.Time
		}
		p.Profile.Bio = bio.String
		p.Profile.BioFilePath = bioFilePath.String
		p.Profile.SchoolID = schoolID.String
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	for i := range posts {
		paths, err := s.postImagePaths(ctx, posts[i].ID)
		if err != nil {
			return nil, err
		}
		posts[i].ImagePaths = paths
	}

	return posts, nil
}

func (s *Store) postImagePaths(ctx context.Context, postID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path FROM post_images WHERE post_id = ? ORDER BY id`, postID)
	if err != nil {
		return nil, fmt.Errorf("query post images: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan image path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// MarkPostProcessed flips a post's processed flag. A processed post is
// never picked up again.
func (s *Store) MarkPostProcessed(ctx context.Context, postID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE posts SET processed = 1 WHERE id = ?`, postID)
	if err != nil {
		return fmt.Errorf("mark post processed: %w", err)
	}
	return nil
}

// IncrementAttempts bumps a post's extraction attempt counter and returns
// the new count. The counter bounds repeat cost for posts whose extraction
// keeps failing.
func (s *Store) IncrementAttempts(ctx context.Context, postID string) (int, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE posts SET attempts = attempts + 1 WHERE id = ?`, postID)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	var attempts int
	err = s.db.QueryRowContext(ctx,
		`SELECT attempts FROM posts WHERE id = ?`, postID).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	return attempts, nil
}

// SchoolAddress returns the name and address for a school, or empty strings
// when the school is unknown.
func (s *Store) SchoolAddress(ctx context.Context, schoolID string) (name, address string, err error) {
	var addr sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT name, address FROM schools WHERE id = ?`, schoolID).Scan(&name, &addr)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("query school: %w", err)
	}
	return name, addr.String, nil
}

// GetOrCreateCategory looks up a category by exact name, creating it on
// first use. A lost creation race falls back to re-reading the winner's row.
func (s *Store) GetOrCreateCategory(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("lookup category: %w", err)
	}

	id = uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO categories (id, name) VALUES (?, ?)`, id, name)
	if err != nil {
		if isDuplicateErr(err) {
			err = s.db.QueryRowContext(ctx,
				`SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
			if err != nil {
				return "", fmt.Errorf("re-lookup category: %w", err)
			}
			return id, nil
		}
		return "", fmt.Errorf("create category: %w", err)
	}
	return id, nil
}

// InsertEvent writes a validated event with its category and tag links.
// It returns true when the event row itself was inserted; partial link
// failures in best-effort mode do not undo the event.
func (s *Store) InsertEvent(ctx context.Context, ev *events.Event, profileID, schoolID, postID, captionID string) bool {
	if s.transactional {
		return s.insertTransactional(ctx, ev, profileID, schoolID, postID, captionID)
	}
	return s.insertBestEffort(ctx, ev, profileID, schoolID, postID, captionID)
}

// insertTransactional wraps the whole insert in a single commit/rollback
func (s *Store) insertTransactional(ctx context.Context, ev *events.Event, profileID, schoolID, postID, captionID string) bool {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.WithError(err).Error("begin transaction failed")
		return false
	}
	defer tx.Rollback()

	eventID := uuid.NewString()
	if err := insertEventRow(ctx, tx, eventID, ev, profileID, schoolID, postID, captionID); err != nil {
		s.logger.WithError(err).ErrorWithFields("event insert failed", map[string]interface{}{
			"event": ev.Name,
		})
		return false
	}

	for _, catName := range ev.Categories {
		var catID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM categories WHERE name = ?`, catName).Scan(&catID)
		if err == sql.ErrNoRows {
			catID = uuid.NewString()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (id, name) VALUES (?, ?)`, catID, catName); err != nil {
				s.logger.WithError(err).Error("category insert failed")
				return false
			}
		} else if err != nil {
			s.logger.WithError(err).Error("category lookup failed")
			return false
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO event_categories (event_id, category_id) VALUES (?, ?)`,
			eventID, catID); err != nil {
			s.logger.WithError(err).Error("category link failed")
			return false
		}
	}

	for _, tag := range ev.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO event_tags (event_id, tag) VALUES (?, ?)`,
			eventID, tag); err != nil {
			s.logger.WithError(err).Error("tag link failed")
			return false
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.WithError(err).Error("commit failed")
		return false
	}
	return true
}

// insertBestEffort writes the event first, then links sequentially.
// Duplicate-key violations on links are benign (already linked); other link
// errors are logged for that link and the event stays inserted.
func (s *Store) insertBestEffort(ctx context.Context, ev *events.Event, profileID, schoolID, postID, captionID string) bool {
	eventID := uuid.NewString()
	if err := insertEventRow(ctx, s.db, eventID, ev, profileID, schoolID, postID, captionID); err != nil {
		s.logger.WithError(err).ErrorWithFields("event insert failed", map[string]interface{}{
			"event": ev.Name,
		})
		return false
	}

	for _, catName := range ev.Categories {
		catID, err := s.GetOrCreateCategory(ctx, catName)
		if err != nil {
			// Creation failure omits the category rather than
			// aborting the whole event.
			s.logger.WithError(err).WarnWithFields("category unavailable, omitting", map[string]interface{}{
				"category": catName,
			})
			continue
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO event_categories (event_id, category_id) VALUES (?, ?)`,
			eventID, catID)
		if err != nil && !isDuplicateErr(err) {
			s.logger.WithError(err).WarnWithFields("category link failed", map[string]interface{}{
				"category": catName,
			})
		}
	}

	for _, tag := range ev.Tags {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO event_tags (event_id, tag) VALUES (?, ?)`, eventID, tag)
		if err != nil && !isDuplicateErr(err) {
			s.logger.WithError(err).WarnWithFields("tag link failed", map[string]interface{}{
				"tag": tag,
			})
		}
	}

	return true
}

// execer abstracts *sql.DB and *sql.Tx for the shared event row insert
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertEventRow(ctx context.Context, db execer, eventID string, ev *events.Event, profileID, schoolID, postID, captionID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (id, url, name, start_datetime, end_datetime, school_id,
			address, location_name, description, is_all_day, type, status,
			profile_id, post_id, caption_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'active', ?, ?, ?)`,
		eventID,
		nullable(ev.URL),
		ev.Name,
		nullable(ev.StartDatetime),
		nullable(ev.EndDatetime),
		emptyToNull(schoolID),
		nullable(ev.Address),
		nullable(ev.LocationName),
		nullable(ev.Description),
		ev.IsAllDay,
		string(ev.Type),
		emptyToNull(profileID),
		emptyToNull(postID),
		emptyToNull(captionID),
	)
	return err
}

// ResetProcessed clears the processed flag and attempt counters on all
// posts, making them eligible for re-extraction. Reset tooling only.
func (s *Store) ResetProcessed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET processed = 0, attempts = 0 WHERE processed = 1`)
	if err != nil {
		return 0, fmt.Errorf("reset processed: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExtractedEvents removes all extracted events and their links.
// Reset tooling only.
func (s *Store) DeleteExtractedEvents(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_categories`); err != nil {
		return 0, fmt.Errorf("delete category links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM event_tags`); err != nil {
		return 0, fmt.Errorf("delete tag links: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM events`)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return deleted, nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func emptyToNull(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func isDuplicateErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
