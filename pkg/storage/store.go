package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Bucket names shared with the scraping layer
const (
	BucketCaptions = "instagram-captions"
	BucketBios     = "instagram-bios"
	BucketPosts    = "instagram-posts"
)

// Store reads and writes blobs under a root directory, one subdirectory per
// bucket. Absent objects are reported as a boolean, not an error, because
// missing captions and bios are a normal condition.
type Store struct {
	root string
}

// NewStore creates a blob store rooted at the given directory
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{root: root}, nil
}

// ReadBytes returns the raw contents of an object, or ok=false when the
// object does not exist.
func (s *Store) ReadBytes(bucket, path string) ([]byte, bool) {
	full, err := s.objectPath(bucket, path)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, false
	}
	return data, true
}

// ReadText returns an object's contents as UTF-8 text, or ok=false when the
// object does not exist.
func (s *Store) ReadText(bucket, path string) (string, bool) {
	data, ok := s.ReadBytes(bucket, path)
	if !ok {
		return "", false
	}
	return string(data), true
}

// Write stores an object, creating parent directories as needed. The write
// goes through a temporary file and an atomic rename.
func (s *Store) Write(bucket, path string, data []byte) error {
	full, err := s.objectPath(bucket, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

// Root returns the storage root directory
func (s *Store) Root() string {
	return s.root
}

// objectPath resolves a bucket/path pair, rejecting traversal outside the root
func (s *Store) objectPath(bucket, path string) (string, error) {
	full := filepath.Join(s.root, bucket, filepath.FromSlash(path))
	base := filepath.Join(s.root, bucket)
	if !strings.HasPrefix(full, base+string(filepath.Separator)) && full != base {
		return "", fmt.Errorf("invalid object path: %s", path)
	}
	return full, nil
}
