package repository

import "time"

// Profile is a scraped account, read-only from the pipeline's perspective
type Profile struct {
	ID          string
	Username    string
	Bio         string
	BioFilePath string
	SchoolID    string
}

// Post is one scraped source unit awaiting extraction
type Post struct {
	ID          string
	Shortcode   string
	CaptionPath string
	PostedAt    time.Time
	Processed   bool
	Attempts    int
	Profile     Profile
	ImagePaths  []string
}
