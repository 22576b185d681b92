package model

import "time"

// VersionAppend describes one compare-and-swap append to an article's log.
type VersionAppend struct {
	ArticleID       int64
	ExpectedVersion int
	AuthorID        int64
	Title           string
	Content         string
	Note            string
	// IsPublic leaves visibility untouched when nil.
	IsPublic  *bool
	CreatedAt time.Time
}

// Inconsistency is an article whose head disagrees with its version log.
type Inconsistency struct {
	ArticleID      int64 `json:"article_id"`
	CurrentVersion int   `json:"current_version"`
	MaxVersion     int   `json:"max_version"`
	VersionCount   int   `json:"version_count"`
	ContentMatches bool  `json:"content_matches"`
}
