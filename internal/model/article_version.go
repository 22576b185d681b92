package model

import "time"

// ArticleVersion is a full snapshot of an article. Rows are never updated.
type ArticleVersion struct {
	ID            int64     `json:"id"`
	ArticleID     int64     `json:"article_id"`
	VersionNumber int       `json:"version_number"`
	UserID        int64     `json:"user_id"`
	UserName      string    `json:"user_name"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Note          string    `json:"note"`
	CreatedAt     time.Time `json:"created_at"`
}
