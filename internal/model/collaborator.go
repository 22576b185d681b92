package model

import "time"

type Collaborator struct {
	ArticleID int64     `json:"article_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
