// Package notify carries article change events to the notification
// collaborator.
package notify

import (
	"context"
	"time"
)

const (
	EventArticleCreated      = "article.created"
	EventVersionAppended     = "article.version_appended"
	EventArticleRestored     = "article.restored"
	EventCollaboratorAdded   = "collaborator.added"
	EventCollaboratorRemoved = "collaborator.removed"
)

type Event struct {
	Type         string    `json:"type"`
	ArticleID    int64     `json:"article_id"`
	ArticleTitle string    `json:"article_title"`
	ActorID      int64     `json:"actor_id"`
	Version      int       `json:"version,omitempty"`
	TargetUserID int64     `json:"target_user_id,omitempty"`
	Recipients   []int64   `json:"recipients"`
	CreatedAt    time.Time `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}

func (noopPublisher) Close() error {
	return nil
}
