package service

import (
	"context"

	"github.com/xxxsen/coauthor/internal/model"
)

// ArticleStore persists article heads together with their version logs.
// AppendVersion must apply the version insert and the head update as one
// unit, and only when ExpectedVersion still equals the head's version.
type ArticleStore interface {
	CreateArticle(ctx context.Context, article *model.Article, first *model.ArticleVersion) error
	GetArticle(ctx context.Context, articleID int64) (*model.Article, error)
	ListArticlesByMember(ctx context.Context, userID int64) ([]model.Article, error)
	ListPublicArticles(ctx context.Context) ([]model.Article, error)
	GetVersion(ctx context.Context, articleID int64, versionNumber int) (*model.ArticleVersion, error)
	ListVersions(ctx context.Context, articleID int64) ([]model.ArticleVersion, error)
	AppendVersion(ctx context.Context, in model.VersionAppend) (*model.ArticleVersion, error)
}

type CollaboratorStore interface {
	AddCollaborator(ctx context.Context, collaborator *model.Collaborator) error
	RemoveCollaborator(ctx context.Context, articleID, userID int64) error
	IsCollaborator(ctx context.Context, articleID, userID int64) (bool, error)
	ListCollaboratorIDs(ctx context.Context, articleID int64) ([]int64, error)
}

// UserDirectory is the read side of the identity collaborator.
type UserDirectory interface {
	GetByID(ctx context.Context, userID int64) (*model.User, error)
	ListByIDs(ctx context.Context, userIDs []int64) ([]model.User, error)
}
