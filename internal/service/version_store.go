package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/coauthor/internal/model"
	appErr "github.com/xxxsen/coauthor/internal/pkg/errors"
	"github.com/xxxsen/coauthor/internal/pkg/timeutil"
)

const initialVersionNote = "Initial version"

// VersionStore owns the append-only version log of every article.
type VersionStore struct {
	articles ArticleStore
	users    UserDirectory
}

func NewVersionStore(articles ArticleStore, users UserDirectory) *VersionStore {
	return &VersionStore{articles: articles, users: users}
}

func (s *VersionStore) CreateArticle(ctx context.Context, title, content string, authorID int64, isPublic bool) (*model.Article, *model.ArticleVersion, error) {
	now := timeutil.Now()
	article := &model.Article{
		Title:          title,
		Content:        content,
		IsPublic:       isPublic,
		AuthorID:       authorID,
		CurrentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	version := &model.ArticleVersion{
		VersionNumber: 1,
		UserID:        authorID,
		Title:         title,
		Content:       content,
		Note:          initialVersionNote,
		CreatedAt:     now,
	}
	if err := s.articles.CreateArticle(ctx, article, version); err != nil {
		return nil, nil, fmt.Errorf("create article: %w", err)
	}
	s.attachUserName(ctx, version)
	return article, version, nil
}

func (s *VersionStore) GetArticle(ctx context.Context, articleID int64) (*model.Article, error) {
	return s.articles.GetArticle(ctx, articleID)
}

func (s *VersionStore) ListArticles(ctx context.Context, userID int64, publicOnly bool) ([]model.Article, error) {
	if publicOnly {
		return s.articles.ListPublicArticles(ctx)
	}
	return s.articles.ListArticlesByMember(ctx, userID)
}

func (s *VersionStore) GetVersion(ctx context.Context, articleID int64, versionNumber int) (*model.ArticleVersion, error) {
	if versionNumber < 1 {
		return nil, appErr.ErrNotFound
	}
	version, err := s.articles.GetVersion(ctx, articleID, versionNumber)
	if err != nil {
		return nil, err
	}
	s.attachUserName(ctx, version)
	return version, nil
}

// ListVersions returns the log in ascending version order as of the call.
func (s *VersionStore) ListVersions(ctx context.Context, articleID int64) ([]model.ArticleVersion, error) {
	if _, err := s.articles.GetArticle(ctx, articleID); err != nil {
		return nil, err
	}
	versions, err := s.articles.ListVersions(ctx, articleID)
	if err != nil {
		return nil, err
	}
	s.attachUserNames(ctx, versions)
	return versions, nil
}

// AppendVersion is the only mutation of an existing article.
func (s *VersionStore) AppendVersion(ctx context.Context, in model.VersionAppend) (*model.ArticleVersion, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = timeutil.Now()
	}
	version, err := s.articles.AppendVersion(ctx, in)
	if err != nil {
		return nil, err
	}
	s.attachUserName(ctx, version)
	return version, nil
}

// Restore appends a copy of an older version's content on top of the log.
// The title stays as it currently is.
func (s *VersionStore) Restore(ctx context.Context, articleID int64, targetVersion int, authorID int64) (*model.ArticleVersion, error) {
	target, err := s.GetVersion(ctx, articleID, targetVersion)
	if err != nil {
		return nil, err
	}
	article, err := s.articles.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return s.AppendVersion(ctx, model.VersionAppend{
		ArticleID:       articleID,
		ExpectedVersion: article.CurrentVersion,
		AuthorID:        authorID,
		Title:           article.Title,
		Content:         target.Content,
		Note:            fmt.Sprintf("Restored from version %d", targetVersion),
	})
}

func (s *VersionStore) attachUserName(ctx context.Context, version *model.ArticleVersion) {
	if version == nil || s.users == nil {
		return
	}
	if user, err := s.users.GetByID(ctx, version.UserID); err == nil {
		version.UserName = user.Username
	}
}

func (s *VersionStore) attachUserNames(ctx context.Context, versions []model.ArticleVersion) {
	if len(versions) == 0 || s.users == nil {
		return
	}
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, v := range versions {
		if _, ok := seen[v.UserID]; ok {
			continue
		}
		seen[v.UserID] = struct{}{}
		ids = append(ids, v.UserID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	for i := range versions {
		versions[i].UserName = names[versions[i].UserID]
	}
}
