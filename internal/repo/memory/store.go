// Package memory is a process-local implementation of the article, version,
// collaborator and user stores. A single RWMutex makes AppendVersion's
// compare-and-swap atomic; readers only hold it for the copy.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/coauthor/internal/model"
	appErr "github.com/xxxsen/coauthor/internal/pkg/errors"
	"github.com/xxxsen/coauthor/internal/pkg/timeutil"
)

type Store struct {
	mu sync.RWMutex

	nextArticleID int64
	nextVersionID int64
	nextUserID    int64

	articles      map[int64]model.Article
	versions      map[int64][]model.ArticleVersion
	collaborators map[int64]map[int64]model.Collaborator
	users         map[int64]model.User
}

func New() *Store {
	return &Store{
		articles:      make(map[int64]model.Article),
		versions:      make(map[int64][]model.ArticleVersion),
		collaborators: make(map[int64]map[int64]model.Collaborator),
		users:         make(map[int64]model.User),
	}
}

// AddUser registers a user. A zero ID is assigned automatically.
func (s *Store) AddUser(user model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(user.Username) == "" {
		return nil, fmt.Errorf("username required: %w", appErr.ErrInvalid)
	}
	for _, u := range s.users {
		if u.ID == user.ID || u.Username == user.Username || (user.Email != "" && u.Email == user.Email) {
			return nil, fmt.Errorf("user %q: %w", user.Username, appErr.ErrAlreadyExists)
		}
	}
	if user.ID == 0 {
		s.nextUserID++
		for {
			if _, ok := s.users[s.nextUserID]; !ok {
				break
			}
			s.nextUserID++
		}
		user.ID = s.nextUserID
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = timeutil.Now()
	}
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) CreateArticle(ctx context.Context, article *model.Article, first *model.ArticleVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextArticleID++
	s.nextVersionID++
	article.ID = s.nextArticleID
	first.ID = s.nextVersionID
	first.ArticleID = article.ID
	s.articles[article.ID] = *article
	s.versions[article.ID] = []model.ArticleVersion{*first}
	return nil
}

func (s *Store) GetArticle(ctx context.Context, articleID int64) (*model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	article, ok := s.articles[articleID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &article, nil
}

func (s *Store) ListArticlesByMember(ctx context.Context, userID int64) ([]model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Article, 0)
	for id, article := range s.articles {
		_, isCollaborator := s.collaborators[id][userID]
		if article.AuthorID == userID || isCollaborator {
			out = append(out, article)
		}
	}
	sortArticles(out)
	return out, nil
}

func (s *Store) ListPublicArticles(ctx context.Context) ([]model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Article, 0)
	for _, article := range s.articles {
		if article.IsPublic {
			out = append(out, article)
		}
	}
	sortArticles(out)
	return out, nil
}

func (s *Store) GetVersion(ctx context.Context, articleID int64, versionNumber int) (*model.ArticleVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.versions[articleID]
	if versionNumber < 1 || versionNumber > len(log) {
		return nil, appErr.ErrNotFound
	}
	version := log[versionNumber-1]
	return &version, nil
}

func (s *Store) ListVersions(ctx context.Context, articleID int64) ([]model.ArticleVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.versions[articleID]
	out := make([]model.ArticleVersion, len(log))
	copy(out, log)
	return out, nil
}

func (s *Store) AppendVersion(ctx context.Context, in model.VersionAppend) (*model.ArticleVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[in.ArticleID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	if article.CurrentVersion != in.ExpectedVersion {
		return nil, fmt.Errorf("article %d is at version %d, got %d: %w",
			in.ArticleID, article.CurrentVersion, in.ExpectedVersion, appErr.ErrVersionConflict)
	}
	s.nextVersionID++
	version := model.ArticleVersion{
		ID:            s.nextVersionID,
		ArticleID:     in.ArticleID,
		VersionNumber: in.ExpectedVersion + 1,
		UserID:        in.AuthorID,
		Title:         in.Title,
		Content:       in.Content,
		Note:          in.Note,
		CreatedAt:     in.CreatedAt,
	}
	article.Title = in.Title
	article.Content = in.Content
	article.CurrentVersion = version.VersionNumber
	article.UpdatedAt = in.CreatedAt
	if in.IsPublic != nil {
		article.IsPublic = *in.IsPublic
	}
	s.versions[in.ArticleID] = append(s.versions[in.ArticleID], version)
	s.articles[in.ArticleID] = article
	return &version, nil
}

func (s *Store) AddCollaborator(ctx context.Context, collaborator *model.Collaborator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[collaborator.ArticleID]; !ok {
		return appErr.ErrNotFound
	}
	edges, ok := s.collaborators[collaborator.ArticleID]
	if !ok {
		edges = make(map[int64]model.Collaborator)
		s.collaborators[collaborator.ArticleID] = edges
	}
	if _, ok := edges[collaborator.UserID]; ok {
		return fmt.Errorf("collaborator %d on article %d: %w", collaborator.UserID, collaborator.ArticleID, appErr.ErrAlreadyExists)
	}
	edges[collaborator.UserID] = *collaborator
	return nil
}

func (s *Store) RemoveCollaborator(ctx context.Context, articleID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collaborators[articleID][userID]; !ok {
		return appErr.ErrNotFound
	}
	delete(s.collaborators[articleID], userID)
	return nil
}

func (s *Store) IsCollaborator(ctx context.Context, articleID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collaborators[articleID][userID]
	return ok, nil
}

func (s *Store) ListCollaboratorIDs(ctx context.Context, articleID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edges := make([]model.Collaborator, 0, len(s.collaborators[articleID]))
	for _, edge := range s.collaborators[articleID] {
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].UserID < edges[j].UserID
		}
		return edges[i].CreatedAt.Before(edges[j].CreatedAt)
	})
	ids := make([]int64, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, edge.UserID)
	}
	return ids, nil
}

func (s *Store) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &user, nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, appErr.ErrNotFound
}

// ListByIDs skips unknown ids and returns users ordered by id.
func (s *Store) ListByIDs(ctx context.Context, userIDs []int64) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(userIDs))
	seen := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if user, ok := s.users[id]; ok {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CheckConsistency(ctx context.Context) ([]model.Inconsistency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Inconsistency, 0)
	for id, article := range s.articles {
		log := s.versions[id]
		item := model.Inconsistency{
			ArticleID:      id,
			CurrentVersion: article.CurrentVersion,
			VersionCount:   len(log),
		}
		for _, v := range log {
			if v.VersionNumber > item.MaxVersion {
				item.MaxVersion = v.VersionNumber
			}
			if v.VersionNumber == article.CurrentVersion && v.Content == article.Content {
				item.ContentMatches = true
			}
		}
		if item.MaxVersion != article.CurrentVersion || item.VersionCount != article.CurrentVersion || !item.ContentMatches {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArticleID < out[j].ArticleID })
	return out, nil
}

func sortArticles(articles []model.Article) {
	sort.Slice(articles, func(i, j int) bool {
		if articles[i].UpdatedAt.Equal(articles[j].UpdatedAt) {
			return articles[i].ID > articles[j].ID
		}
		return articles[i].UpdatedAt.After(articles[j].UpdatedAt)
	})
}
