package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coauthor/internal/attribution"
	"github.com/xxxsen/coauthor/internal/metrics"
	"github.com/xxxsen/coauthor/internal/model"
	"github.com/xxxsen/coauthor/internal/notify"
	appErr "github.com/xxxsen/coauthor/internal/pkg/errors"
	"github.com/xxxsen/coauthor/internal/pkg/timeutil"
)

type AccessLevel int

const (
	AccessRead AccessLevel = iota + 1
	AccessWrite
	AccessManage
)

func (l AccessLevel) String() string {
	switch l {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessManage:
		return "manage"
	default:
		return "unknown"
	}
}

// CollaborationService owns article membership and answers access questions.
// The owner is never stored as a collaborator but holds every privilege.
type CollaborationService struct {
	articles      ArticleStore
	collaborators CollaboratorStore
	users         UserDirectory
	publisher     notify.Publisher
	metrics       metrics.Recorder
}

func NewCollaborationService(articles ArticleStore, collaborators CollaboratorStore, users UserDirectory, publisher notify.Publisher, recorder metrics.Recorder) *CollaborationService {
	if publisher == nil {
		publisher = notify.NewNoopPublisher()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CollaborationService{articles: articles, collaborators: collaborators, users: users, publisher: publisher, metrics: recorder}
}

func (s *CollaborationService) AccessCheck(ctx context.Context, articleID, userID int64, level AccessLevel) (bool, error) {
	article, err := s.articles.GetArticle(ctx, articleID)
	if err != nil {
		return false, err
	}
	return s.allowed(ctx, article, userID, level)
}

// Authorize is AccessCheck returning ErrForbidden on denial. The article is
// handed back so callers don't read it twice.
func (s *CollaborationService) Authorize(ctx context.Context, articleID, userID int64, level AccessLevel) (*model.Article, error) {
	article, err := s.articles.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	ok, err := s.allowed(ctx, article, userID, level)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s access to article %d: %w", level, articleID, appErr.ErrForbidden)
	}
	return article, nil
}

func (s *CollaborationService) allowed(ctx context.Context, article *model.Article, userID int64, level AccessLevel) (bool, error) {
	if article.AuthorID == userID {
		return true, nil
	}
	switch level {
	case AccessManage:
		return false, nil
	case AccessRead:
		if article.IsPublic {
			return true, nil
		}
	case AccessWrite:
	default:
		return false, nil
	}
	return s.collaborators.IsCollaborator(ctx, article.ID, userID)
}

func (s *CollaborationService) AddCollaborator(ctx context.Context, articleID, requesterID, targetUserID int64) error {
	article, err := s.Authorize(ctx, articleID, requesterID, AccessManage)
	if err != nil {
		return err
	}
	if targetUserID == article.AuthorID {
		return fmt.Errorf("owner cannot be a collaborator: %w", appErr.ErrInvalid)
	}
	if _, err := s.users.GetByID(ctx, targetUserID); err != nil {
		return fmt.Errorf("collaborator %d: %w", targetUserID, err)
	}
	err = s.collaborators.AddCollaborator(ctx, &model.Collaborator{
		ArticleID: articleID,
		UserID:    targetUserID,
		CreatedAt: timeutil.Now(),
	})
	if err != nil {
		return err
	}
	s.metrics.RecordCollaboratorChange(metrics.OpAdd)
	s.publish(ctx, article, notify.Event{
		Type:         notify.EventCollaboratorAdded,
		ActorID:      requesterID,
		TargetUserID: targetUserID,
		Recipients:   []int64{targetUserID},
	})
	return nil
}

func (s *CollaborationService) RemoveCollaborator(ctx context.Context, articleID, requesterID, targetUserID int64) error {
	article, err := s.Authorize(ctx, articleID, requesterID, AccessManage)
	if err != nil {
		return err
	}
	if err := s.collaborators.RemoveCollaborator(ctx, articleID, targetUserID); err != nil {
		return err
	}
	s.metrics.RecordCollaboratorChange(metrics.OpRemove)
	s.publish(ctx, article, notify.Event{
		Type:         notify.EventCollaboratorRemoved,
		ActorID:      requesterID,
		TargetUserID: targetUserID,
		Recipients:   []int64{targetUserID},
	})
	return nil
}

func (s *CollaborationService) ListCollaborators(ctx context.Context, articleID, callerID int64) ([]model.User, error) {
	if _, err := s.Authorize(ctx, articleID, callerID, AccessRead); err != nil {
		return nil, err
	}
	ids, err := s.collaborators.ListCollaboratorIDs(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return s.users.ListByIDs(ctx, ids)
}

// Identities lists the users whose tags count as attribution in article:
// the owner first, then the collaborators.
func (s *CollaborationService) Identities(ctx context.Context, article *model.Article) ([]attribution.Identity, error) {
	ids, err := s.collaborators.ListCollaboratorIDs(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListByIDs(ctx, append([]int64{article.AuthorID}, ids...))
	if err != nil {
		return nil, err
	}
	out := make([]attribution.Identity, 0, len(users))
	for _, u := range users {
		if u.ID == article.AuthorID {
			out = append([]attribution.Identity{{ID: u.ID, Username: u.Username}}, out...)
			continue
		}
		out = append(out, attribution.Identity{ID: u.ID, Username: u.Username})
	}
	return out, nil
}

// Members returns the owner and every collaborator except the given user.
func (s *CollaborationService) Members(ctx context.Context, article *model.Article, except int64) ([]int64, error) {
	ids, err := s.collaborators.ListCollaboratorIDs(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(ids)+1)
	for _, id := range append([]int64{article.AuthorID}, ids...) {
		if id != except {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *CollaborationService) publish(ctx context.Context, article *model.Article, event notify.Event) {
	event.ArticleID = article.ID
	event.ArticleTitle = article.Title
	event.CreatedAt = timeutil.Now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		logutil.GetLogger(ctx).Warn("publish event failed",
			zap.String("type", event.Type),
			zap.Int64("article_id", article.ID),
			zap.Error(err),
		)
	}
}
