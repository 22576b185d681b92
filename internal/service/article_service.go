package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coauthor/internal/attribution"
	"github.com/xxxsen/coauthor/internal/metrics"
	"github.com/xxxsen/coauthor/internal/model"
	"github.com/xxxsen/coauthor/internal/notify"
	appErr "github.com/xxxsen/coauthor/internal/pkg/errors"
	"github.com/xxxsen/coauthor/internal/pkg/timeutil"
)

// ArticleService is the only write entry point exposed to the transport. Every
// mutation goes through VersionStore.AppendVersion, so a stale client version
// surfaces as ErrVersionConflict instead of overwriting someone else's save.
type ArticleService struct {
	versions  *VersionStore
	access    *CollaborationService
	users     UserDirectory
	publisher notify.Publisher
	metrics   metrics.Recorder
}

func NewArticleService(versions *VersionStore, access *CollaborationService, users UserDirectory, publisher notify.Publisher, recorder metrics.Recorder) *ArticleService {
	if publisher == nil {
		publisher = notify.NewNoopPublisher()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ArticleService{versions: versions, access: access, users: users, publisher: publisher, metrics: recorder}
}

type CreateInput struct {
	Title    string
	Content  string
	IsPublic bool
}

type SaveInput struct {
	ClientVersion int
	Title         string
	Content       string
	IsPublic      *bool
}

type ComposeMode string

const (
	ComposeAppend   ComposeMode = "append"
	ComposeContinue ComposeMode = "continue"
)

type ComposeInput struct {
	Content string
	Text    string
	Mode    ComposeMode
}

func (s *ArticleService) Create(ctx context.Context, callerID int64, input CreateInput) (*model.Article, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("title required: %w", appErr.ErrInvalid)
	}
	article, _, err := s.versions.CreateArticle(ctx, input.Title, input.Content, callerID, input.IsPublic)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCreate()
	logutil.GetLogger(ctx).Info("article created",
		zap.Int64("article_id", article.ID),
		zap.Int64("user_id", callerID),
	)
	s.publish(ctx, article, notify.Event{Type: notify.EventArticleCreated, ActorID: callerID, Version: 1})
	return article, nil
}

// Save appends the caller's edit on top of ClientVersion. The returned article
// is the head as committed by this save.
func (s *ArticleService) Save(ctx context.Context, articleID, callerID int64, input SaveInput) (*model.Article, *model.ArticleVersion, error) {
	article, err := s.access.Authorize(ctx, articleID, callerID, AccessWrite)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, nil, fmt.Errorf("title required: %w", appErr.ErrInvalid)
	}
	if input.ClientVersion < 1 {
		return nil, nil, fmt.Errorf("client version required: %w", appErr.ErrInvalid)
	}
	version, err := s.versions.AppendVersion(ctx, model.VersionAppend{
		ArticleID:       articleID,
		ExpectedVersion: input.ClientVersion,
		AuthorID:        callerID,
		Title:           input.Title,
		Content:         input.Content,
		Note:            fmt.Sprintf("Edit by %d", callerID),
		IsPublic:        input.IsPublic,
	})
	if err != nil {
		s.recordFailure(ctx, metrics.OpSave, articleID, callerID, input.ClientVersion, err)
		return nil, nil, err
	}
	s.metrics.RecordAppend(metrics.OpSave)

	article.Title = version.Title
	article.Content = version.Content
	article.CurrentVersion = version.VersionNumber
	article.UpdatedAt = version.CreatedAt
	if input.IsPublic != nil {
		article.IsPublic = *input.IsPublic
	}
	s.notifyMembers(ctx, article, notify.EventVersionAppended, callerID, version.VersionNumber)
	return article, version, nil
}

func (s *ArticleService) RestoreVersion(ctx context.Context, articleID, callerID int64, targetVersion int) (*model.ArticleVersion, error) {
	article, err := s.access.Authorize(ctx, articleID, callerID, AccessWrite)
	if err != nil {
		return nil, err
	}
	version, err := s.versions.Restore(ctx, articleID, targetVersion, callerID)
	if err != nil {
		s.recordFailure(ctx, metrics.OpRestore, articleID, callerID, targetVersion, err)
		return nil, err
	}
	s.metrics.RecordAppend(metrics.OpRestore)
	s.notifyMembers(ctx, article, notify.EventArticleRestored, callerID, version.VersionNumber)
	return version, nil
}

func (s *ArticleService) Get(ctx context.Context, articleID, callerID int64) (*model.Article, error) {
	return s.access.Authorize(ctx, articleID, callerID, AccessRead)
}

// List returns the caller's own and collaborating articles, or every public
// article when publicOnly is set.
func (s *ArticleService) List(ctx context.Context, callerID int64, publicOnly bool) ([]model.Article, error) {
	return s.versions.ListArticles(ctx, callerID, publicOnly)
}

func (s *ArticleService) ListVersions(ctx context.Context, articleID, callerID int64) ([]model.ArticleVersion, error) {
	if _, err := s.access.Authorize(ctx, articleID, callerID, AccessRead); err != nil {
		return nil, err
	}
	return s.versions.ListVersions(ctx, articleID)
}

func (s *ArticleService) GetVersion(ctx context.Context, articleID, callerID int64, versionNumber int) (*model.ArticleVersion, error) {
	if _, err := s.access.Authorize(ctx, articleID, callerID, AccessRead); err != nil {
		return nil, err
	}
	return s.versions.GetVersion(ctx, articleID, versionNumber)
}

// Attribution parses the current content, or versionNumber when positive.
func (s *ArticleService) Attribution(ctx context.Context, articleID, callerID int64, versionNumber int) ([]attribution.Segment, error) {
	article, err := s.access.Authorize(ctx, articleID, callerID, AccessRead)
	if err != nil {
		return nil, err
	}
	content := article.Content
	if versionNumber > 0 {
		version, err := s.versions.GetVersion(ctx, articleID, versionNumber)
		if err != nil {
			return nil, err
		}
		content = version.Content
	}
	identities, err := s.access.Identities(ctx, article)
	if err != nil {
		return nil, err
	}
	segments := attribution.Segments(content, identities)
	if segments == nil {
		segments = []attribution.Segment{}
	}
	return segments, nil
}

// Compose applies an editor composition helper on behalf of the caller.
// Nothing is persisted.
func (s *ArticleService) Compose(ctx context.Context, callerID int64, input ComposeInput) (string, error) {
	user, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return "", err
	}
	now := timeutil.Now()
	switch input.Mode {
	case ComposeAppend, "":
		if strings.TrimSpace(input.Text) == "" {
			return "", fmt.Errorf("text required: %w", appErr.ErrInvalid)
		}
		return attribution.AppendBlock(input.Content, user.Username, input.Text, now), nil
	case ComposeContinue:
		return attribution.ContinueFromLast(input.Content, user.Username, now), nil
	default:
		return "", fmt.Errorf("unknown compose mode %q: %w", input.Mode, appErr.ErrInvalid)
	}
}

func (s *ArticleService) recordFailure(ctx context.Context, op string, articleID, callerID int64, version int, err error) {
	if !appErr.IsVersionConflict(err) {
		return
	}
	s.metrics.RecordConflict(op)
	logutil.GetLogger(ctx).Info("stale version rejected",
		zap.String("op", op),
		zap.Int64("article_id", articleID),
		zap.Int64("user_id", callerID),
		zap.Int("version", version),
	)
}

func (s *ArticleService) notifyMembers(ctx context.Context, article *model.Article, eventType string, actorID int64, version int) {
	recipients, err := s.access.Members(ctx, article, actorID)
	if err != nil {
		logutil.GetLogger(ctx).Warn("list members failed", zap.Int64("article_id", article.ID), zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		return
	}
	s.publish(ctx, article, notify.Event{Type: eventType, ActorID: actorID, Version: version, Recipients: recipients})
}

func (s *ArticleService) publish(ctx context.Context, article *model.Article, event notify.Event) {
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
