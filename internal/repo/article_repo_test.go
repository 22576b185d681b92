package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/coauthor/internal/model"
	appErr "github.com/xxxsen/coauthor/internal/pkg/errors"
	"github.com/xxxsen/coauthor/internal/pkg/timeutil"
	"github.com/xxxsen/coauthor/internal/repo"
	"github.com/xxxsen/coauthor/internal/testutil"
)

func createUser(t *testing.T, db *sql.DB, name string) *model.User {
	t.Helper()
	user := &model.User{Username: name, Email: name + "@example.com", CreatedAt: timeutil.Now()}
	require.NoError(t, repo.NewUserRepo(db).Create(context.Background(), user))
	return user
}

func createArticle(t *testing.T, articles *repo.ArticleRepo, authorID int64, content string) *model.Article {
	t.Helper()
	now := timeutil.Now()
	article := &model.Article{
		Title:          "Draft",
		Content:        content,
		AuthorID:       authorID,
		CurrentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	first := &model.ArticleVersion{
		VersionNumber: 1,
		UserID:        authorID,
		Title:         article.Title,
		Content:       content,
		Note:          "Initial version",
		CreatedAt:     now,
	}
	require.NoError(t, articles.CreateArticle(context.Background(), article, first))
	require.NotZero(t, article.ID)
	require.Equal(t, article.ID, first.ArticleID)
	return article
}

func TestArticleRepoAppendVersionCAS(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	articles := repo.NewArticleRepo(db)
	article := createArticle(t, articles, alice.ID, "hello")

	public := true
	v2, err := articles.AppendVersion(ctx, model.VersionAppend{
		ArticleID:       article.ID,
		ExpectedVersion: 1,
		AuthorID:        alice.ID,
		Title:           "Draft",
		Content:         "hello world",
		Note:            "Edit",
		IsPublic:        &public,
		CreatedAt:       timeutil.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, v2.VersionNumber)

	_, err = articles.AppendVersion(ctx, model.VersionAppend{
		ArticleID:       article.ID,
		ExpectedVersion: 1,
		AuthorID:        alice.ID,
		Title:           "Draft",
		Content:         "stale",
		CreatedAt:       timeutil.Now(),
	})
	require.ErrorIs(t, err, appErr.ErrVersionConflict)

	_, err = articles.AppendVersion(ctx, model.VersionAppend{ArticleID: 99999, ExpectedVersion: 1, CreatedAt: timeutil.Now()})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	head, err := articles.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	require.Equal(t, 2, head.CurrentVersion)
	require.Equal(t, "hello world", head.Content)
	require.True(t, head.IsPublic)

	versions, err := articles.ListVersions(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, 1, versions[0].VersionNumber)
	require.Equal(t, 2, versions[1].VersionNumber)

	_, err = articles.GetVersion(ctx, article.ID, 3)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	listed, err := articles.ListPublicArticles(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, article.ID, listed[0].ID)

	issues, err := articles.CheckConsistency(ctx)
	require.NoError(t, err)
	require.Empty(t, issues)
}

func TestArticleRepoConcurrentWritersSingleWinner(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	articles := repo.NewArticleRepo(db)
	article := createArticle(t, articles, alice.ID, "base")

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := articles.AppendVersion(ctx, model.VersionAppend{
				ArticleID:       article.ID,
				ExpectedVersion: 1,
				AuthorID:        alice.ID,
				Title:           "Draft",
				Content:         "racer",
				CreatedAt:       timeutil.Now(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, appErr.ErrVersionConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
	require.Equal(t, writers-1, conflicts)

	versions, err := articles.ListVersions(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
}

func TestArticleVersionsRejectUpdate(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	alice := createUser(t, db, "alice")
	article := createArticle(t, repo.NewArticleRepo(db), alice.ID, "frozen")

	_, err := db.Exec(`UPDATE article_versions SET content = 'changed' WHERE article_id = $1`, article.ID)
	require.Error(t, err)
	var pgErr *pq.Error
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, pq.ErrorCode("55000"), pgErr.Code)
}

func TestArticleRepoCheckConsistencyFindsDrift(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	articles := repo.NewArticleRepo(db)
	article := createArticle(t, articles, alice.ID, "v1")

	_, err := db.Exec(`UPDATE articles SET content = 'drifted' WHERE id = $1`, article.ID)
	require.NoError(t, err)

	issues, err := articles.CheckConsistency(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, article.ID, issues[0].ArticleID)
	require.False(t, issues[0].ContentMatches)
}
