package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/coauthor/internal/model"
	"github.com/xxxsen/coauthor/internal/pkg/dbutil"
	appErr "github.com/xxxsen/coauthor/internal/pkg/errors"
)

var (
	articleFields = []string{"id", "title", "content", "is_public", "author_id", "current_version", "created_at", "updated_at"}
	versionFields = []string{"id", "article_id", "version_number", "user_id", "title", "content", "note", "created_at"}
)

type ArticleRepo struct {
	db *sql.DB
}

func NewArticleRepo(db *sql.DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

// CreateArticle writes the head and its first version in one transaction.
func (r *ArticleRepo) CreateArticle(ctx context.Context, article *model.Article, first *model.ArticleVersion) error {
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO articles (title, content, is_public, author_id, current_version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			article.Title, article.Content, article.IsPublic, article.AuthorID,
			article.CurrentVersion, article.CreatedAt, article.UpdatedAt,
		).Scan(&article.ID)
		if err != nil {
			return fmt.Errorf("insert article: %w", err)
		}
		first.ArticleID = article.ID
		if err := insertVersion(ctx, tx, first); err != nil {
			return fmt.Errorf("insert first version: %w", err)
		}
		return nil
	})
}

func (r *ArticleRepo) GetArticle(ctx context.Context, articleID int64) (*model.Article, error) {
	where := map[string]interface{}{"id": articleID}
	sqlStr, args, err := builder.BuildSelect("articles", where, articleFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	article, err := scanArticle(rows)
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// ListArticlesByMember returns articles the user owns or collaborates on.
func (r *ArticleRepo) ListArticlesByMember(ctx context.Context, userID int64) ([]model.Article, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.title, a.content, a.is_public, a.author_id, a.current_version, a.created_at, a.updated_at
		FROM articles a
		WHERE a.author_id = $1
		   OR EXISTS (
			SELECT 1 FROM article_collaborators c
			WHERE c.article_id = a.id AND c.user_id = $2
		   )
		ORDER BY a.updated_at DESC, a.id DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanArticles(rows)
}

func (r *ArticleRepo) ListPublicArticles(ctx context.Context) ([]model.Article, error) {
	where := map[string]interface{}{
		"is_public": true,
		"_orderby":  "updated_at desc, id desc",
	}
	sqlStr, args, err := builder.BuildSelect("articles", where, articleFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanArticles(rows)
}

func (r *ArticleRepo) GetVersion(ctx context.Context, articleID int64, versionNumber int) (*model.ArticleVersion, error) {
	where := map[string]interface{}{
		"article_id":     articleID,
		"version_number": versionNumber,
	}
	sqlStr, args, err := builder.BuildSelect("article_versions", where, versionFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var v model.ArticleVersion
	if err := rows.Scan(&v.ID, &v.ArticleID, &v.VersionNumber, &v.UserID, &v.Title, &v.Content, &v.Note, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ArticleRepo) ListVersions(ctx context.Context, articleID int64) ([]model.ArticleVersion, error) {
	where := map[string]interface{}{
		"article_id": articleID,
		"_orderby":   "version_number asc",
	}
	sqlStr, args, err := builder.BuildSelect("article_versions", where, versionFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	versions := make([]model.ArticleVersion, 0)
	for rows.Next() {
		var v model.ArticleVersion
		if err := rows.Scan(&v.ID, &v.ArticleID, &v.VersionNumber, &v.UserID, &v.Title, &v.Content, &v.Note, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// AppendVersion moves the head from ExpectedVersion to ExpectedVersion+1 and
// inserts the matching snapshot. Nothing is written when the head has moved.
func (r *ArticleRepo) AppendVersion(ctx context.Context, in model.VersionAppend) (*model.ArticleVersion, error) {
	version := &model.ArticleVersion{
		ArticleID:     in.ArticleID,
		VersionNumber: in.ExpectedVersion + 1,
		UserID:        in.AuthorID,
		Title:         in.Title,
		Content:       in.Content,
		Note:          in.Note,
		CreatedAt:     in.CreatedAt,
	}
	err := dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		where := map[string]interface{}{
			"id":              in.ArticleID,
			"current_version": in.ExpectedVersion,
		}
		update := map[string]interface{}{
			"title":           in.Title,
			"content":         in.Content,
			"current_version": version.VersionNumber,
			"updated_at":      in.CreatedAt,
		}
		if in.IsPublic != nil {
			update["is_public"] = *in.IsPublic
		}
		sqlStr, args, err := builder.BuildUpdate("articles", where, update)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		result, err := tx.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return headMismatch(ctx, tx, in)
		}
		if err := insertVersion(ctx, tx, version); err != nil {
			if dbutil.IsUniqueViolation(err) {
				return fmt.Errorf("version %d of article %d exists: %w", version.VersionNumber, in.ArticleID, appErr.ErrVersionConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

func headMismatch(ctx context.Context, q dbutil.Querier, in model.VersionAppend) error {
	var current int
	err := q.QueryRowContext(ctx, `SELECT current_version FROM articles WHERE id = $1`, in.ArticleID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return appErr.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("article %d is at version %d, got %d: %w",
		in.ArticleID, current, in.ExpectedVersion, appErr.ErrVersionConflict)
}

func insertVersion(ctx context.Context, q dbutil.Querier, v *model.ArticleVersion) error {
	return q.QueryRowContext(ctx, `
		INSERT INTO article_versions (article_id, version_number, user_id, title, content, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		v.ArticleID, v.VersionNumber, v.UserID, v.Title, v.Content, v.Note, v.CreatedAt,
	).Scan(&v.ID)
}

// CheckConsistency reports heads whose version, log length or content
// disagree with the version log.
func (r *ArticleRepo) CheckConsistency(ctx context.Context) ([]model.Inconsistency, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id,
		       a.current_version,
		       COALESCE(MAX(v.version_number), 0) AS max_version,
		       COUNT(v.id) AS version_count,
		       COALESCE(BOOL_OR(v.version_number = a.current_version AND v.content = a.content), FALSE) AS content_matches
		FROM articles a
		LEFT JOIN article_versions v ON v.article_id = a.id
		GROUP BY a.id, a.current_version, a.content
		HAVING COALESCE(MAX(v.version_number), 0) <> a.current_version
		    OR COUNT(v.id) <> a.current_version
		    OR NOT COALESCE(BOOL_OR(v.version_number = a.current_version AND v.content = a.content), FALSE)
		ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]model.Inconsistency, 0)
	for rows.Next() {
		var item model.Inconsistency
		if err := rows.Scan(&item.ArticleID, &item.CurrentVersion, &item.MaxVersion, &item.VersionCount, &item.ContentMatches); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanArticle(rows *sql.Rows) (model.Article, error) {
	var a model.Article
	err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.IsPublic, &a.AuthorID, &a.CurrentVersion, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanArticles(rows *sql.Rows) ([]model.Article, error) {
	articles := make([]model.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
