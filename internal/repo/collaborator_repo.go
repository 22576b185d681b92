package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/coauthor/internal/model"
	"github.com/xxxsen/coauthor/internal/pkg/dbutil"
	appErr "github.com/xxxsen/coauthor/internal/pkg/errors"
)

type CollaboratorRepo struct {
	db *sql.DB
}

func NewCollaboratorRepo(db *sql.DB) *CollaboratorRepo {
	return &CollaboratorRepo{db: db}
}

func (r *CollaboratorRepo) AddCollaborator(ctx context.Context, collaborator *model.Collaborator) error {
	data := map[string]interface{}{
		"article_id": collaborator.ArticleID,
		"user_id":    collaborator.UserID,
		"created_at": collaborator.CreatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("article_collaborators", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsUniqueViolation(err) {
			return fmt.Errorf("collaborator %d on article %d: %w", collaborator.UserID, collaborator.ArticleID, appErr.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

func (r *CollaboratorRepo) RemoveCollaborator(ctx context.Context, articleID, userID int64) error {
	where := map[string]interface{}{
		"article_id": articleID,
		"user_id":    userID,
	}
	sqlStr, args, err := builder.BuildDelete("article_collaborators", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *CollaboratorRepo) IsCollaborator(ctx context.Context, articleID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM article_collaborators WHERE article_id = $1 AND user_id = $2)`,
		articleID, userID,
	).Scan(&exists)
	return exists, err
}

// ListCollaboratorIDs returns collaborators in the order they were added.
func (r *CollaboratorRepo) ListCollaboratorIDs(ctx context.Context, articleID int64) ([]int64, error) {
	where := map[string]interface{}{
		"article_id": articleID,
		"_orderby":   "created_at asc, user_id asc",
	}
	sqlStr, args, err := builder.BuildSelect("article_collaborators", where, []string{"user_id"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
