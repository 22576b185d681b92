package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coauthor/internal/config"
	"github.com/xxxsen/coauthor/internal/db"
	"github.com/xxxsen/coauthor/internal/identity"
	"github.com/xxxsen/coauthor/internal/job"
	"github.com/xxxsen/coauthor/internal/model"
	"github.com/xxxsen/coauthor/internal/repo"
	"github.com/xxxsen/coauthor/internal/repo/memory"
	"github.com/xxxsen/coauthor/internal/service"
)

type stores struct {
	articles      service.ArticleStore
	collaborators service.CollaboratorStore
	users         service.UserDirectory
	checker       job.ConsistencyChecker

	userByName func(ctx context.Context, username string) (*model.User, error)
	createUser func(ctx context.Context, user *model.User) error
	conn       *sql.DB
}

func (s *stores) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func openStores(cfg *config.Config) (*stores, error) {
	var out *stores
	switch cfg.Database.Driver {
	case config.DriverMemory:
		store := memory.New()
		for _, seed := range cfg.SeedUsers {
			user, err := store.AddUser(model.User{Username: seed.Username, Email: seed.Email})
			if err != nil {
				return nil, fmt.Errorf("seed user %s: %w", seed.Username, err)
			}
			logutil.GetLogger(context.Background()).Info("seed user added",
				zap.String("username", user.Username),
				zap.Int64("user_id", user.ID),
			)
		}
		out = &stores{
			articles:      store,
			collaborators: store,
			users:         store,
			checker:       store,
			userByName:    store.GetByUsername,
			createUser: func(ctx context.Context, user *model.User) error {
				added, err := store.AddUser(*user)
				if err != nil {
					return err
				}
				*user = *added
				return nil
			},
		}
	case config.DriverPostgres:
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		articles := repo.NewArticleRepo(conn)
		users := repo.NewUserRepo(conn)
		out = &stores{
			articles:      articles,
			collaborators: repo.NewCollaboratorRepo(conn),
			users:         users,
			checker:       articles,
			userByName:    users.GetByUsername,
			createUser:    users.Create,
			conn:          conn,
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	out.users = identity.WrapLruCache(out.users, cfg.UserCache.Size, time.Duration(cfg.UserCache.TTLSeconds)*time.Second)
	return out, nil
}
