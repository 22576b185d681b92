package identity

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coauthor/internal/model"
)

// Directory resolves user ids to identities.
type Directory interface {
	GetByID(ctx context.Context, userID int64) (*model.User, error)
	ListByIDs(ctx context.Context, userIDs []int64) ([]model.User, error)
}

// WrapLruCache returns a Directory that caches successful lookups. Misses
// and errors are never cached.
func WrapLruCache(next Directory, size int, ttl time.Duration) Directory {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruDirectory{
		next:  next,
		cache: expirable.NewLRU[int64, model.User](size, nil, ttl),
	}
}

type lruDirectory struct {
	next  Directory
	cache *expirable.LRU[int64, model.User]
}

func (l *lruDirectory) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	if cached, ok := l.cache.Get(userID); ok {
		logutil.GetLogger(ctx).Debug("user cache hit", zap.Int64("user_id", userID))
		user := cached
		return &user, nil
	}
	user, err := l.next.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	l.cache.Add(userID, *user)
	return user, nil
}

func (l *lruDirectory) ListByIDs(ctx context.Context, userIDs []int64) ([]model.User, error) {
	out := make([]model.User, 0, len(userIDs))
	seen := make(map[int64]struct{}, len(userIDs))
	missing := make([]int64, 0)
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if cached, ok := l.cache.Get(id); ok {
			out = append(out, cached)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) > 0 {
		loaded, err := l.next.ListByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, user := range loaded {
			l.cache.Add(user.ID, user)
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
