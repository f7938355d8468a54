package cache

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/feedplay/internal/config"
	"github.com/sonroyaalmerol/feedplay/internal/repository"
)

// URLCache remembers what a page URL resolved to, so scrolling back to a
// row does not run the resolver again.
type URLCache struct {
	repo *repository.Repo
	ttl  time.Duration
	now  func() time.Time

	mu        sync.Mutex
	lastPrune time.Time
}

func NewURLCache(cfg *config.Config, repo *repository.Repo) *URLCache {
	return &URLCache{repo: repo, ttl: cfg.ResolveTTL, now: time.Now}
}

func (c *URLCache) Get(ctx context.Context, source string) (string, bool) {
	ru, err := c.repo.GetResolved(ctx, source)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("resolved url lookup", "source", source, "err", err)
		}
		return "", false
	}
	if c.ttl > 0 && c.now().Sub(ru.ResolvedAt) >= c.ttl {
		_ = c.repo.RemoveResolved(ctx, source)
		return "", false
	}
	return ru.URL, true
}

func (c *URLCache) Put(ctx context.Context, source, url string) error {
	if err := c.repo.PutResolved(ctx, source, url); err != nil {
		return err
	}
	return c.pruneIfDue(ctx)
}

func (c *URLCache) Forget(ctx context.Context, source string) error {
	return c.repo.RemoveResolved(ctx, source)
}

func (c *URLCache) pruneIfDue(ctx context.Context) error {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.lastPrune) < c.ttl {
		return nil
	}
	c.lastPrune = now
	n, err := c.repo.PruneResolved(ctx, now.Add(-c.ttl))
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Debug("pruned resolved urls", "count", n)
	}
	return nil
}
