// Package fetcher deduplicates and caches GitHub lookups shared between
// analyses, such as concurrent web requests for the same user.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"ghanalyzer/internal/data/models"

	"golang.org/x/sync/singleflight"
)

// Source is the lookup surface being wrapped, normally *github.Client.
type Source interface {
	GetUser(ctx context.Context, username string) (*models.UserProfile, error)
	ListRepos(ctx context.Context, username string) ([]models.Repository, error)
	GetLanguages(ctx context.Context, owner, repo string) (map[string]int64, error)
}

// Fetcher implements Source on top of another Source. Concurrent identical
// lookups share one request; successful results are cached for the TTL.
// Errors are never cached.
type Fetcher struct {
	source Source
	group  singleflight.Group
	cache  *Cache
}

type Option func(*config)

type config struct {
	now func() time.Time
}

// WithClock replaces time.Now for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

func NewFetcher(source Source, ttl time.Duration, opts ...Option) (*Fetcher, error) {
	if source == nil {
		return nil, fmt.Errorf("NewFetcher: nil source")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("NewFetcher: ttl must be > 0, got %s", ttl)
	}
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Fetcher{source: source, cache: NewCache(ttl, cfg.now)}, nil
}

func (f *Fetcher) Cache() *Cache {
	return f.cache
}

func (f *Fetcher) GetUser(ctx context.Context, username string) (*models.UserProfile, error) {
	p, err := fetch(ctx, f, makeFlightKey("user", username), func(ctx context.Context) (*models.UserProfile, error) {
		return f.source.GetUser(ctx, username)
	})
	if err != nil || p == nil {
		return p, err
	}
	cp := *p
	return &cp, nil
}

func (f *Fetcher) ListRepos(ctx context.Context, username string) ([]models.Repository, error) {
	repos, err := fetch(ctx, f, makeFlightKey("repos", username), func(ctx context.Context) ([]models.Repository, error) {
		return f.source.ListRepos(ctx, username)
	})
	return slices.Clone(repos), err
}

func (f *Fetcher) GetLanguages(ctx context.Context, owner, repo string) (map[string]int64, error) {
	langs, err := fetch(ctx, f, makeFlightKey("languages", owner+"/"+repo), func(ctx context.Context) (map[string]int64, error) {
		return f.source.GetLanguages(ctx, owner, repo)
	})
	return maps.Clone(langs), err
}

// fetch serves key from the cache or runs load once for all concurrent
// callers. A caller whose ctx ends stops waiting. The shared load runs on the
// context of the caller that started it; when that context ends first, the
// remaining callers drop the flight and load again on their own context.
func fetch[T any](ctx context.Context, f *Fetcher, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		return zero, fmt.Errorf("fetch %s: nil context", key)
	}

	for {
		if v, ok := f.cache.Get(key); ok {
			return v.(T), nil
		}

		ch := f.group.DoChan(key, func() (any, error) {
			v, err := load(ctx)
			if err != nil {
				return nil, err
			}
			f.cache.Set(key, v)
			return v, nil
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return zero, ctx.Err()
		}

		if res.Err == nil {
			return res.Val.(T), nil
		}
		if ctx.Err() == nil && isContextErr(res.Err) {
			// Another caller's context ended the shared load.
			f.group.Forget(key)
			continue
		}
		return zero, res.Err
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// makeFlightKey is case-insensitive like GitHub logins and repository names.
func makeFlightKey(kind, id string) string {
	return kind + ":" + strings.ToLower(strings.TrimSpace(id))
}
