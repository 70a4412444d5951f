package redis

import (
	"context"
	"errors"
	"time"

	"github.com/prepwise/progression-engine/internal/application/query"
)

// ProgressionCache implements query.ProgressionCache on top of Cache.
type ProgressionCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewProgressionCache creates a new ProgressionCache. ttl <= 0 uses TTLProgression.
func NewProgressionCache(cache *Cache, ttl time.Duration) *ProgressionCache {
	if ttl <= 0 {
		ttl = TTLProgression
	}
	return &ProgressionCache{cache: cache, ttl: ttl}
}

// GetProgression returns the cached view, false on a miss.
func (p *ProgressionCache) GetProgression(ctx context.Context, userID string) (*query.ProgressionDTO, bool, error) {
	var view query.ProgressionDTO
	err := p.cache.Get(ctx, p.cache.Keys().Progression(userID), &view)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &view, true, nil
}

// SetProgression caches a view.
func (p *ProgressionCache) SetProgression(ctx context.Context, view *query.ProgressionDTO) error {
	if view == nil {
		return nil
	}
	return p.cache.Set(ctx, p.cache.Keys().Progression(view.UserID), view, p.ttl)
}

// InvalidateProgression drops a user's view.
func (p *ProgressionCache) InvalidateProgression(ctx context.Context, userID string) error {
	return p.cache.Delete(ctx, p.cache.Keys().Progression(userID))
}

// FeedCache implements query.FeedCache. Pages are keyed by limit and dropped
// together on any roadmap change.
type FeedCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewFeedCache creates a new FeedCache. ttl <= 0 uses TTLFeed.
func NewFeedCache(cache *Cache, ttl time.Duration) *FeedCache {
	if ttl <= 0 {
		ttl = TTLFeed
	}
	return &FeedCache{cache: cache, ttl: ttl}
}

// GetFeed returns a cached page, false on a miss.
func (f *FeedCache) GetFeed(ctx context.Context, limit int) ([]query.IdeaDTO, bool, error) {
	var ideas []query.IdeaDTO
	err := f.cache.Get(ctx, f.cache.Keys().Feed(limit), &ideas)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ideas, true, nil
}

// SetFeed caches a page. An empty page is cached as [] so it still hits.
func (f *FeedCache) SetFeed(ctx context.Context, limit int, ideas []query.IdeaDTO) error {
	if ideas == nil {
		ideas = []query.IdeaDTO{}
	}
	return f.cache.Set(ctx, f.cache.Keys().Feed(limit), ideas, f.ttl)
}

// InvalidateFeed drops every cached page.
func (f *FeedCache) InvalidateFeed(ctx context.Context) error {
	return f.cache.DeleteByPattern(ctx, f.cache.Keys().FeedPattern())
}

var (
	_ query.ProgressionCache = (*ProgressionCache)(nil)
	_ query.FeedCache        = (*FeedCache)(nil)
)
