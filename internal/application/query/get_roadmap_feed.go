package query

import (
	"context"
	"fmt"
	"time"

	"github.com/prepwise/progression-engine/internal/domain/roadmap"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ROADMAP FEED QUERY
// Ideas ordered by (vote_count desc, created_at desc) plus the viewer's upvotes.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultFeedLimit caps the feed when the caller gives no limit.
const DefaultFeedLimit = 100

// GetRoadmapFeedQuery parameters.
type GetRoadmapFeedQuery struct {
	// ViewerID is optional; anonymous viewers get no upvote flags.
	ViewerID string
	Limit    int
}

// IdeaDTO is one idea in the feed.
type IdeaDTO struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Audience     string    `json:"audience"`
	Status       string    `json:"status"`
	CreatedByUID string    `json:"created_by_uid"`
	VoteCount    int       `json:"vote_count"`
	CreatedAt    time.Time `json:"created_at"`
	Upvoted      bool      `json:"upvoted"`
}

// ToIdeaDTO converts a domain idea.
func ToIdeaDTO(i *roadmap.Idea) IdeaDTO {
	return IdeaDTO{
		ID:           i.ID,
		Title:        i.Title,
		Description:  i.Description,
		Audience:     string(i.Audience),
		Status:       string(i.Status),
		CreatedByUID: i.CreatedByUID.String(),
		VoteCount:    i.VoteCount,
		CreatedAt:    i.CreatedAt,
	}
}

// FeedDTO is the feed returned to clients.
type FeedDTO struct {
	Ideas   []IdeaDTO       `json:"ideas"`
	Upvoted map[string]bool `json:"upvoted"`
}

// FeedCache stores the viewer-independent part of the feed.
type FeedCache interface {
	GetFeed(ctx context.Context, limit int) ([]IdeaDTO, bool, error)
	SetFeed(ctx context.Context, limit int, ideas []IdeaDTO) error
	InvalidateFeed(ctx context.Context) error
}

// GetRoadmapFeedHandler handles GetRoadmapFeedQuery.
type GetRoadmapFeedHandler struct {
	repo  roadmap.Repository
	cache FeedCache
	log   *logger.Logger
}

// NewGetRoadmapFeedHandler creates a new GetRoadmapFeedHandler. cache may be nil.
func NewGetRoadmapFeedHandler(repo roadmap.Repository, cache FeedCache, log *logger.Logger) *GetRoadmapFeedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetRoadmapFeedHandler{repo: repo, cache: cache, log: log.With(logger.Component("roadmap_feed"))}
}

// Handle executes the query.
func (h *GetRoadmapFeedHandler) Handle(ctx context.Context, q GetRoadmapFeedQuery) (*FeedDTO, error) {
	limit := q.Limit
	if limit <= 0 || limit > DefaultFeedLimit {
		limit = DefaultFeedLimit
	}

	ideas, err := h.ideas(ctx, limit)
	if err != nil {
		return nil, err
	}

	upvoted := map[string]bool{}
	if viewer, err := shared.NewUserID(q.ViewerID); err == nil {
		upvoted, err = h.repo.UpvotedBy(ctx, viewer)
		if err != nil {
			return nil, fmt.Errorf("get_roadmap_feed: failed to load upvotes: %w", err)
		}
	}

	out := make([]IdeaDTO, len(ideas))
	for i, idea := range ideas {
		idea.Upvoted = upvoted[idea.ID]
		out[i] = idea
	}
	return &FeedDTO{Ideas: out, Upvoted: upvoted}, nil
}

func (h *GetRoadmapFeedHandler) ideas(ctx context.Context, limit int) ([]IdeaDTO, error) {
	if h.cache != nil {
		cached, ok, err := h.cache.GetFeed(ctx, limit)
		if err != nil {
			h.log.Warn("feed cache read failed", logger.Err(err))
		} else if ok {
			return cached, nil
		}
	}

	list, err := h.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get_roadmap_feed: %w", err)
	}
	ideas := make([]IdeaDTO, 0, len(list))
	for _, idea := range list {
		ideas = append(ideas, ToIdeaDTO(idea))
	}

	if h.cache != nil {
		if err := h.cache.SetFeed(ctx, limit, ideas); err != nil {
			h.log.Warn("feed cache write failed", logger.Err(err))
		}
	}
	return ideas, nil
}
