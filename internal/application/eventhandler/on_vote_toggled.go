// Package eventhandler contains domain event handlers. They run after the
// transaction that produced the event has committed and only perform side
// effects that are safe to lose: cache invalidation, live fan-out, logging.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/prepwise/progression-engine/internal/application/query"
	"github.com/prepwise/progression-engine/internal/domain/roadmap"
	"github.com/prepwise/progression-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ROADMAP CHANGED HANDLER
// VoteToggled: broadcast the committed count and drop the cached feed.
// IdeaCreated: drop the cached feed.
// ═══════════════════════════════════════════════════════════════════════════

// RoadmapChangedConfig configures the handler.
type RoadmapChangedConfig struct {
	// LiveFeed enables the pub/sub broadcast.
	LiveFeed bool

	// Timeout bounds each side effect.
	Timeout time.Duration
}

// DefaultRoadmapChangedConfig returns the defaults.
func DefaultRoadmapChangedConfig() RoadmapChangedConfig {
	return RoadmapChangedConfig{LiveFeed: true, Timeout: 2 * time.Second}
}

// OnRoadmapChangedHandler reacts to roadmap events.
type OnRoadmapChangedHandler struct {
	liveFeed  roadmap.LiveFeed
	feedCache query.FeedCache
	logger    *slog.Logger
	config    RoadmapChangedConfig
}

// NewOnRoadmapChangedHandler creates the handler. liveFeed and feedCache may be nil.
func NewOnRoadmapChangedHandler(
	liveFeed roadmap.LiveFeed,
	feedCache query.FeedCache,
	logger *slog.Logger,
	config RoadmapChangedConfig,
) *OnRoadmapChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRoadmapChangedConfig().Timeout
	}
	return &OnRoadmapChangedHandler{
		liveFeed:  liveFeed,
		feedCache: feedCache,
		logger:    logger.With("handler", "on_roadmap_changed"),
		config:    config,
	}
}

// Handle implements shared.EventHandler.
func (h *OnRoadmapChangedHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	switch e := event.(type) {
	case shared.VoteToggledEvent:
		h.invalidate(ctx)
		if h.config.LiveFeed && h.liveFeed != nil {
			update := roadmap.VoteUpdate{IdeaID: e.AggregateID(), VoteCount: e.VoteCount, At: e.OccurredAt()}
			if err := h.liveFeed.Publish(ctx, update); err != nil {
				h.logger.Warn("live feed publish failed", "idea_id", update.IdeaID, "error", err)
				return err
			}
		}
	case shared.IdeaCreatedEvent:
		h.invalidate(ctx)
	default:
		h.logger.Warn("unexpected event", "event_type", event.EventType())
	}
	return nil
}

func (h *OnRoadmapChangedHandler) invalidate(ctx context.Context) {
	if h.feedCache == nil {
		return
	}
	if err := h.feedCache.InvalidateFeed(ctx); err != nil {
		h.logger.Warn("feed cache invalidation failed", "error", err)
	}
}

// Register subscribes the handler to the events it handles.
func (h *OnRoadmapChangedHandler) Register(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventVoteToggled, h.Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventIdeaCreated, h.Handle)
}
