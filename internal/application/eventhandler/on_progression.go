package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/prepwise/progression-engine/internal/application/query"
	"github.com/prepwise/progression-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESSION HANDLER
// SessionCompleted drops the cached progression view. AchievementUnlocked and
// LevelUp are logged for the notification layer, which tails these records.
// ═══════════════════════════════════════════════════════════════════════════

// OnProgressionHandler reacts to progression events.
type OnProgressionHandler struct {
	cache   query.ProgressionCache
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnProgressionHandler creates the handler. cache may be nil.
func NewOnProgressionHandler(cache query.ProgressionCache, logger *slog.Logger) *OnProgressionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnProgressionHandler{
		cache:   cache,
		logger:  logger.With("handler", "on_progression"),
		timeout: 2 * time.Second,
	}
}

// Handle implements shared.EventHandler.
func (h *OnProgressionHandler) Handle(event shared.Event) error {
	switch e := event.(type) {
	case shared.SessionCompletedEvent:
		if h.cache == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		if err := h.cache.InvalidateProgression(ctx, e.AggregateID()); err != nil {
			h.logger.Warn("progression cache invalidation failed", "user_id", e.AggregateID(), "error", err)
			return err
		}

	case shared.AchievementUnlockedEvent:
		h.logger.Info("achievement unlocked",
			"user_id", e.AggregateID(),
			"achievement_id", e.AchievementID,
			"xp_reward", e.XPReward,
		)

	case shared.LevelUpEvent:
		h.logger.Info("level up",
			"user_id", e.AggregateID(),
			"old_level", e.OldLevel,
			"new_level", e.NewLevel,
			"title", e.Title,
		)

	default:
		h.logger.Warn("unexpected event", "event_type", event.EventType())
	}
	return nil
}

// Register subscribes the handler to the events it handles.
func (h *OnProgressionHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventSessionCompleted,
		shared.EventAchievementUnlocked,
		shared.EventLevelUp,
	} {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}
