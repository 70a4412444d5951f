package redis

import (
	"context"
	"log/slog"

	"github.com/prepwise/progression-engine/internal/domain/roadmap"
)

// TopicVotes is the pub/sub topic carrying committed vote counts.
const TopicVotes = "roadmap.votes"

// LiveFeed implements roadmap.LiveFeed with Redis pub/sub. Delivery is
// at-most-once; viewers that miss an update catch up on the next feed read.
type LiveFeed struct {
	cache   *Cache
	channel string
	buffer  int
	logger  *slog.Logger
}

// NewLiveFeed creates a LiveFeed.
func NewLiveFeed(cache *Cache, logger *slog.Logger) *LiveFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveFeed{
		cache:   cache,
		channel: cache.Keys().Channel(TopicVotes),
		buffer:  32,
		logger:  logger.With("component", "live_feed"),
	}
}

// Publish broadcasts an update.
func (f *LiveFeed) Publish(ctx context.Context, u roadmap.VoteUpdate) error {
	return f.cache.Publish(ctx, f.channel, u)
}

// Subscribe streams updates until ctx is done. Slow consumers lose updates
// rather than stall the subscription.
func (f *LiveFeed) Subscribe(ctx context.Context) (<-chan roadmap.VoteUpdate, error) {
	pubsub := f.cache.Subscribe(ctx, f.channel)
	// Wait for the subscription confirmation so early publishes are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan roadmap.VoteUpdate, f.buffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var u roadmap.VoteUpdate
				if err := decode([]byte(msg.Payload), &u); err != nil {
					f.logger.Warn("dropping malformed vote update", "error", err)
					continue
				}
				select {
				case out <- u:
				default:
					f.logger.Debug("subscriber lagging, update dropped", "idea_id", u.IdeaID)
				}
			}
		}
	}()
	return out, nil
}

var _ roadmap.LiveFeed = (*LiveFeed)(nil)
