package progression

import (
	"context"
	"time"

	"github.com/prepwise/progression-engine/internal/domain/shared"
)

// Profile is the progression view of a user record.
type Profile struct {
	UserID    shared.UserID
	State     State
	UpdatedAt time.Time
}

// Session is a persisted interview session.
// RewardedAt is nil until the XP reward for the session has been applied.
type Session struct {
	ID              string
	UserID          shared.UserID
	Score           *float64
	DurationMinutes int
	CompletedAt     time.Time
	RewardedAt      *time.Time
	Reward          *XPResult
}

// IsRewarded reports whether the reward was already applied.
func (s *Session) IsRewarded() bool {
	return s.RewardedAt != nil
}

// Record converts the session into aggregator input.
func (s *Session) Record() SessionRecord {
	return SessionRecord{Score: s.Score, DurationMinutes: s.DurationMinutes, CompletedAt: s.CompletedAt}
}

// RewardFunc computes the reward for a session given the locked current state.
// It may be invoked more than once when the surrounding transaction is retried,
// so it must not have side effects.
type RewardFunc func(cur State, session Session) (Reward, error)

// ProfileRepository reads and mutates the progression subset of user records.
type ProfileRepository interface {
	// Get returns ErrProfileNotFound when the user does not exist.
	Get(ctx context.Context, userID shared.UserID) (*Profile, error)

	// ApplyReward locks the user row, loads the session, and either replays the
	// stored result (replayed=true) or calls fn, persists the new state and marks
	// the session rewarded in the same transaction.
	ApplyReward(ctx context.Context, userID shared.UserID, sessionID string, fn RewardFunc) (result XPResult, replayed bool, err error)
}

// SessionRepository stores session history.
type SessionRepository interface {
	// Create returns ErrAlreadyExists when the id is taken.
	Create(ctx context.Context, s *Session) error

	// Get returns ErrNotFound when the session is missing.
	Get(ctx context.Context, id string) (*Session, error)

	// ListByUser returns the user's sessions oldest first.
	ListByUser(ctx context.Context, userID shared.UserID) ([]SessionRecord, error)

	// ListPendingRewards returns sessions completed before olderThan that were never rewarded.
	ListPendingRewards(ctx context.Context, olderThan time.Time, limit int) ([]*Session, error)
}
