// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prepwise/progression-engine/internal/domain/progression"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/pkg/logger"
	"github.com/prepwise/progression-engine/pkg/retry"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SESSION COMMAND
// Saves a completed interview session, then applies its XP reward.
// The save is the primary path; the reward is best-effort and replayable.
// ══════════════════════════════════════════════════════════════════════════════

// RecordSessionCommand contains one completed session.
type RecordSessionCommand struct {
	UserID string

	// SessionID is the idempotency key. Generated when empty.
	SessionID string

	Score           float64
	DurationMinutes int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordSessionCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if c.SessionID != "" {
		if _, err := uuid.Parse(c.SessionID); err != nil {
			return shared.ValidationError("progression", "RecordSession", "session_id", "must be a uuid")
		}
	}
	return progression.SessionInput{Score: shared.Score(c.Score), DurationMinutes: c.DurationMinutes}.Validate()
}

// RecordSessionResult contains the outcome of recording a session.
type RecordSessionResult struct {
	SessionID string

	// Result is nil when RewardPending is true.
	Result *progression.XPResult

	// RewardPending is set when the session was saved but the reward step failed.
	RewardPending bool

	// Replayed is set when the session had already been rewarded earlier.
	Replayed bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordSessionHandler handles the RecordSessionCommand.
type RecordSessionHandler struct {
	profiles       progression.ProfileRepository
	sessions       progression.SessionRepository
	eventPublisher shared.EventPublisher
	retrier        *retry.Retrier
	clock          timeutil.Clock
	log            *logger.Logger
}

// NewRecordSessionHandler creates a new RecordSessionHandler.
func NewRecordSessionHandler(
	profiles progression.ProfileRepository,
	sessions progression.SessionRepository,
	eventPublisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *RecordSessionHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RecordSessionHandler{
		profiles:       profiles,
		sessions:       sessions,
		eventPublisher: eventPublisher,
		clock:          clock,
		log:            log.With(logger.Component("record_session")),
	}
}

// WithContentionRetry makes the reward transaction retry under r when it
// fails on contention. Without it a contended reward is left pending.
func (h *RecordSessionHandler) WithContentionRetry(r *retry.Retrier) *RecordSessionHandler {
	h.retrier = r
	return h
}

// Handle saves the session and applies its reward.
func (h *RecordSessionHandler) Handle(ctx context.Context, cmd RecordSessionCommand) (*RecordSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_session: validation failed: %w", err)
	}
	userID, _ := shared.NewUserID(cmd.UserID)
	if cmd.SessionID == "" {
		cmd.SessionID = uuid.NewString()
	}

	score := cmd.Score
	session := &progression.Session{
		ID:              cmd.SessionID,
		UserID:          userID,
		Score:           &score,
		DurationMinutes: cmd.DurationMinutes,
		CompletedAt:     h.clock.Now(),
	}

	if err := h.sessions.Create(ctx, session); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return nil, fmt.Errorf("record_session: failed to save session: %w", err)
		}
		existing, getErr := h.sessions.Get(ctx, cmd.SessionID)
		if getErr != nil {
			return nil, fmt.Errorf("record_session: failed to load session: %w", getErr)
		}
		if existing.UserID != userID {
			return nil, shared.ValidationError("progression", "RecordSession", "session_id", "belongs to another user")
		}
		if existing.IsRewarded() && existing.Reward != nil {
			return &RecordSessionResult{SessionID: existing.ID, Result: existing.Reward, Replayed: true}, nil
		}
	}

	res, replayed, err := h.Reward(ctx, userID, cmd.SessionID)
	if err != nil {
		h.log.Warn("session saved, reward deferred",
			logger.UserID(userID.String()),
			logger.SessionID(cmd.SessionID),
			logger.Err(err),
		)
		return &RecordSessionResult{SessionID: cmd.SessionID, RewardPending: true}, nil
	}

	return &RecordSessionResult{SessionID: cmd.SessionID, Result: &res, Replayed: replayed}, nil
}

// Reward applies the XP reward of an already saved session. It is idempotent:
// a rewarded session returns its stored result and publishes nothing.
func (h *RecordSessionHandler) Reward(ctx context.Context, userID shared.UserID, sessionID string) (progression.XPResult, bool, error) {
	history, err := h.sessions.ListByUser(ctx, userID)
	if err != nil {
		return progression.XPResult{}, false, fmt.Errorf("record_session: failed to load history: %w", err)
	}

	var (
		reward progression.Reward
		scored shared.Score
	)
	compute := func(cur progression.State, s progression.Session) (progression.Reward, error) {
		in := progression.SessionInput{DurationMinutes: s.DurationMinutes}
		if s.Score != nil {
			in.Score = shared.Score(*s.Score)
		}
		if err := in.Validate(); err != nil {
			return progression.Reward{}, err
		}
		hist := progression.BuildStats(historyUntil(history, s.CompletedAt), s.CompletedAt)
		reward = progression.ApplySession(cur, in, hist)
		scored = in.Score
		return reward, nil
	}

	type outcome struct {
		result   progression.XPResult
		replayed bool
	}
	out, err := runTx(ctx, h.retrier, func(ctx context.Context) (outcome, error) {
		r, replayed, err := h.profiles.ApplyReward(ctx, userID, sessionID, compute)
		return outcome{result: r, replayed: replayed}, err
	})
	if err != nil {
		return progression.XPResult{}, false, fmt.Errorf("record_session: failed to apply reward: %w", err)
	}
	if out.replayed {
		return out.result, true, nil
	}

	h.publishReward(userID, sessionID, scored.Rounded(), reward)

	h.log.Info("session rewarded",
		logger.UserID(userID.String()),
		logger.SessionID(sessionID),
		logger.XPAmount(out.result.XPGained),
		logger.Int("level", out.result.Level),
		logger.Strings("new_achievements", out.result.NewAchievements),
	)
	return out.result, false, nil
}

func (h *RecordSessionHandler) publishReward(userID shared.UserID, sessionID string, score int, r progression.Reward) {
	now := h.clock.Now()
	uid := userID.String()

	events := []shared.Event{
		shared.NewSessionCompletedEvent(uid, sessionID, score, r.Result.XPGained, r.Result.TotalXP, now),
	}
	for _, a := range r.NewlyUnlocked {
		events = append(events, shared.NewAchievementUnlockedEvent(uid, a.ID, a.XPReward, now))
	}
	if r.Result.LeveledUp {
		events = append(events, shared.NewLevelUpEvent(uid, r.PreviousLevel, r.Result.Level, r.Result.Title, now))
	}
	for _, event := range events {
		_ = h.eventPublisher.Publish(event)
	}
}

// historyUntil keeps sessions completed at or before t.
func historyUntil(history []progression.SessionRecord, t time.Time) []progression.SessionRecord {
	out := make([]progression.SessionRecord, 0, len(history))
	for _, s := range history {
		if !s.CompletedAt.After(t) {
			out = append(out, s)
		}
	}
	return out
}
