// Package jobs contains the scheduled maintenance jobs of the progression engine.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prepwise/progression-engine/internal/domain/progression"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/pkg/logger"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

// FeatureGate reports whether a named feature flag is on.
type FeatureGate interface {
	IsEnabled(flag string) bool
}

// FlagRewardReplay gates the reward replay job.
const FlagRewardReplay = "progression.reward_replay"

// Rewarder applies the reward of a saved session idempotently.
type Rewarder interface {
	Reward(ctx context.Context, userID shared.UserID, sessionID string) (progression.XPResult, bool, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// REPLAY REWARDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReplayRewardsJob finishes sessions that were saved but never rewarded.
// Rewarding goes through the same idempotent path as the request, so a session
// rewarded concurrently is replayed rather than counted twice.
type ReplayRewardsJob struct {
	sessions progression.SessionRepository
	rewarder Rewarder
	gate     FeatureGate
	clock    timeutil.Clock
	log      *logger.Logger
	config   ReplayRewardsConfig

	lastRunStats atomic.Value // *ReplayStats
}

// ReplayRewardsConfig contains configuration for the replay job.
type ReplayRewardsConfig struct {
	// GracePeriod leaves fresh sessions to the request that created them.
	GracePeriod time.Duration

	// BatchSize caps the sessions handled per run.
	BatchSize int

	Timeout time.Duration
}

// DefaultReplayRewardsConfig returns sensible defaults.
func DefaultReplayRewardsConfig() ReplayRewardsConfig {
	return ReplayRewardsConfig{
		GracePeriod: 2 * time.Minute,
		BatchSize:   200,
		Timeout:     2 * time.Minute,
	}
}

// ReplayStats contains statistics from a replay run.
type ReplayStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Pending   int
	Rewarded  int
	Replayed  int
	Failed    int
	Disabled  bool
}

// NewReplayRewardsJob creates a new ReplayRewardsJob. gate may be nil.
func NewReplayRewardsJob(
	sessions progression.SessionRepository,
	rewarder Rewarder,
	gate FeatureGate,
	clock timeutil.Clock,
	log *logger.Logger,
	config ReplayRewardsConfig,
) *ReplayRewardsJob {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	def := DefaultReplayRewardsConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.GracePeriod < 0 {
		config.GracePeriod = 0
	}
	return &ReplayRewardsJob{
		sessions: sessions,
		rewarder: rewarder,
		gate:     gate,
		clock:    clock,
		log:      log.With(logger.Component("replay_rewards")),
		config:   config,
	}
}

func (j *ReplayRewardsJob) Name() string { return "replay_rewards" }

func (j *ReplayRewardsJob) Description() string {
	return "Applies XP rewards for saved sessions whose reward step never completed"
}

// Run rewards one batch of pending sessions. Individual failures are counted
// and left for the next run; only listing failures fail the job.
func (j *ReplayRewardsJob) Run(ctx context.Context) error {
	now := j.clock.Now()
	stats := &ReplayStats{StartedAt: now}
	defer func() {
		stats.Duration = j.clock.Now().Sub(now)
		j.lastRunStats.Store(stats)
	}()

	if j.gate != nil && !j.gate.IsEnabled(FlagRewardReplay) {
		stats.Disabled = true
		return nil
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	pending, err := j.sessions.ListPendingRewards(ctx, now.Add(-j.config.GracePeriod), j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending rewards: %w", err)
	}
	stats.Pending = len(pending)

	for _, s := range pending {
		if ctx.Err() != nil {
			break
		}
		_, replayed, err := j.rewarder.Reward(ctx, s.UserID, s.ID)
		switch {
		case err != nil:
			stats.Failed++
			j.log.Warn("reward replay failed",
				logger.UserID(s.UserID.String()),
				logger.SessionID(s.ID),
				logger.Err(err),
			)
		case replayed:
			stats.Replayed++
		default:
			stats.Rewarded++
		}
	}

	if stats.Pending > 0 {
		j.log.Info("reward replay finished",
			logger.Int("pending", stats.Pending),
			logger.Int("rewarded", stats.Rewarded),
			logger.Int("replayed", stats.Replayed),
			logger.Int("failed", stats.Failed),
		)
	}
	return ctx.Err()
}

// LastRunStats returns statistics of the last run, nil before the first.
func (j *ReplayRewardsJob) LastRunStats() *ReplayStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*ReplayStats)
	}
	return nil
}
