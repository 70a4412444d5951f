// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/prepwise/progression-engine/internal/domain/progression"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/pkg/logger"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESSION QUERY
// Full progression picture of one user: persisted XP ledger, derived
// achievement ledger, rank and the next achievement to chase.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressionQuery identifies the user.
type GetProgressionQuery struct {
	UserID string

	// SkipCache forces a recompute.
	SkipCache bool
}

// RankDTO is one rank row.
type RankDTO struct {
	Name  string   `json:"name"`
	Level string   `json:"level"`
	Label string   `json:"label"`
	MinXP int      `json:"min_xp"`
	Perks []string `json:"perks,omitempty"`
}

func toRankDTO(r progression.RankDefinition) RankDTO {
	return RankDTO{Name: r.Name, Level: r.Level.String(), Label: r.Label(), MinXP: r.MinXP, Perks: r.Perks}
}

// StatsDTO mirrors progression.UserStats.
type StatsDTO struct {
	AvgScore      float64 `json:"avg_score"`
	TotalSessions int     `json:"total_sessions"`
	TotalTime     int     `json:"total_time_minutes"`
	PerfectScores int     `json:"perfect_scores"`
	StreakDays    int     `json:"streak_days"`
}

// AchievementDTO describes one achievement for display.
type AchievementDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Tier        string  `json:"tier"`
	XPReward    int     `json:"xp_reward"`
	Progress    float64 `json:"progress"`
}

func toAchievementDTO(a progression.AchievementDefinition, progress float64) AchievementDTO {
	return AchievementDTO{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Category:    string(a.Category),
		Tier:        a.Tier.String(),
		XPReward:    a.XPReward,
		Progress:    progress,
	}
}

// LedgerDTO is one XP total with its level and rank.
type LedgerDTO struct {
	XP                 int      `json:"xp"`
	Level              int      `json:"level"`
	Rank               RankDTO  `json:"rank"`
	NextRank           *RankDTO `json:"next_rank,omitempty"`
	ProgressToNextRank float64  `json:"progress_to_next_rank"`
}

// ProgressionDTO is the progression view returned to clients.
//
// Experience is the persisted ledger advanced on every session. Achievements is
// recomputed from the unlocked badge set only. The two are not reconciled.
type ProgressionDTO struct {
	UserID          string   `json:"user_id"`
	Title           string   `json:"title"`
	TotalInterviews int      `json:"total_interviews"`
	AverageScore    float64  `json:"average_score"`
	Badges          []string `json:"badges"`

	Experience   LedgerDTO `json:"experience"`
	Achievements LedgerDTO `json:"achievements"`

	Stats StatsDTO `json:"stats"`

	// Eligible lists achievements whose conditions hold on the full history
	// but which no session reward has granted yet.
	Eligible        []AchievementDTO `json:"eligible"`
	NextAchievement *AchievementDTO  `json:"next_achievement,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// ProgressionCache stores computed views for a short time.
type ProgressionCache interface {
	GetProgression(ctx context.Context, userID string) (*ProgressionDTO, bool, error)
	SetProgression(ctx context.Context, view *ProgressionDTO) error
	InvalidateProgression(ctx context.Context, userID string) error
}

// GetProgressionHandler handles GetProgressionQuery.
type GetProgressionHandler struct {
	profiles progression.ProfileRepository
	sessions progression.SessionRepository
	cache    ProgressionCache
	ranks    *progression.RankTable
	clock    timeutil.Clock
	log      *logger.Logger
}

// NewGetProgressionHandler creates a new GetProgressionHandler. cache may be nil.
func NewGetProgressionHandler(
	profiles progression.ProfileRepository,
	sessions progression.SessionRepository,
	cache ProgressionCache,
	ranks *progression.RankTable,
	clock timeutil.Clock,
	log *logger.Logger,
) *GetProgressionHandler {
	if ranks == nil {
		ranks = progression.DefaultRanks()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetProgressionHandler{
		profiles: profiles,
		sessions: sessions,
		cache:    cache,
		ranks:    ranks,
		clock:    clock,
		log:      log.With(logger.Component("get_progression")),
	}
}

// Handle executes the query.
func (h *GetProgressionHandler) Handle(ctx context.Context, q GetProgressionQuery) (*ProgressionDTO, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil && !q.SkipCache {
		view, ok, err := h.cache.GetProgression(ctx, userID.String())
		if err != nil {
			h.log.Warn("progression cache read failed", logger.UserID(userID.String()), logger.Err(err))
		} else if ok {
			return view, nil
		}
	}

	profile, err := h.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_progression: %w", err)
	}
	history, err := h.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_progression: failed to load history: %w", err)
	}

	now := h.clock.Now()
	view := h.build(profile, progression.BuildStats(history, now), now)

	if h.cache != nil {
		if err := h.cache.SetProgression(ctx, view); err != nil {
			h.log.Warn("progression cache write failed", logger.UserID(userID.String()), logger.Err(err))
		}
	}
	return view, nil
}

func (h *GetProgressionHandler) build(p *progression.Profile, stats progression.UserStats, now time.Time) *ProgressionDTO {
	st := p.State
	eval := progression.Evaluate(stats, st.BadgesUnlocked, h.ranks)

	view := &ProgressionDTO{
		UserID:          p.UserID.String(),
		Title:           st.Title,
		TotalInterviews: st.TotalInterviews,
		AverageScore:    st.AverageScore,
		Badges:          append([]string{}, st.BadgesUnlocked...),
		Experience:      h.ledger(st.ExperiencePoints),
		Achievements: LedgerDTO{
			XP:                 eval.TotalXP,
			Level:              eval.Level,
			Rank:               toRankDTO(eval.Rank),
			ProgressToNextRank: eval.ProgressToNextRank,
		},
		Stats: StatsDTO{
			AvgScore:      stats.AvgScore,
			TotalSessions: stats.TotalSessions,
			TotalTime:     stats.TotalTime,
			PerfectScores: stats.PerfectScores,
			StreakDays:    stats.StreakDays,
		},
		Eligible:    make([]AchievementDTO, 0, len(eval.NewlyUnlocked)),
		GeneratedAt: now.UTC(),
	}
	if eval.NextRank != nil {
		next := toRankDTO(*eval.NextRank)
		view.Achievements.NextRank = &next
	}
	for _, a := range eval.NewlyUnlocked {
		view.Eligible = append(view.Eligible, toAchievementDTO(a, 100))
	}

	unlocked := append(append([]string{}, st.BadgesUnlocked...), eval.NewlyUnlockedIDs()...)
	if rec := progression.NextAchievement(stats, unlocked); rec != nil {
		dto := toAchievementDTO(rec.Achievement, rec.Progress)
		view.NextAchievement = &dto
	}
	return view
}

func (h *GetProgressionHandler) ledger(xp int) LedgerDTO {
	l := LedgerDTO{
		XP:                 xp,
		Level:              shared.XP(xp).Level().Int(),
		Rank:               toRankDTO(h.ranks.Current(xp)),
		ProgressToNextRank: h.ranks.ProgressToNext(xp),
	}
	if next := h.ranks.Next(xp); next != nil {
		dto := toRankDTO(*next)
		l.NextRank = &dto
	}
	return l
}
