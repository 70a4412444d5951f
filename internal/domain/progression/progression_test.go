package progression

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/progression-engine/internal/domain/shared"
)

func score(v float64) *float64 { return &v }

var today = time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return today.AddDate(0, 0, -n) }

// ───────────────────────────────────────────────────────────────────────────
// StatsAggregator
// ───────────────────────────────────────────────────────────────────────────

func TestBuildStats(t *testing.T) {
	history := []SessionRecord{
		{Score: score(80), DurationMinutes: 20, CompletedAt: daysAgo(0)},
		{Score: score(100), DurationMinutes: 30, CompletedAt: daysAgo(0)},
		{Score: nil, DurationMinutes: 10, CompletedAt: daysAgo(1)},
		{Score: score(60), DurationMinutes: 15, CompletedAt: daysAgo(2)},
		{Score: score(100), DurationMinutes: 25, CompletedAt: daysAgo(4)},
	}

	s := BuildStats(history, today)

	assert.Equal(t, 5, s.TotalSessions)
	assert.Equal(t, 100, s.TotalTime)
	assert.Equal(t, 2, s.PerfectScores)
	assert.InDelta(t, 85.0, s.AvgScore, 1e-9) // ungraded session excluded
	assert.Equal(t, 3, s.StreakDays)          // gap on day 3 breaks it
}

func TestBuildStats_Streak(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		assert.Equal(t, UserStats{}, BuildStats(nil, today))
	})

	t.Run("no session today breaks it", func(t *testing.T) {
		s := BuildStats([]SessionRecord{
			{CompletedAt: daysAgo(1)},
			{CompletedAt: daysAgo(2)},
		}, today)
		assert.Equal(t, 0, s.StreakDays)
	})

	t.Run("today and yesterday", func(t *testing.T) {
		s := BuildStats([]SessionRecord{
			{CompletedAt: daysAgo(0)},
			{CompletedAt: daysAgo(1)},
			{CompletedAt: daysAgo(1).Add(-3 * time.Hour)},
		}, today)
		assert.Equal(t, 2, s.StreakDays)
	})

	t.Run("broken two days ago", func(t *testing.T) {
		s := BuildStats([]SessionRecord{{CompletedAt: daysAgo(2)}}, today)
		assert.Equal(t, 0, s.StreakDays)
	})

	t.Run("utc day boundary", func(t *testing.T) {
		almaty := time.FixedZone("UTC+5", 5*60*60)
		// 02:00 local on Oct 15 is 21:00 UTC on Oct 14.
		s := BuildStats([]SessionRecord{
			{CompletedAt: time.Date(2026, 10, 15, 2, 0, 0, 0, almaty)},
			{CompletedAt: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)},
		}, today)
		assert.Equal(t, 2, s.StreakDays)
	})
}

// ───────────────────────────────────────────────────────────────────────────
// Tiers and catalog
// ───────────────────────────────────────────────────────────────────────────

func TestAllTiersHandled(t *testing.T) {
	tiers := AllTiers()
	require.Len(t, tiers, 15)
	for i, tier := range tiers {
		assert.Equal(t, Tier(i), tier)
		assert.NotPanics(t, func() { _ = tier.String() })
	}
	assert.Equal(t, "bronze I", TierBronzeI.String())
	assert.Equal(t, "diamond III", TierDiamondIII.String())
	assert.Panics(t, func() { _ = Tier(15).Metal() })
	assert.Panics(t, func() { _ = RankLevel(0).String() })
}

func TestCatalogIntegrity(t *testing.T) {
	all := Achievements()
	require.NotEmpty(t, all)

	for _, a := range all {
		assert.Positive(t, a.XPReward, a.ID)
		assert.True(t, a.Category.Valid(), a.ID)
		assert.NotNil(t, a.Condition, a.ID)
	}

	first, ok := AchievementByID("first_interview")
	require.True(t, ok)
	assert.Equal(t, 10, first.XPReward)

	_, ok = AchievementByID("does_not_exist")
	assert.False(t, ok)

	for _, a := range AchievementsByTier(TierBronzeI) {
		assert.Equal(t, TierBronzeI, a.Tier)
	}
	var total int
	for _, c := range AllCategories() {
		total += len(AchievementsByCategory(c))
	}
	assert.Equal(t, len(all), total)
}

func TestCatalogIsNotMutableThroughAccessors(t *testing.T) {
	all := Achievements()
	all[0].XPReward = 9999
	first, _ := AchievementByID(all[0].ID)
	assert.NotEqual(t, 9999, first.XPReward)
}

func randomStats(r *rand.Rand) UserStats {
	return UserStats{
		AvgScore:      float64(r.Intn(101)),
		TotalSessions: r.Intn(250),
		TotalTime:     r.Intn(1500),
		PerfectScores: r.Intn(30),
		StreakDays:    r.Intn(40),
	}
}

func grow(r *rand.Rand, s UserStats) UserStats {
	g := s
	g.AvgScore = clamp(s.AvgScore+float64(r.Intn(20)), 0, 100)
	g.TotalSessions += r.Intn(50)
	g.TotalTime += r.Intn(400)
	g.PerfectScores += r.Intn(5)
	g.StreakDays += r.Intn(10)
	return g
}

func TestMonotonicUnlocking(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		base := randomStats(r)
		bigger := grow(r, base)
		require.True(t, bigger.Dominates(base))

		before := toSet(UnlockedBy(base))
		after := toSet(UnlockedBy(bigger))
		for id := range before {
			_, still := after[id]
			assert.True(t, still, "achievement %s revoked: %+v -> %+v", id, base, bigger)
		}
	}
}

func TestProgressBounds(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 2000; i++ {
		s := randomStats(r)
		for _, a := range Achievements() {
			p := a.ProgressFor(s)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 100.0)
			if a.Progress != nil && a.Unlocked(s) {
				assert.Equal(t, 100.0, p, a.ID)
			}
		}
	}
}

func TestNextAchievement(t *testing.T) {
	t.Run("fresh user ties broken by tier", func(t *testing.T) {
		rec := NextAchievement(UserStats{}, nil)
		require.NotNil(t, rec)
		assert.Equal(t, "first_interview", rec.Achievement.ID)
		assert.Equal(t, 0.0, rec.Progress)
	})

	t.Run("highest progress wins", func(t *testing.T) {
		s := UserStats{TotalSessions: 4, AvgScore: 40}
		rec := NextAchievement(s, []string{"first_interview"})
		require.NotNil(t, rec)
		// getting_started is 80% (4/5); everything else is lower.
		assert.Equal(t, "getting_started", rec.Achievement.ID)
		assert.InDelta(t, 80.0, rec.Progress, 1e-9)
	})

	t.Run("hidden achievements never recommended", func(t *testing.T) {
		var unlocked []string
		for _, a := range Achievements() {
			if a.Progress != nil {
				unlocked = append(unlocked, a.ID)
			}
		}
		assert.Nil(t, NextAchievement(UserStats{}, unlocked))
	})
}

// ───────────────────────────────────────────────────────────────────────────
// RankTable
// ───────────────────────────────────────────────────────────────────────────

func boundaryTable(t *testing.T) *RankTable {
	t.Helper()
	table, err := NewRankTable([]RankDefinition{
		{Name: "Novice", Level: LevelI, MinXP: 0},
		{Name: "Novice", Level: LevelII, MinXP: 100},
		{Name: "Novice", Level: LevelIII, MinXP: 250},
		{Name: "Practitioner", Level: LevelI, MinXP: 500},
	})
	require.NoError(t, err)
	return table
}

func TestRankBoundaryIsInclusive(t *testing.T) {
	table := boundaryTable(t)

	assert.Equal(t, 250, table.Current(250).MinXP)
	assert.Equal(t, 100, table.Current(249).MinXP)
	assert.Equal(t, 0, table.Current(0).MinXP)
	assert.Equal(t, "Practitioner I", table.Current(10_000).Label())
}

func TestRankNextAndProgress(t *testing.T) {
	table := boundaryTable(t)

	next := table.Next(175)
	require.NotNil(t, next)
	assert.Equal(t, 250, next.MinXP)
	assert.InDelta(t, 50.0, table.ProgressToNext(175), 1e-9)
	assert.Equal(t, 0.0, table.ProgressToNext(100))

	assert.Nil(t, table.Next(500))
	assert.Equal(t, 100.0, table.ProgressToNext(500))
	assert.Equal(t, 100.0, table.ProgressToNext(99_999))
}

func TestNewRankTableValidation(t *testing.T) {
	cases := map[string][]RankDefinition{
		"empty":            nil,
		"nonzero start":    {{Name: "A", Level: LevelI, MinXP: 10}},
		"not increasing":   {{Name: "A", Level: LevelI, MinXP: 0}, {Name: "A", Level: LevelII, MinXP: 0}},
		"skips level":      {{Name: "A", Level: LevelI, MinXP: 0}, {Name: "A", Level: LevelIII, MinXP: 10}},
		"name too early":   {{Name: "A", Level: LevelI, MinXP: 0}, {Name: "B", Level: LevelII, MinXP: 10}},
		"name not changed": {{Name: "A", Level: LevelI, MinXP: 0}, {Name: "A", Level: LevelII, MinXP: 5}, {Name: "A", Level: LevelIII, MinXP: 9}, {Name: "A", Level: LevelI, MinXP: 20}},
		"unknown level":    {{Name: "A", Level: RankLevel(7), MinXP: 0}},
	}
	for name, defs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRankTable(defs)
			assert.True(t, shared.IsValidation(err), "got %v", err)
		})
	}

	assert.NotPanics(t, func() { DefaultRanks() })
	assert.Len(t, DefaultRanks().Ranks(), 15)
}

// ───────────────────────────────────────────────────────────────────────────
// Evaluator
// ───────────────────────────────────────────────────────────────────────────

func TestEvaluate(t *testing.T) {
	stats := UserStats{TotalSessions: 5, AvgScore: 82, StreakDays: 3}
	eval := Evaluate(stats, []string{"first_interview", "level_10"}, nil)

	ids := eval.NewlyUnlockedIDs()
	assert.ElementsMatch(t, []string{"getting_started", "solid_start", "high_achiever", "on_a_roll"}, ids)
	assert.NotContains(t, ids, "first_interview")

	// 10 held + 25 + 25 + 75 + 30 new; level badge contributes nothing.
	assert.Equal(t, 165, eval.TotalXP)
	assert.Equal(t, 2, eval.Level)
	assert.Equal(t, "Novice II", eval.Rank.Label())
	require.NotNil(t, eval.NextRank)
	assert.InDelta(t, (165.0-100)/(250-100)*100, eval.ProgressToNextRank, 1e-9)
}

func TestEvaluate_NoDoubleUnlock(t *testing.T) {
	stats := UserStats{TotalSessions: 12, AvgScore: 91, TotalTime: 400, PerfectScores: 2, StreakDays: 8}

	first := Evaluate(stats, nil, nil)
	held := first.NewlyUnlockedIDs()
	second := Evaluate(stats, held, nil)

	assert.Empty(t, second.NewlyUnlocked)
	assert.Equal(t, first.TotalXP, second.TotalXP)
}

// ───────────────────────────────────────────────────────────────────────────
// Session reward
// ───────────────────────────────────────────────────────────────────────────

func TestSessionXP(t *testing.T) {
	assert.Equal(t, 125, SessionXP(85, 40))
	assert.Equal(t, 10, SessionXP(0, 0))
	assert.Equal(t, 140, SessionXP(100, 31))
	assert.Equal(t, 10+73+12, SessionXP(72.6, 12))
}

func TestApplySession_FirstEverSession(t *testing.T) {
	history := UserStats{TotalSessions: 1, StreakDays: 1}
	reward := ApplySession(NewState(), SessionInput{Score: 85, DurationMinutes: 40}, history)

	assert.Equal(t, 125, reward.SessionXP)
	assert.Equal(t, []string{"first_interview"}, reward.Result.NewAchievements)
	assert.Equal(t, 135, reward.Result.XPGained)
	assert.Equal(t, 135, reward.Result.TotalXP)
	assert.Equal(t, 2, reward.Result.Level)
	assert.Equal(t, "Apprentice", reward.Result.Title)
	assert.True(t, reward.Result.LeveledUp)

	assert.Equal(t, 1, reward.Next.TotalInterviews)
	assert.InDelta(t, 85.0, reward.Next.AverageScore, 1e-9)
	assert.Equal(t, []string{"first_interview"}, reward.Next.BadgesUnlocked)
	assert.Equal(t, 40, reward.Stats.TotalTime)
}

func TestApplySession_XPConservation(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	state := NewState()
	for i := 0; i < 300; i++ {
		in := SessionInput{Score: shared.Score(r.Intn(101)), DurationMinutes: r.Intn(90)}
		hist := UserStats{PerfectScores: r.Intn(3), StreakDays: r.Intn(5)}

		reward := ApplySession(state, in, hist)

		achievementXP := 0
		for _, a := range reward.NewlyUnlocked {
			achievementXP += a.XPReward
		}
		require.Equal(t, state.ExperiencePoints+SessionXP(in.Score, in.DurationMinutes)+achievementXP, reward.Next.ExperiencePoints)
		require.Equal(t, reward.Next.ExperiencePoints/100+1, reward.Next.Level)
		require.GreaterOrEqual(t, reward.Next.ExperiencePoints, state.ExperiencePoints)

		// Badges only grow and never repeat.
		require.Subset(t, reward.Next.BadgesUnlocked, state.BadgesUnlocked)
		seen := map[string]bool{}
		for _, b := range reward.Next.BadgesUnlocked {
			require.False(t, seen[b], "duplicate badge %s", b)
			seen[b] = true
		}

		state = reward.Next
	}
	assert.Equal(t, 300, state.TotalInterviews)
}

func TestApplySession_LevelBadges(t *testing.T) {
	cur := State{ExperiencePoints: 880, Level: 9, TotalInterviews: 40, AverageScore: 50,
		BadgesUnlocked: []string{"first_interview", "getting_started", "dedicated", "committed"}}

	reward := ApplySession(cur, SessionInput{Score: 90, DurationMinutes: 10}, UserStats{})

	assert.Equal(t, 10, reward.Result.Level)
	assert.Equal(t, []string{"level_10"}, reward.LevelBadges)
	assert.Contains(t, reward.Next.BadgesUnlocked, "level_10")
	assert.NotContains(t, reward.Result.NewAchievements, "level_10")

	again := ApplySession(reward.Next, SessionInput{Score: 90, DurationMinutes: 10}, UserStats{})
	assert.Empty(t, again.LevelBadges)
}

func TestSessionInputValidate(t *testing.T) {
	assert.NoError(t, SessionInput{Score: 100, DurationMinutes: 0}.Validate())
	assert.ErrorIs(t, SessionInput{Score: 101}.Validate(), shared.ErrValidation)
	assert.ErrorIs(t, SessionInput{Score: 50, DurationMinutes: -1}.Validate(), shared.ErrValidation)
}
