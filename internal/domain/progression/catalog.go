package progression

import (
	"fmt"
	"sort"
)

// AchievementDefinition is one compiled-in achievement rule.
type AchievementDefinition struct {
	ID          string
	Name        string
	Description string
	Category    Category
	Tier        Tier
	XPReward    int

	// Condition decides unlock eligibility. Must be monotonic.
	Condition func(UserStats) bool

	// Progress returns completion in [0,100]. Nil for hidden achievements.
	Progress func(UserStats) float64
}

// Unlocked evaluates the condition.
func (a AchievementDefinition) Unlocked(s UserStats) bool {
	return a.Condition(s)
}

// ProgressFor returns clamped progress, or 0 when the achievement has no calculator.
func (a AchievementDefinition) ProgressFor(s UserStats) float64 {
	if a.Progress == nil {
		return 0
	}
	return clamp(a.Progress(s), 0, 100)
}

// ───────────────────────────────────────────────────────────────────────────
// Predicate builders
// ───────────────────────────────────────────────────────────────────────────

type metric func(UserStats) float64

var (
	sessions = func(s UserStats) float64 { return float64(s.TotalSessions) }
	avgScore = func(s UserStats) float64 { return s.AvgScore }
	minutes  = func(s UserStats) float64 { return float64(s.TotalTime) }
	perfects = func(s UserStats) float64 { return float64(s.PerfectScores) }
	streak   = func(s UserStats) float64 { return float64(s.StreakDays) }
)

type goal struct {
	m      metric
	target float64
}

func atLeast(m metric, target float64) goal { return goal{m: m, target: target} }

// all holds when every goal is met.
func all(goals ...goal) func(UserStats) bool {
	return func(s UserStats) bool {
		for _, g := range goals {
			if g.m(s) < g.target {
				return false
			}
		}
		return true
	}
}

// weakest reports progress of the least complete goal.
func weakest(goals ...goal) func(UserStats) float64 {
	return func(s UserStats) float64 {
		p := 100.0
		for _, g := range goals {
			if v := clamp(g.m(s)/g.target*100, 0, 100); v < p {
				p = v
			}
		}
		return p
	}
}

func def(id, name, desc string, cat Category, tier Tier, xp int, hidden bool, goals ...goal) AchievementDefinition {
	d := AchievementDefinition{
		ID:          id,
		Name:        name,
		Description: desc,
		Category:    cat,
		Tier:        tier,
		XPReward:    xp,
		Condition:   all(goals...),
	}
	if !hidden {
		d.Progress = weakest(goals...)
	}
	return d
}

// ═══════════════════════════════════════════════════════════════════════════
// Catalog
// ═══════════════════════════════════════════════════════════════════════════

var catalog = buildCatalog()

func buildCatalog() []AchievementDefinition {
	defs := []AchievementDefinition{
		// Sessions
		def("first_interview", "First Steps", "Complete your first interview", CategorySessions, TierBronzeI, 10, false,
			atLeast(sessions, 1)),
		def("getting_started", "Getting Started", "Complete 5 interviews", CategorySessions, TierBronzeII, 25, false,
			atLeast(sessions, 5)),
		def("dedicated", "Dedicated", "Complete 10 interviews", CategorySessions, TierBronzeIII, 50, false,
			atLeast(sessions, 10)),
		def("committed", "Committed", "Complete 25 interviews", CategorySessions, TierSilverII, 100, false,
			atLeast(sessions, 25)),
		def("interview_veteran", "Interview Veteran", "Complete 50 interviews", CategorySessions, TierGoldI, 200, false,
			atLeast(sessions, 50)),
		def("centurion", "Centurion", "Complete 100 interviews", CategorySessions, TierPlatinumI, 500, false,
			atLeast(sessions, 100)),

		// Performance
		def("solid_start", "Solid Start", "Average 60+ over at least 3 interviews", CategoryPerformance, TierBronzeII, 25, false,
			atLeast(avgScore, 60), atLeast(sessions, 3)),
		def("high_achiever", "High Achiever", "Average 80+ over at least 5 interviews", CategoryPerformance, TierSilverI, 75, false,
			atLeast(avgScore, 80), atLeast(sessions, 5)),
		def("excellence", "Excellence", "Average 90+ over at least 10 interviews", CategoryPerformance, TierGoldII, 250, false,
			atLeast(avgScore, 90), atLeast(sessions, 10)),
		def("first_perfect", "Flawless", "Score 100 in an interview", CategoryPerformance, TierSilverIII, 100, false,
			atLeast(perfects, 1)),
		def("perfectionist", "Perfectionist", "Score 100 in 5 interviews", CategoryPerformance, TierPlatinumII, 400, false,
			atLeast(perfects, 5)),
		def("untouchable", "Untouchable", "Score 100 in 10 interviews", CategoryPerformance, TierDiamondI, 750, false,
			atLeast(perfects, 10)),

		// Time
		def("warm_up", "Warm Up", "Practice for an hour", CategoryTime, TierBronzeI, 10, false,
			atLeast(minutes, 60)),
		def("focused_session", "Focused", "Practice for two hours", CategoryTime, TierBronzeIII, 40, false,
			atLeast(minutes, 120)),
		def("deep_practice", "Deep Practice", "Practice for 5 hours", CategoryTime, TierSilverII, 120, false,
			atLeast(minutes, 300)),
		def("marathoner", "Marathoner", "Practice for 1000 minutes", CategoryTime, TierGoldIII, 300, false,
			atLeast(minutes, 1000)),

		// Streaks
		def("on_a_roll", "On a Roll", "Practice 3 days in a row", CategoryStreaks, TierBronzeIII, 30, false,
			atLeast(streak, 3)),
		def("week_warrior", "Week Warrior", "Practice 7 days in a row", CategoryStreaks, TierSilverIII, 150, false,
			atLeast(streak, 7)),
		def("fortnight_focus", "Fortnight Focus", "Practice 14 days in a row", CategoryStreaks, TierGoldII, 300, false,
			atLeast(streak, 14)),
		def("monthly_master", "Monthly Master", "Practice 30 days in a row", CategoryStreaks, TierPlatinumIII, 600, false,
			atLeast(streak, 30)),

		// Special
		def("all_rounder", "All-Rounder", "20 interviews, 75+ average, 5-day streak and 5 hours of practice",
			CategorySpecial, TierDiamondII, 800, false,
			atLeast(sessions, 20), atLeast(avgScore, 75), atLeast(streak, 5), atLeast(minutes, 300)),
		def("legend", "Legend", "A secret reserved for the most persistent", CategorySpecial, TierDiamondIII, 1500, true,
			atLeast(sessions, 200), atLeast(avgScore, 85), atLeast(perfects, 20)),
	}

	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if _, dup := seen[d.ID]; dup {
			panic(fmt.Sprintf("progression: duplicate achievement id %q", d.ID))
		}
		if d.XPReward <= 0 {
			panic(fmt.Sprintf("progression: achievement %q has non-positive xp", d.ID))
		}
		if !d.Tier.Valid() || !d.Category.Valid() {
			panic(fmt.Sprintf("progression: achievement %q has invalid tier or category", d.ID))
		}
		seen[d.ID] = struct{}{}
	}
	return defs
}

// Achievements returns the full catalog in declaration order.
func Achievements() []AchievementDefinition {
	out := make([]AchievementDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// AchievementByID looks up an achievement.
func AchievementByID(id string) (AchievementDefinition, bool) {
	for _, a := range catalog {
		if a.ID == id {
			return a, true
		}
	}
	return AchievementDefinition{}, false
}

// AchievementsByTier filters the catalog by tier.
func AchievementsByTier(t Tier) []AchievementDefinition {
	var out []AchievementDefinition
	for _, a := range catalog {
		if a.Tier == t {
			out = append(out, a)
		}
	}
	return out
}

// AchievementsByCategory filters the catalog by category.
func AchievementsByCategory(c Category) []AchievementDefinition {
	var out []AchievementDefinition
	for _, a := range catalog {
		if a.Category == c {
			out = append(out, a)
		}
	}
	return out
}

// Recommendation is the suggested next achievement to chase.
type Recommendation struct {
	Achievement AchievementDefinition
	Progress    float64
}

// NextAchievement picks the locked achievement with the highest progress.
// Ties go to the lower tier, then to catalog order. Hidden achievements are skipped.
// Returns nil when nothing is left.
func NextAchievement(s UserStats, unlocked []string) *Recommendation {
	have := toSet(unlocked)

	type candidate struct {
		idx int
		rec Recommendation
	}
	var cands []candidate
	for i, a := range catalog {
		if _, ok := have[a.ID]; ok || a.Progress == nil {
			continue
		}
		cands = append(cands, candidate{idx: i, rec: Recommendation{Achievement: a, Progress: a.ProgressFor(s)}})
	}
	if len(cands) == 0 {
		return nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.rec.Progress != b.rec.Progress {
			return a.rec.Progress > b.rec.Progress
		}
		if a.rec.Achievement.Tier != b.rec.Achievement.Tier {
			return a.rec.Achievement.Tier < b.rec.Achievement.Tier
		}
		return a.idx < b.idx
	})

	best := cands[0].rec
	return &best
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
