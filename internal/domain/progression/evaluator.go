package progression

import "github.com/prepwise/progression-engine/internal/domain/shared"

// Evaluation is the derived progression view of a stats snapshot.
type Evaluation struct {
	NewlyUnlocked      []AchievementDefinition
	TotalXP            int
	Level              int
	Rank               RankDefinition
	NextRank           *RankDefinition
	ProgressToNextRank float64
}

// NewlyUnlockedIDs returns the ids of NewlyUnlocked in catalog order.
func (e Evaluation) NewlyUnlockedIDs() []string {
	ids := make([]string, 0, len(e.NewlyUnlocked))
	for _, a := range e.NewlyUnlocked {
		ids = append(ids, a.ID)
	}
	return ids
}

// Evaluate derives achievements, achievement XP, level and rank.
//
// TotalXP is the sum of xpReward over every unlocked id, previously held or new.
// Ids that are not catalog achievements (level badges) contribute nothing.
func Evaluate(stats UserStats, unlockedIDs []string, ranks *RankTable) Evaluation {
	if ranks == nil {
		ranks = DefaultRanks()
	}
	have := toSet(unlockedIDs)

	var eval Evaluation
	for id := range have {
		if a, ok := AchievementByID(id); ok {
			eval.TotalXP += a.XPReward
		}
	}
	for _, a := range catalog {
		if _, ok := have[a.ID]; ok {
			continue
		}
		if a.Unlocked(stats) {
			eval.NewlyUnlocked = append(eval.NewlyUnlocked, a)
			eval.TotalXP += a.XPReward
		}
	}

	eval.Level = shared.XP(eval.TotalXP).Level().Int()
	eval.Rank = ranks.Current(eval.TotalXP)
	eval.NextRank = ranks.Next(eval.TotalXP)
	eval.ProgressToNextRank = ranks.ProgressToNext(eval.TotalXP)
	return eval
}

// UnlockedBy returns the ids of every catalog achievement whose condition holds.
func UnlockedBy(stats UserStats) []string {
	var ids []string
	for _, a := range catalog {
		if a.Unlocked(stats) {
			ids = append(ids, a.ID)
		}
	}
	return ids
}
