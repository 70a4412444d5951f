package progression

import (
	"github.com/prepwise/progression-engine/internal/domain/shared"
)

// Session XP formula constants.
const (
	SessionBaseXP      = 10
	SessionDurationCap = 30
)

// LevelBadge is granted once a level threshold is first reached.
type LevelBadge struct {
	ID    string
	Level int
}

// LevelBadges are checked in ascending order.
var LevelBadges = []LevelBadge{
	{ID: "level_10", Level: 10},
	{ID: "level_25", Level: 25},
	{ID: "level_50", Level: 50},
}

// State is the persisted progression subset of a user record.
type State struct {
	ExperiencePoints int
	Level            int
	Title            string
	TotalInterviews  int
	AverageScore     float64
	BadgesUnlocked   []string
}

// NewState returns the state of a freshly created account.
func NewState() State {
	return State{
		Level: shared.MinLevel.Int(),
		Title: shared.MinLevel.Title(),
	}
}

// HasBadge reports whether id is already unlocked.
func (s State) HasBadge(id string) bool {
	for _, b := range s.BadgesUnlocked {
		if b == id {
			return true
		}
	}
	return false
}

// SessionInput is one completed session.
type SessionInput struct {
	Score           shared.Score
	DurationMinutes int
}

// Validate checks ranges before any I/O.
func (in SessionInput) Validate() error {
	if !in.Score.IsValid() {
		return shared.ErrInvalidScore
	}
	if in.DurationMinutes < 0 {
		return shared.ErrInvalidDuration
	}
	return nil
}

// SessionXP returns 10 + round(score) + min(duration, 30).
func SessionXP(score shared.Score, durationMinutes int) int {
	d := durationMinutes
	if d < 0 {
		d = 0
	}
	if d > SessionDurationCap {
		d = SessionDurationCap
	}
	return SessionBaseXP + score.Rounded() + d
}

// XPResult is what the caller surfaces after a session is rewarded.
type XPResult struct {
	Level           int      `json:"level"`
	Title           string   `json:"title"`
	TotalXP         int      `json:"total_xp"`
	XPGained        int      `json:"xp_gained"`
	NewAchievements []string `json:"new_achievements"`
	LeveledUp       bool     `json:"leveled_up"`
}

// Reward is the full outcome of applying one session.
type Reward struct {
	Next          State
	Result        XPResult
	Stats         UserStats
	NewlyUnlocked []AchievementDefinition
	LevelBadges   []string
	SessionXP     int
	PreviousLevel int
}

// ApplySession computes the state delta of one completed session.
//
// history carries PerfectScores and StreakDays computed over the session history
// including this session. TotalTime is the duration of this session only, not a
// cumulative sum; time achievements therefore see single-session length.
func ApplySession(cur State, in SessionInput, history UserStats) Reward {
	interviews := cur.TotalInterviews + 1
	avg := (cur.AverageScore*float64(cur.TotalInterviews) + float64(in.Score)) / float64(interviews)
	avg = clamp(avg, 0, 100)

	stats := UserStats{
		AvgScore:      avg,
		TotalSessions: interviews,
		TotalTime:     max(in.DurationMinutes, 0),
		PerfectScores: history.PerfectScores,
		StreakDays:    history.StreakDays,
	}

	var (
		unlocked      []AchievementDefinition
		unlockedIDs   []string
		achievementXP int
	)
	for _, a := range catalog {
		if cur.HasBadge(a.ID) || !a.Unlocked(stats) {
			continue
		}
		unlocked = append(unlocked, a)
		unlockedIDs = append(unlockedIDs, a.ID)
		achievementXP += a.XPReward
	}

	sessionXP := SessionXP(in.Score, in.DurationMinutes)
	gained := sessionXP + achievementXP
	prevXP := shared.XP(max(cur.ExperiencePoints, 0))
	newXP := prevXP.Add(gained)

	prevLevel := prevXP.Level()
	newLevel := newXP.Level()
	title := newLevel.Title()

	var levelBadges []string
	for _, lb := range LevelBadges {
		if newLevel.Int() >= lb.Level && !cur.HasBadge(lb.ID) {
			levelBadges = append(levelBadges, lb.ID)
		}
	}

	badges := make([]string, 0, len(cur.BadgesUnlocked)+len(unlockedIDs)+len(levelBadges))
	badges = append(badges, cur.BadgesUnlocked...)
	badges = append(badges, unlockedIDs...)
	badges = append(badges, levelBadges...)

	if unlockedIDs == nil {
		unlockedIDs = []string{}
	}

	return Reward{
		Next: State{
			ExperiencePoints: newXP.Int(),
			Level:            newLevel.Int(),
			Title:            title,
			TotalInterviews:  interviews,
			AverageScore:     avg,
			BadgesUnlocked:   badges,
		},
		Result: XPResult{
			Level:           newLevel.Int(),
			Title:           title,
			TotalXP:         newXP.Int(),
			XPGained:        gained,
			NewAchievements: unlockedIDs,
			LeveledUp:       newLevel > prevLevel,
		},
		Stats:         stats,
		NewlyUnlocked: unlocked,
		LevelBadges:   levelBadges,
		SessionXP:     sessionXP,
		PreviousLevel: prevLevel.Int(),
	}
}
