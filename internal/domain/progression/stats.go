package progression

import (
	"sort"
	"time"

	"github.com/prepwise/progression-engine/pkg/timeutil"
)

// SessionRecord is one completed interview session as seen by the aggregator.
type SessionRecord struct {
	// Score is nil when the session was never graded.
	Score           *float64
	DurationMinutes int
	CompletedAt     time.Time
}

// UserStats is an ephemeral snapshot of a user's activity. Never persisted as-is.
type UserStats struct {
	AvgScore      float64 // [0,100]
	TotalSessions int
	TotalTime     int // minutes
	PerfectScores int
	StreakDays    int
}

// Dominates reports whether every field of s is >= the matching field of other.
func (s UserStats) Dominates(other UserStats) bool {
	return s.AvgScore >= other.AvgScore &&
		s.TotalSessions >= other.TotalSessions &&
		s.TotalTime >= other.TotalTime &&
		s.PerfectScores >= other.PerfectScores &&
		s.StreakDays >= other.StreakDays
}

// BuildStats folds a session history into UserStats.
//
// The streak counts consecutive UTC days with at least one session, walking back
// from today. A day without a session, today included, ends it.
func BuildStats(history []SessionRecord, now time.Time) UserStats {
	var (
		stats    UserStats
		scoreSum float64
		scored   int
	)

	days := make(map[time.Time]struct{}, len(history))
	for _, s := range history {
		stats.TotalSessions++
		if s.DurationMinutes > 0 {
			stats.TotalTime += s.DurationMinutes
		}
		if s.Score != nil {
			scoreSum += *s.Score
			scored++
			if *s.Score == 100 {
				stats.PerfectScores++
			}
		}
		if !s.CompletedAt.IsZero() {
			days[timeutil.StartOfDayUTC(s.CompletedAt)] = struct{}{}
		}
	}

	if scored > 0 {
		stats.AvgScore = clamp(scoreSum/float64(scored), 0, 100)
	}
	stats.StreakDays = streakFrom(days, now)

	return stats
}

func streakFrom(days map[time.Time]struct{}, now time.Time) int {
	if len(days) == 0 {
		return 0
	}

	cursor := timeutil.StartOfDayUTC(now)
	streak := 0
	for {
		if _, ok := days[cursor]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
}

// SortByCompletion orders a history oldest first.
func SortByCompletion(history []SessionRecord) {
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CompletedAt.Before(history[j].CompletedAt)
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
