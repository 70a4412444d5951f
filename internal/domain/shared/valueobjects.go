package shared

import (
	"math"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID is the stable identifier supplied by the authentication layer.
type UserID string

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is blank.
func (u UserID) IsEmpty() bool {
	return strings.TrimSpace(string(u)) == ""
}

// NewUserID creates a UserID, rejecting blank values.
func NewUserID(id string) (UserID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrMissingUserID
	}
	return UserID(id), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XPPerLevel is the width of every level band.
const XPPerLevel = 100

// XP represents experience points. Never negative.
type XP int

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds a non-negative amount. Negative amounts are ignored so XP never shrinks.
func (x XP) Add(amount int) XP {
	if amount <= 0 {
		return x
	}
	return x + XP(amount)
}

// Level returns floor(xp/100)+1.
func (x XP) Level() Level {
	if x <= 0 {
		return MinLevel
	}
	return Level(int(x)/XPPerLevel + 1)
}

// ProgressToNextLevel returns the percentage (0-99) of the current level band filled.
func (x XP) ProgressToNextLevel() int {
	if x <= 0 {
		return 0
	}
	return int(x) % XPPerLevel
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's level, starting at 1.
type Level int

// MinLevel is the level of a fresh account.
const MinLevel Level = 1

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredXP returns the total XP at which this level starts.
func (l Level) RequiredXP() int {
	if l <= MinLevel {
		return 0
	}
	return (int(l) - 1) * XPPerLevel
}

// Title returns the display title for the level.
func (l Level) Title() string {
	switch {
	case l >= 50:
		return "Interview Legend"
	case l >= 25:
		return "Interview Master"
	case l >= 15:
		return "Interview Expert"
	case l >= 10:
		return "Seasoned Candidate"
	case l >= 5:
		return "Rising Candidate"
	case l >= 2:
		return "Apprentice"
	default:
		return "Beginner"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Score is an interview score in [0,100].
type Score float64

// IsValid checks the [0,100] range.
func (s Score) IsValid() bool {
	return !math.IsNaN(float64(s)) && s >= 0 && s <= 100
}

// Rounded returns the score rounded half away from zero.
func (s Score) Rounded() int {
	return int(math.Round(float64(s)))
}

// IsPerfect reports a score of exactly 100.
func (s Score) IsPerfect() bool {
	return s == 100
}
