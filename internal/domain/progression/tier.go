package progression

import "fmt"

// ═══════════════════════════════════════════════════════════════════════════
// Tier: 5 metals × 3 steps, ordered
// ═══════════════════════════════════════════════════════════════════════════

// Tier is one of 15 ordered achievement bands. Switches over Tier list every
// value and panic on anything else, so a new value fails loudly at each site.
type Tier int

const (
	TierBronzeI Tier = iota
	TierBronzeII
	TierBronzeIII
	TierSilverI
	TierSilverII
	TierSilverIII
	TierGoldI
	TierGoldII
	TierGoldIII
	TierPlatinumI
	TierPlatinumII
	TierPlatinumIII
	TierDiamondI
	TierDiamondII
	TierDiamondIII
)

// AllTiers returns every tier in ascending order.
func AllTiers() []Tier {
	return []Tier{
		TierBronzeI, TierBronzeII, TierBronzeIII,
		TierSilverI, TierSilverII, TierSilverIII,
		TierGoldI, TierGoldII, TierGoldIII,
		TierPlatinumI, TierPlatinumII, TierPlatinumIII,
		TierDiamondI, TierDiamondII, TierDiamondIII,
	}
}

// Metal is the named part of a tier.
type Metal string

const (
	MetalBronze   Metal = "bronze"
	MetalSilver   Metal = "silver"
	MetalGold     Metal = "gold"
	MetalPlatinum Metal = "platinum"
	MetalDiamond  Metal = "diamond"
)

// Metal returns the named band of the tier.
func (t Tier) Metal() Metal {
	switch t {
	case TierBronzeI, TierBronzeII, TierBronzeIII:
		return MetalBronze
	case TierSilverI, TierSilverII, TierSilverIII:
		return MetalSilver
	case TierGoldI, TierGoldII, TierGoldIII:
		return MetalGold
	case TierPlatinumI, TierPlatinumII, TierPlatinumIII:
		return MetalPlatinum
	case TierDiamondI, TierDiamondII, TierDiamondIII:
		return MetalDiamond
	default:
		panic(fmt.Sprintf("progression: unhandled tier %d", int(t)))
	}
}

// Step returns the sub-level (I, II or III) of the tier.
func (t Tier) Step() RankLevel {
	switch t {
	case TierBronzeI, TierSilverI, TierGoldI, TierPlatinumI, TierDiamondI:
		return LevelI
	case TierBronzeII, TierSilverII, TierGoldII, TierPlatinumII, TierDiamondII:
		return LevelII
	case TierBronzeIII, TierSilverIII, TierGoldIII, TierPlatinumIII, TierDiamondIII:
		return LevelIII
	default:
		panic(fmt.Sprintf("progression: unhandled tier %d", int(t)))
	}
}

// String returns e.g. "gold II".
func (t Tier) String() string {
	return string(t.Metal()) + " " + t.Step().String()
}

// Valid reports whether t is one of the 15 declared tiers.
func (t Tier) Valid() bool {
	return t >= TierBronzeI && t <= TierDiamondIII
}

// ═══════════════════════════════════════════════════════════════════════════
// RankLevel: I / II / III
// ═══════════════════════════════════════════════════════════════════════════

// RankLevel is the sub-level inside a named rank or tier.
type RankLevel int

const (
	LevelI RankLevel = iota + 1
	LevelII
	LevelIII
)

// String returns the roman numeral.
func (l RankLevel) String() string {
	switch l {
	case LevelI:
		return "I"
	case LevelII:
		return "II"
	case LevelIII:
		return "III"
	default:
		panic(fmt.Sprintf("progression: unhandled rank level %d", int(l)))
	}
}

// Successor returns the level that must follow l inside a rank table,
// and whether the name advances after it.
func (l RankLevel) Successor() (next RankLevel, nameAdvances bool) {
	switch l {
	case LevelI:
		return LevelII, false
	case LevelII:
		return LevelIII, false
	case LevelIII:
		return LevelI, true
	default:
		panic(fmt.Sprintf("progression: unhandled rank level %d", int(l)))
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Category
// ═══════════════════════════════════════════════════════════════════════════

// Category groups achievements for display and filtering.
type Category string

const (
	CategorySessions    Category = "sessions"
	CategoryPerformance Category = "performance"
	CategoryTime        Category = "time"
	CategoryStreaks     Category = "streaks"
	CategorySpecial     Category = "special"
)

// AllCategories returns the categories in display order.
func AllCategories() []Category {
	return []Category{CategorySessions, CategoryPerformance, CategoryTime, CategoryStreaks, CategorySpecial}
}

// Valid reports whether c is a declared category.
func (c Category) Valid() bool {
	switch c {
	case CategorySessions, CategoryPerformance, CategoryTime, CategoryStreaks, CategorySpecial:
		return true
	default:
		return false
	}
}
