package progression

import (
	"fmt"

	"github.com/prepwise/progression-engine/internal/domain/shared"
)

// RankDefinition is one row of the rank table.
type RankDefinition struct {
	Name  string
	Level RankLevel
	MinXP int
	Perks []string
}

// Label returns e.g. "Practitioner II".
func (r RankDefinition) Label() string {
	return r.Name + " " + r.Level.String()
}

// RankTable is an ordered, validated list of ranks. Immutable after construction.
type RankTable struct {
	ranks []RankDefinition
}

// NewRankTable validates and copies defs.
// Rules: the first rank starts at 0 XP, MinXP strictly increases, and levels run
// I→II→III inside a name before the name changes.
func NewRankTable(defs []RankDefinition) (*RankTable, error) {
	const op = "NewRankTable"
	if len(defs) == 0 {
		return nil, shared.NewDomainError("progression", op, shared.ErrValidation, "rank table is empty")
	}
	for _, d := range defs {
		if d.Level < LevelI || d.Level > LevelIII {
			return nil, shared.NewDomainError("progression", op, shared.ErrValidation,
				fmt.Sprintf("rank %q has unknown level %d", d.Name, int(d.Level)))
		}
	}
	if defs[0].MinXP != 0 {
		return nil, shared.NewDomainError("progression", op, shared.ErrValidation, "first rank must start at 0 xp")
	}
	if defs[0].Level != LevelI {
		return nil, shared.NewDomainError("progression", op, shared.ErrValidation, "first rank must be level I")
	}

	for i := 1; i < len(defs); i++ {
		prev, cur := defs[i-1], defs[i]
		if cur.MinXP <= prev.MinXP {
			return nil, shared.NewDomainError("progression", op, shared.ErrValidation,
				fmt.Sprintf("rank %q: min xp %d does not exceed %d", cur.Label(), cur.MinXP, prev.MinXP))
		}
		wantLevel, nameAdvances := prev.Level.Successor()
		if cur.Level != wantLevel || (cur.Name != prev.Name) != nameAdvances {
			return nil, shared.NewDomainError("progression", op, shared.ErrValidation,
				fmt.Sprintf("rank %q breaks the I-II-III cycle after %q", cur.Label(), prev.Label()))
		}
	}

	ranks := make([]RankDefinition, len(defs))
	for i, d := range defs {
		d.Perks = append([]string(nil), d.Perks...)
		ranks[i] = d
	}
	return &RankTable{ranks: ranks}, nil
}

// MustRankTable panics on an invalid table. For compiled-in data only.
func MustRankTable(defs []RankDefinition) *RankTable {
	t, err := NewRankTable(defs)
	if err != nil {
		panic(err)
	}
	return t
}

// Ranks returns a copy of the rows.
func (t *RankTable) Ranks() []RankDefinition {
	out := make([]RankDefinition, len(t.ranks))
	copy(out, t.ranks)
	return out
}

func (t *RankTable) indexFor(xp int) int {
	idx := 0
	for i, r := range t.ranks {
		if r.MinXP > xp {
			break
		}
		idx = i
	}
	return idx
}

// Current returns the highest rank whose MinXP <= xp. The lower bound is inclusive.
func (t *RankTable) Current(xp int) RankDefinition {
	return t.ranks[t.indexFor(xp)]
}

// Next returns the rank after the current one, or nil at the ceiling.
func (t *RankTable) Next(xp int) *RankDefinition {
	i := t.indexFor(xp)
	if i+1 >= len(t.ranks) {
		return nil
	}
	next := t.ranks[i+1]
	return &next
}

// ProgressToNext returns percent progress toward the next rank in [0,100];
// 100 when there is no next rank.
func (t *RankTable) ProgressToNext(xp int) float64 {
	cur := t.Current(xp)
	next := t.Next(xp)
	if next == nil {
		return 100
	}
	span := float64(next.MinXP - cur.MinXP)
	return clamp(float64(xp-cur.MinXP)/span*100, 0, 100)
}

var defaultRanks = MustRankTable([]RankDefinition{
	{Name: "Novice", Level: LevelI, MinXP: 0, Perks: []string{"Daily practice interviews"}},
	{Name: "Novice", Level: LevelII, MinXP: 100, Perks: []string{"Progress history"}},
	{Name: "Novice", Level: LevelIII, MinXP: 250, Perks: []string{"Custom interview topics"}},
	{Name: "Practitioner", Level: LevelI, MinXP: 500, Perks: []string{"Detailed feedback reports"}},
	{Name: "Practitioner", Level: LevelII, MinXP: 800, Perks: []string{"Behavioral question bank"}},
	{Name: "Practitioner", Level: LevelIII, MinXP: 1200, Perks: []string{"Profile badge"}},
	{Name: "Professional", Level: LevelI, MinXP: 1700, Perks: []string{"System design track"}},
	{Name: "Professional", Level: LevelII, MinXP: 2300, Perks: []string{"Mock panel interviews"}},
	{Name: "Professional", Level: LevelIII, MinXP: 3000, Perks: []string{"Roadmap idea highlight"}},
	{Name: "Expert", Level: LevelI, MinXP: 4000, Perks: []string{"Recruiter visibility"}},
	{Name: "Expert", Level: LevelII, MinXP: 5200, Perks: []string{"Priority feedback"}},
	{Name: "Expert", Level: LevelIII, MinXP: 6600, Perks: []string{"Expert profile frame"}},
	{Name: "Master", Level: LevelI, MinXP: 8500, Perks: []string{"Mentor badge"}},
	{Name: "Master", Level: LevelII, MinXP: 11000, Perks: []string{"Early feature access"}},
	{Name: "Master", Level: LevelIII, MinXP: 14000, Perks: []string{"Hall of fame"}},
})

// DefaultRanks returns the compiled-in rank table.
func DefaultRanks() *RankTable {
	return defaultRanks
}
