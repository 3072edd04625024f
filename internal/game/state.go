package game

import (
	"sort"
	"time"
)

// PlayerState is the single mutable aggregate the engine owns. It is
// seeded with defaults, overwritten piecewise by server snapshots, and
// mutated only through the engine's operations.
type PlayerState struct {
	Coins float64

	Level       int
	ExpCurrent  float64
	ExpRequired float64

	Energy          float64
	MaxEnergy       float64
	EnergyRegenRate float64 // per tick

	// BaseCoinsPerClick is recomputed from the purchased upgrade list,
	// never incremented ad hoc.
	BaseCoinsPerClick float64
	// CoinsPerClick is always base x active bonus multiplier.
	CoinsPerClick float64

	// TotalTaps only ever grows; it feeds unlock thresholds.
	TotalTaps int64

	ActiveBonus *Bonus

	Unlocks Unlocks

	InvitedFriendsCount           int
	CurrentLoginStreak            int
	LoginStreakStartedAfterTooth2 bool
}

func defaultPlayerState() PlayerState {
	return PlayerState{
		Level:             1,
		ExpRequired:       ExpRequired(1),
		Energy:            10000,
		MaxEnergy:         10000,
		EnergyRegenRate:   1,
		BaseCoinsPerClick: 1,
		CoinsPerClick:     1,
		Unlocks:           newUnlocks(),
	}
}

// Bonus is a temporary tap multiplier. A zero ExpiresAt means the
// server reported the multiplier without a deadline; only the server
// clears those.
type Bonus struct {
	Type       string
	Multiplier float64
	ExpiresAt  time.Time
}

// TierSet is one monotonic set of unlocked content tiers. Members are
// only ever added locally; only authoritative snapshots replace it.
type TierSet map[int]struct{}

func (s TierSet) Has(tier int) bool { _, ok := s[tier]; return ok }

func (s TierSet) Add(tier int) bool {
	if s.Has(tier) {
		return false
	}
	s[tier] = struct{}{}
	return true
}

// Highest returns the top unlocked tier, at minimum 1.
func (s TierSet) Highest() int {
	best := 1
	for t := range s {
		if t > best {
			best = t
		}
	}
	return best
}

// Sorted returns the tiers in ascending order, for persistence and
// wire payloads.
func (s TierSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

func tierSetOf(tiers []int) TierSet {
	s := TierSet{1: {}}
	for _, t := range tiers {
		if t >= 1 {
			s[t] = struct{}{}
		}
	}
	return s
}

// Unlocks groups the three independent unlock categories.
type Unlocks struct {
	Characters  TierSet
	Teeth       TierSet
	Backgrounds TierSet
}

func newUnlocks() Unlocks {
	return Unlocks{
		Characters:  TierSet{1: {}},
		Teeth:       TierSet{1: {}},
		Backgrounds: TierSet{1: {}},
	}
}

// Visuals names the sprite tier to show per category: always the
// highest unlocked tier.
type Visuals struct {
	Character  int
	Tooth      int
	Background int
}

func (u Unlocks) Visuals() Visuals {
	return Visuals{
		Character:  u.Characters.Highest(),
		Tooth:      u.Teeth.Highest(),
		Background: u.Backgrounds.Highest(),
	}
}
