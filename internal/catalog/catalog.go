// Package catalog holds server-provided reference data: upgrades,
// services, tasks, login rewards and the auto-clicker level table.
// Entries are read-mostly; the client never edits them, only mirrors
// purchase records against them.
package catalog

import "time"

// Upgrade is one entry of the ordered click-upgrade chain. Order is
// the position in the server's list; the unlock graph keys off
// positions, not ids, because ids differ between deployments.
type Upgrade struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	BaseCost  float64 `json:"base_cost"`
	BaseValue float64 `json:"base_value"` // added to coins-per-click when owned
	Order     int     `json:"order"`

	LevelRequirement     int `json:"level_requirement,omitempty"`
	CharacterRequirement int `json:"character_requirement,omitempty"`
}

// Chain positions with special meaning, mirrored from the live
// catalog layout.
const (
	UpgradeIdxTooth2    = 1 // purchase unlocks tooth tier 2
	UpgradeIdxChar2Gate = 4 // requires character 2; unlocks character 2 path + tooth 3
	UpgradeIdxAssistant = 6 // requires auto-clicker level 5 + previous upgrade
)

type Service struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	CostCoins    float64 `json:"cost_coins"`
	CooldownDays int     `json:"cooldown_days"`

	// Gating, resolved client-side from unlock state.
	RequiresBackground2 bool `json:"requires_background2,omitempty"`
	RequiredReferrals   int  `json:"required_referrals,omitempty"`
}

type TaskKind string

const (
	TaskKindTap      TaskKind = "tap"
	TaskKindReferral TaskKind = "referral"
	TaskKindLogin    TaskKind = "login"
	TaskKindOther    TaskKind = "other"
)

type Task struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Kind             TaskKind `json:"kind"`
	RequirementValue float64  `json:"requirement_value"`
	RewardCoins      float64  `json:"reward_coins"`
	Weekly           bool     `json:"weekly,omitempty"`

	// UnlocksBackground3 marks the weekly task whose claimed reward
	// opens background tier 3.
	UnlocksBackground3 bool `json:"unlocks_background3,omitempty"`
}

type LoginRewardDay struct {
	Day         int     `json:"day"`
	RewardCoins float64 `json:"reward_coins,omitempty"`
	BoostMult   float64 `json:"boost_multiplier,omitempty"`
	BoostMins   int     `json:"boost_minutes,omitempty"`
}

// AutoClickerLevel is one row of the passive-income ladder.
type AutoClickerLevel struct {
	Level        int     `json:"level"`
	Cost         float64 `json:"cost"`
	CoinsPerHour float64 `json:"coins_per_hour"`
}

// AutoClickerLevels is the five-step ladder from the live game.
// Level 4 additionally requires character 3.
var AutoClickerLevels = []AutoClickerLevel{
	{Level: 1, Cost: 10000, CoinsPerHour: 1000},
	{Level: 2, Cost: 96000, CoinsPerHour: 1500},
	{Level: 3, Cost: 252000, CoinsPerHour: 2500},
	{Level: 4, Cost: 660000, CoinsPerHour: 4000},
	{Level: 5, Cost: 1536000, CoinsPerHour: 6000},
}

// AutoClickerLevelFor returns the ladder row for level n, or false
// when n is off the ladder.
func AutoClickerLevelFor(n int) (AutoClickerLevel, bool) {
	for _, l := range AutoClickerLevels {
		if l.Level == n {
			return l, true
		}
	}
	return AutoClickerLevel{}, false
}

// AutoClickerIncome sums coins-per-hour of all levels up to and
// including owned.
func AutoClickerIncome(owned int) float64 {
	var total float64
	for _, l := range AutoClickerLevels {
		if l.Level <= owned {
			total += l.CoinsPerHour
		}
	}
	return total
}

// Character3Cost is the paid one-time unlock price for character 3.
const Character3Cost = 1_000_000

// PurchaseRecord notes that a catalog entry was bought and when. The
// price paid is deliberately absent: cost is always recomputed from
// the catalog so index-dependent price changes stay correct.
type PurchaseRecord struct {
	ID          string
	PurchasedAt time.Time
}
