package game

import (
	"context"
	"encoding/json"
	"time"

	"omcip.game/internal/catalog"
	"omcip.game/internal/protocol"
)

// HandleMessage is the push-channel entry point. Messages are applied
// in arrival order; unknown tags are dropped without error.
func (e *Engine) HandleMessage(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeState:
		var s protocol.StateSnapshot
		if err := json.Unmarshal(env.Data, &s); err != nil {
			e.log.Printf("bad %s payload: %v", env.Type, err)
			return
		}
		e.ApplySnapshot(s)

	case protocol.TypeEnergyUpdate:
		var u protocol.EnergyUpdate
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return
		}
		e.applyEnergyCorrection(u)

	case protocol.TypeAutoClickerEarnings:
		var a protocol.AutoClickerEarnings
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return
		}
		e.applyEarnings(a)

	case protocol.TypeClickResult:
		var r protocol.ClickResult
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return
		}
		e.applyClickResult(r)

	case protocol.TypeTaskCompleted:
		go e.RefreshTasks(context.Background())

	case protocol.TypeTaskClaimed:
		var tc protocol.TaskClaimed
		if err := json.Unmarshal(env.Data, &tc); err != nil {
			return
		}
		e.applyTaskClaimed(tc)
		go e.RefreshTasks(context.Background())

	case protocol.TypeServicePurchased:
		var sp protocol.ServicePurchased
		if err := json.Unmarshal(env.Data, &sp); err != nil {
			return
		}
		e.log.Printf("service purchased elsewhere: %s", sp.ServiceID)
		go e.refreshUserServices(context.Background())

	case protocol.TypeError:
		var em protocol.ErrorMsg
		_ = json.Unmarshal(env.Data, &em)
		if !protocol.IsKnownCode(em.Code) {
			e.log.Printf("server error (unknown code %q): %s", em.Code, em.Message)
			return
		}
		e.log.Printf("server error %s: %s", em.Code, em.Message)

	default:
		// Ignore unrecognized tags; the contract evolves server-first.
	}
}

// ApplySnapshot merges an authoritative snapshot. Only fields present
// in the payload overwrite local state; absent fields mean "no update",
// never zero.
func (e *Engine) ApplySnapshot(s protocol.StateSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.Coins != nil {
		e.state.Coins = *s.Coins
	}
	if s.MaxEnergy != nil {
		e.state.MaxEnergy = *s.MaxEnergy
	}
	if s.Energy != nil {
		e.state.Energy = clamp(*s.Energy, 0, e.state.MaxEnergy)
	}
	if s.EnergyRegenRate != nil {
		e.state.EnergyRegenRate = *s.EnergyRegenRate
	}

	if s.Level != nil {
		e.state.Level = *s.Level
		e.state.ExpRequired = ExpRequired(e.state.Level)
	}
	// Experience arrives as the raw lifetime total. Rebuild "progress
	// toward next level" through the shared formula so level-ups already
	// cascaded locally are not double-counted. A snapshot computed
	// before a local cascade can still look like a regression; without
	// snapshot sequence numbers we accept it and let the next snapshot
	// converge (see DESIGN.md).
	if s.Experience != nil && s.Level != nil {
		rem := *s.Experience - ExpUsedBelow(*s.Level)
		if rem < 0 {
			rem = 0
		}
		e.state.ExpCurrent = rem
	}

	if s.BaseCoinsPerClick != nil {
		e.state.BaseCoinsPerClick = *s.BaseCoinsPerClick
	}

	// The server is authoritative for boost existence: any snapshot that
	// carries no valid boost clears the local bonus.
	e.applyBoostsLocked(s.ActiveBoosts)

	// Server unlock arrays replace local sets, with 1 always present.
	unlockTouched := false
	countersTouched := false
	if s.UnlockedCharacters != nil {
		e.state.Unlocks.Characters = tierSetOf(s.UnlockedCharacters)
		if e.state.Unlocks.Characters.Has(2) {
			e.backfillUpgradeLocked(catalog.UpgradeIdxChar2Gate)
		}
		unlockTouched = true
	}
	if s.UnlockedTeeth != nil {
		e.state.Unlocks.Teeth = tierSetOf(s.UnlockedTeeth)
		if e.state.Unlocks.Teeth.Has(2) {
			e.backfillUpgradeLocked(catalog.UpgradeIdxTooth2)
			if !e.state.LoginStreakStartedAfterTooth2 {
				e.state.LoginStreakStartedAfterTooth2 = true
				countersTouched = true
			}
		}
		if e.state.Unlocks.Teeth.Has(3) {
			e.backfillUpgradeLocked(catalog.UpgradeIdxChar2Gate)
		}
		unlockTouched = true
	}
	if s.UnlockedBackgrounds != nil {
		e.state.Unlocks.Backgrounds = tierSetOf(s.UnlockedBackgrounds)
		unlockTouched = true
	}

	if s.InvitedFriendsCount != nil {
		e.state.InvitedFriendsCount = *s.InvitedFriendsCount
	}
	if s.LoginStreakStartedAfterTooth2 != nil {
		e.state.LoginStreakStartedAfterTooth2 = *s.LoginStreakStartedAfterTooth2
	}

	if s.UserServices != nil {
		e.userServices = e.userServices[:0]
		for _, us := range s.UserServices {
			at, err := time.Parse(time.RFC3339, us.PurchasedAt)
			if err != nil {
				continue
			}
			e.userServices = append(e.userServices, catalog.PurchaseRecord{ID: us.ServiceID, PurchasedAt: at})
		}
	}

	e.recomputeCoinsPerClick()
	if unlockTouched {
		e.persistUnlocks()
		e.persistPurchases()
	}
	if countersTouched || s.InvitedFriendsCount != nil || s.LoginStreakStartedAfterTooth2 != nil {
		e.persistCounters()
	}
	e.reevaluateUnlocks()
}

// applyBoostsLocked installs the first still-valid boost or clears the
// local bonus. The server is authoritative for boost existence: a
// snapshot without boosts removes any local one, and a boost with
// non-positive remaining time is already expired and never installed.
func (e *Engine) applyBoostsLocked(boosts []protocol.Boost) {
	now := e.now()
	for _, b := range boosts {
		remaining := time.Duration(b.RemainingSeconds * float64(time.Second))
		expiresAt := now.Add(remaining)
		if b.RemainingSeconds == 0 && b.EndsAt != "" {
			if t, err := time.Parse(time.RFC3339, b.EndsAt); err == nil {
				expiresAt = t
				remaining = t.Sub(now)
			}
		}
		if remaining <= 0 {
			continue
		}
		typ := b.Type
		if typ == "" {
			typ = "tap_multiplier"
		}
		e.state.ActiveBonus = &Bonus{Type: typ, Multiplier: b.Multiplier, ExpiresAt: expiresAt}
		return
	}
	e.state.ActiveBonus = nil
}

// backfillUpgradeLocked marks the upgrade at a chain position as
// purchased when a server unlock implies it, keeping the purchase-gated
// unlock conditions consistent with server truth.
func (e *Engine) backfillUpgradeLocked(idx int) {
	u, ok := e.upgradeAtIndex(idx)
	if !ok || e.purchasedUpgrades[u.ID] {
		return
	}
	e.purchasedUpgrades[u.ID] = true
}

func (e *Engine) applyEnergyCorrection(u protocol.EnergyUpdate) {
	if u.Energy == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Energy = clamp(*u.Energy, 0, e.state.MaxEnergy)
}

func (e *Engine) applyEarnings(a protocol.AutoClickerEarnings) {
	if a.Coins == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Coins = *a.Coins
}

// applyClickResult corrects coins/energy to the server's authoritative
// values. Experience and level from the acknowledged taps stay as
// applied locally; only the effective multiplier is resynchronized.
func (e *Engine) applyClickResult(r protocol.ClickResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r.Coins != nil {
		e.state.Coins = *r.Coins
	}
	if r.Energy != nil {
		e.state.Energy = clamp(*r.Energy, 0, e.state.MaxEnergy)
	}
	if r.CurrentMultiplier != nil {
		m := *r.CurrentMultiplier
		if m > 1 {
			if e.state.ActiveBonus != nil {
				e.state.ActiveBonus.Multiplier = m
			} else {
				// Multiplier reported with no local bonus: adopt it and
				// let the server end it (zero expiry).
				e.state.ActiveBonus = &Bonus{Type: "tap_multiplier", Multiplier: m}
			}
		} else {
			e.state.ActiveBonus = nil
		}
		e.recomputeCoinsPerClick()
	}
}

func (e *Engine) applyTaskClaimed(tc protocol.TaskClaimed) {
	if tc.RewardCoins == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Coins += *tc.RewardCoins
}

func (e *Engine) refreshUserServices(ctx context.Context) {
	if e.api == nil {
		return
	}
	recs, err := e.api.UserServices(ctx)
	if err != nil {
		e.log.Printf("user services refresh: %v", err)
		return
	}
	e.mu.Lock()
	e.userServices = recs
	e.mu.Unlock()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi > lo && v > hi {
		return hi
	}
	return v
}
