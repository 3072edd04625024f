package game

import (
	"context"
	"errors"
	"fmt"

	"omcip.game/internal/catalog"
)

// Precondition failures are plain sentinel errors so callers can
// branch on them; nothing purchase-related ever mutates state before
// the server confirms, so rejection needs no rollback.
var (
	ErrAlreadyPurchased  = errors.New("already purchased")
	ErrLocked            = errors.New("locked")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrOnCooldown        = errors.New("on cooldown")
	ErrUnknownItem       = errors.New("unknown item")
)

// CanPurchaseUpgrade reports whether the upgrade is currently
// purchasable and, when not, a display reason.
func (e *Engine) CanPurchaseUpgrade(id string) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canPurchaseUpgrade(id)
}

// The chain rules mirror the live catalog layout: each upgrade needs
// the previous one, position 4 additionally needs character 2, and the
// assistant (position 6) needs auto-clicker level 5.
func (e *Engine) canPurchaseUpgrade(id string) (bool, string) {
	if e.purchasedUpgrades[id] {
		return false, "already purchased"
	}
	idx := -1
	for i, u := range e.upgrades {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, "unknown upgrade"
	}
	if idx == 0 {
		return true, ""
	}
	if idx == catalog.UpgradeIdxAssistant {
		if e.autoClickerLevel < 5 {
			return false, "requires auto-clicker level 5"
		}
		if !e.upgradeIndexPurchased(idx - 1) {
			return false, prevUpgradeReason(e.upgrades, idx)
		}
		return true, ""
	}
	if idx == catalog.UpgradeIdxChar2Gate {
		if !e.upgradeIndexPurchased(idx - 1) {
			return false, prevUpgradeReason(e.upgrades, idx)
		}
		if !e.state.Unlocks.Characters.Has(2) {
			return false, "requires character 2"
		}
		return true, ""
	}
	if !e.upgradeIndexPurchased(idx - 1) {
		return false, prevUpgradeReason(e.upgrades, idx)
	}
	return true, ""
}

func prevUpgradeReason(upgrades []catalog.Upgrade, idx int) string {
	if idx-1 >= 0 && idx-1 < len(upgrades) {
		return fmt.Sprintf("requires %s", upgrades[idx-1].Name)
	}
	return "requires previous upgrade"
}

// PurchaseUpgrade buys one click upgrade. Coins are deducted and the
// record added only after the server confirms; the price is read from
// the catalog at confirmation time.
func (e *Engine) PurchaseUpgrade(ctx context.Context, id string) error {
	e.mu.Lock()
	if ok, reason := e.canPurchaseUpgrade(id); !ok {
		e.mu.Unlock()
		if reason == "already purchased" {
			return ErrAlreadyPurchased
		}
		return fmt.Errorf("%w: %s", ErrLocked, reason)
	}
	var cost float64
	found := false
	for _, u := range e.upgrades {
		if u.ID == id {
			cost = u.BaseCost
			found = true
			break
		}
	}
	if !found {
		e.mu.Unlock()
		return ErrUnknownItem
	}
	if e.state.Coins < cost {
		e.mu.Unlock()
		return ErrInsufficientCoins
	}
	e.mu.Unlock()

	if err := e.api.PurchaseUpgrade(ctx, id); err != nil {
		e.telemetryEvent(map[string]any{"event": "purchase_rejected", "kind": "upgrade", "id": id, "error": err.Error()})
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Coins -= cost
	if e.state.Coins < 0 {
		e.state.Coins = 0
	}
	e.purchasedUpgrades[id] = true
	e.recomputeBaseCoinsPerClick()
	e.persistPurchases()
	e.reevaluateUnlocks()
	return nil
}

// CanPurchaseAutoClicker reports purchasability of one ladder level.
func (e *Engine) CanPurchaseAutoClicker(level int) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canPurchaseAutoClicker(level)
}

func (e *Engine) canPurchaseAutoClicker(level int) (bool, string) {
	if e.purchasedAutoLvls[level] {
		return false, "already purchased"
	}
	if _, ok := catalog.AutoClickerLevelFor(level); !ok {
		return false, "unknown level"
	}
	if level == 4 && !e.state.Unlocks.Characters.Has(3) {
		return false, "requires character 3"
	}
	if level > 1 && !e.purchasedAutoLvls[level-1] {
		return false, "requires previous level"
	}
	return true, ""
}

// PurchaseAutoClickerNextLevel buys the next ladder level.
func (e *Engine) PurchaseAutoClickerNextLevel(ctx context.Context) error {
	e.mu.Lock()
	next := e.autoClickerLevel + 1
	if ok, reason := e.canPurchaseAutoClicker(next); !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLocked, reason)
	}
	cfg, _ := catalog.AutoClickerLevelFor(next)
	if e.state.Coins < cfg.Cost {
		e.mu.Unlock()
		return ErrInsufficientCoins
	}
	e.mu.Unlock()

	newLevel, err := e.api.PurchaseAutoClickerLevel(ctx)
	if err != nil {
		e.telemetryEvent(map[string]any{"event": "purchase_rejected", "kind": "autoclicker", "level": next, "error": err.Error()})
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Coins -= cfg.Cost
	if e.state.Coins < 0 {
		e.state.Coins = 0
	}
	if newLevel < next {
		newLevel = next
	}
	e.autoClickerLevel = newLevel
	for l := 1; l <= newLevel; l++ {
		e.purchasedAutoLvls[l] = true
	}
	e.persistPurchases()
	return nil
}

// PurchaseCharacter3 is the explicit paid unlock for character 3. It
// never fires automatically, regardless of affordability.
func (e *Engine) PurchaseCharacter3(ctx context.Context) error {
	e.mu.Lock()
	if !e.state.Unlocks.Characters.Has(2) {
		e.mu.Unlock()
		return fmt.Errorf("%w: requires character 2", ErrLocked)
	}
	if e.state.Unlocks.Characters.Has(3) {
		e.mu.Unlock()
		return ErrAlreadyPurchased
	}
	if e.state.Coins < catalog.Character3Cost {
		e.mu.Unlock()
		return ErrInsufficientCoins
	}
	e.mu.Unlock()

	if err := e.api.PurchaseCharacter3(ctx, catalog.Character3Cost); err != nil {
		e.telemetryEvent(map[string]any{"event": "purchase_rejected", "kind": "character3", "error": err.Error()})
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Coins -= catalog.Character3Cost
	if e.state.Coins < 0 {
		e.state.Coins = 0
	}
	e.character3Paid = true
	e.reevaluateUnlocks()
	return nil
}

func (e *Engine) serviceUnlocked(s catalog.Service) (bool, string) {
	if s.RequiresBackground2 && !e.state.Unlocks.Backgrounds.Has(2) {
		return false, "requires background 2"
	}
	if s.RequiredReferrals > 0 && e.state.InvitedFriendsCount < s.RequiredReferrals {
		return false, fmt.Sprintf("invite %d more friends", s.RequiredReferrals-e.state.InvitedFriendsCount)
	}
	return true, ""
}

// PurchaseService buys one service, honoring gating and cooldown.
func (e *Engine) PurchaseService(ctx context.Context, id string) error {
	e.mu.Lock()
	var svc *catalog.Service
	for i := range e.services {
		if e.services[i].ID == id {
			svc = &e.services[i]
			break
		}
	}
	if svc == nil {
		e.mu.Unlock()
		return ErrUnknownItem
	}
	if ok, reason := e.serviceUnlocked(*svc); !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLocked, reason)
	}
	if _, on := e.serviceCooldownAt(*svc, e.now()); on {
		e.mu.Unlock()
		return ErrOnCooldown
	}
	cost := svc.CostCoins
	if e.state.Coins < cost {
		e.mu.Unlock()
		return ErrInsufficientCoins
	}
	e.mu.Unlock()

	if err := e.api.PurchaseService(ctx, id); err != nil {
		e.telemetryEvent(map[string]any{"event": "purchase_rejected", "kind": "service", "id": id, "error": err.Error()})
		return err
	}

	e.mu.Lock()
	e.state.Coins -= cost
	if e.state.Coins < 0 {
		e.state.Coins = 0
	}
	e.userServices = append(e.userServices, catalog.PurchaseRecord{ID: id, PurchasedAt: e.now()})
	e.mu.Unlock()

	go e.refreshUserServices(context.Background())
	return nil
}

// ClaimTaskReward claims a completed task. Claiming the weekly task
// that gates background 3 also opens that tier once background 2 is
// present.
func (e *Engine) ClaimTaskReward(ctx context.Context, id string) error {
	reward, err := e.api.ClaimTaskReward(ctx, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.state.Coins += reward
	for i := range e.weekly {
		if e.weekly[i].ID == id {
			e.weekly[i].Claimed = true
			if e.weekly[i].UnlocksBackground3 {
				e.weeklyBgTaskClaimed = true
			}
		}
	}
	for i := range e.daily {
		if e.daily[i].ID == id {
			e.daily[i].Claimed = true
		}
	}
	e.reevaluateUnlocks()
	e.mu.Unlock()

	go e.RefreshTasks(context.Background())
	return nil
}

// ClaimLoginReward claims the login-calendar day. Day 7 completes the
// post-tooth-2 streak and unlocks background 2; boost-type rewards
// arrive via the fresh snapshot pulled afterwards.
func (e *Engine) ClaimLoginReward(ctx context.Context, day int) error {
	reward, err := e.api.ClaimLoginReward(ctx, day)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.state.Coins += reward
	for i := range e.loginRewards {
		if e.loginRewards[i].Day == day {
			e.loginRewards[i].Claimed = true
			e.loginRewards[i].ClaimedToday = true
		}
	}
	if day >= background2StreakDays && e.state.CurrentLoginStreak < day {
		e.state.CurrentLoginStreak = day
		e.persistCounters()
	}
	e.reevaluateUnlocks()
	e.mu.Unlock()

	if snap, err := e.api.GameState(ctx); err == nil {
		e.ApplySnapshot(snap)
	}
	return nil
}

// SkipDailyTask spends the skip on one daily task.
func (e *Engine) SkipDailyTask(ctx context.Context, id string) error {
	if err := e.api.SkipDailyTask(ctx, id); err != nil {
		return err
	}
	go e.RefreshTasks(context.Background())
	return nil
}
