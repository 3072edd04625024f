package game

import (
	"context"
	"time"

	"omcip.game/internal/catalog"
)

// TaskState mirrors one server task plus the client's optimistic
// progress view. Completion and claim eligibility stay server-owned;
// local progress is display-only.
type TaskState struct {
	catalog.Task

	Progress  float64
	Completed bool
	Claimed   bool
}

// LoginRewardState mirrors one day of the login-reward calendar.
type LoginRewardState struct {
	catalog.LoginRewardDay

	Claimed      bool
	ClaimedToday bool
}

// creditTapProgress bumps every tap-kind task by one, capped at its
// requirement. Runs in lockstep with totalTaps.
func creditTapProgress(tasks []TaskState) {
	for i := range tasks {
		t := &tasks[i]
		if t.Kind != catalog.TaskKindTap || t.Completed {
			continue
		}
		t.Progress++
		if t.RequirementValue > 0 && t.Progress >= t.RequirementValue {
			t.Progress = t.RequirementValue
			t.Completed = true
		}
	}
}

// creditReferralProgress sets every referral-kind task's progress from
// the server's per-window referral counter. Unlike tap progress this
// has no optimistic local component: the window counter is reset
// server-side and is the only source of truth.
func creditReferralProgress(tasks []TaskState, count int) {
	for i := range tasks {
		t := &tasks[i]
		if t.Kind != catalog.TaskKindReferral || t.Completed {
			continue
		}
		t.Progress = float64(count)
		if t.RequirementValue > 0 && t.Progress >= t.RequirementValue {
			t.Progress = t.RequirementValue
			t.Completed = true
		}
	}
}

// RefreshTasks re-pulls the daily/weekly lists and the login-reward
// calendar from the backend. Safe to call from any goroutine.
func (e *Engine) RefreshTasks(ctx context.Context) {
	if e.api == nil {
		return
	}
	daily, errD := e.api.DailyTasks(ctx)
	weekly, errW := e.api.WeeklyTasks(ctx)
	rewards, streak, errR := e.api.LoginRewards(ctx)
	dailyRefs, weeklyRefs, errC := e.api.ReferralTaskCounts(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if errD == nil {
		e.daily = e.mergeTapProgress(daily)
		if errC == nil {
			creditReferralProgress(e.daily, dailyRefs)
		}
	}
	if errW == nil {
		e.weekly = e.mergeTapProgress(weekly)
		if errC == nil {
			creditReferralProgress(e.weekly, weeklyRefs)
		}
	}
	if errR == nil {
		e.loginRewards = rewards
		if streak != e.state.CurrentLoginStreak {
			e.state.CurrentLoginStreak = streak
			e.persistCounters()
		}
		e.reevaluateUnlocks()
	}
	if errD != nil || errW != nil || errR != nil || errC != nil {
		e.log.Printf("task refresh incomplete: daily=%v weekly=%v rewards=%v referrals=%v", errD, errW, errR, errC)
	}
}

// mergeTapProgress keeps local optimistic tap progress when the server
// copy lags behind it. The server remains authoritative for completed
// and claimed.
func (e *Engine) mergeTapProgress(fresh []TaskState) []TaskState {
	local := map[string]float64{}
	for _, t := range append(append([]TaskState{}, e.daily...), e.weekly...) {
		if t.Kind == catalog.TaskKindTap {
			local[t.ID] = t.Progress
		}
	}
	for i := range fresh {
		t := &fresh[i]
		if t.Kind != catalog.TaskKindTap || t.Completed {
			continue
		}
		if p, ok := local[t.ID]; ok && p > t.Progress {
			t.Progress = p
			if t.RequirementValue > 0 && t.Progress >= t.RequirementValue {
				t.Progress = t.RequirementValue
			}
		}
	}
	return fresh
}

// HasClaimableTasks reports whether any completed-but-unclaimed task
// or today's login reward is waiting.
func (e *Engine) HasClaimableTasks() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.daily {
		if t.Completed && !t.Claimed {
			return true
		}
	}
	for _, t := range e.weekly {
		if t.Completed && !t.Claimed {
			return true
		}
	}
	for _, r := range e.loginRewards {
		if r.Day == e.state.CurrentLoginStreak && !r.Claimed && !r.ClaimedToday {
			return true
		}
	}
	return false
}

// HasAvailableUpgrades reports whether any upgrade (or the next
// auto-clicker level) is both unlocked and affordable right now.
func (e *Engine) HasAvailableUpgrades() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, u := range e.upgrades {
		if e.purchasedUpgrades[u.ID] {
			continue
		}
		if e.state.Coins < u.BaseCost {
			continue
		}
		if ok, _ := e.canPurchaseUpgrade(u.ID); ok {
			return true
		}
	}
	next := e.autoClickerLevel + 1
	if cfg, ok := catalog.AutoClickerLevelFor(next); ok {
		if e.state.Coins >= cfg.Cost {
			if ok, _ := e.canPurchaseAutoClicker(next); ok {
				return true
			}
		}
	}
	return false
}

// HasAvailableServices reports whether any service is unlocked,
// affordable and off cooldown.
func (e *Engine) HasAvailableServices() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	for _, s := range e.services {
		if e.state.Coins < s.CostCoins {
			continue
		}
		if ok, _ := e.serviceUnlocked(s); !ok {
			continue
		}
		if _, on := e.serviceCooldownAt(s, now); on {
			continue
		}
		return true
	}
	return false
}

// ServiceCooldown returns the remaining cooldown for a purchased
// service with a cooldown window.
func (e *Engine) ServiceCooldown(serviceID string) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.services {
		if s.ID == serviceID {
			return e.serviceCooldownAt(s, e.now())
		}
	}
	return 0, false
}

func (e *Engine) serviceCooldownAt(s catalog.Service, now time.Time) (time.Duration, bool) {
	if s.CooldownDays <= 0 {
		return 0, false
	}
	var latest time.Time
	for _, rec := range e.userServices {
		if rec.ID == s.ID && rec.PurchasedAt.After(latest) {
			latest = rec.PurchasedAt
		}
	}
	if latest.IsZero() {
		return 0, false
	}
	until := latest.Add(time.Duration(s.CooldownDays) * 24 * time.Hour)
	if !now.Before(until) {
		return 0, false
	}
	return until.Sub(now), true
}
