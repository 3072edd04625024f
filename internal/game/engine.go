// Package game implements the client-side state engine: optimistic
// tap simulation, batched delivery, authoritative-snapshot
// reconciliation and the derived unlock graph.
package game

import (
	"context"
	"log"
	"sync"
	"time"

	"omcip.game/internal/catalog"
	"omcip.game/internal/protocol"
	"omcip.game/internal/tuning"
)

// Pusher is the push channel. Send reports accepted-for-delivery, not
// delivery; false while disconnected so callers can fall back.
type Pusher interface {
	Send(tag string, data any) bool
}

// Backend is the request/response side of the server contract.
type Backend interface {
	SendClick(ctx context.Context, batch protocol.ClickBatchMsg) error
	GameState(ctx context.Context) (protocol.StateSnapshot, error)

	Upgrades(ctx context.Context) ([]catalog.Upgrade, error)
	UserUpgrades(ctx context.Context) ([]string, error)
	Services(ctx context.Context) ([]catalog.Service, error)
	UserServices(ctx context.Context) ([]catalog.PurchaseRecord, error)
	AutoClickerStatus(ctx context.Context) (int, error)
	ReferralStats(ctx context.Context) (int, error)
	ReferralTaskCounts(ctx context.Context) (daily, weekly int, err error)

	DailyTasks(ctx context.Context) ([]TaskState, error)
	WeeklyTasks(ctx context.Context) ([]TaskState, error)
	LoginRewards(ctx context.Context) ([]LoginRewardState, int, error)

	PurchaseUpgrade(ctx context.Context, id string) error
	PurchaseAutoClickerLevel(ctx context.Context) (int, error)
	PurchaseService(ctx context.Context, id string) error
	PurchaseCharacter3(ctx context.Context, cost float64) error
	ClaimTaskReward(ctx context.Context, id string) (float64, error)
	ClaimLoginReward(ctx context.Context, day int) (float64, error)
	SkipDailyTask(ctx context.Context, id string) error
}

// Store receives the durable slice of state: unlock sets, purchase
// flags and the referral/streak counters. Everything else is ephemeral
// cache re-seeded from a fresh snapshot.
type Store interface {
	PutInts(key string, vals []int) error
	PutStrings(key string, vals []string) error
	PutInt(key string, v int) error
	PutBool(key string, v bool) error
}

// Telemetry collects non-fatal operational events (dropped batches,
// rejected purchases).
type Telemetry interface {
	Write(v any) error
}

// Durable store keys.
const (
	KeyUnlockedCharacters  = "unlocks/characters"
	KeyUnlockedTeeth       = "unlocks/teeth"
	KeyUnlockedBackgrounds = "unlocks/backgrounds"
	KeyPurchasedUpgrades   = "purchases/upgrades"
	KeyAutoClickerLevels   = "purchases/autoclicker_levels"
	KeyInvitedFriends      = "referrals/count"
	KeyLoginStreak         = "streak/days"
	KeyStreakAfterTooth2   = "streak/started_after_tooth2"
)

// Seed restores the durable slice of state from the local store at
// session start.
type Seed struct {
	UnlockedCharacters  []int
	UnlockedTeeth       []int
	UnlockedBackgrounds []int

	PurchasedUpgrades    []string
	AutoClickerLevels    []int
	InvitedFriendsCount  int
	CurrentLoginStreak   int
	StreakStartedAfterT2 bool
}

type Config struct {
	Log       *log.Logger
	Tuning    tuning.Tuning
	Push      Pusher
	Backend   Backend
	Store     Store
	Telemetry Telemetry
	Seed      Seed

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Engine struct {
	mu sync.Mutex

	log  *log.Logger
	tune tuning.Tuning
	now  func() time.Time

	push      Pusher
	api       Backend
	store     Store
	telemetry Telemetry

	state PlayerState

	// Catalog mirrors and purchase records.
	upgrades            []catalog.Upgrade
	services            []catalog.Service
	purchasedUpgrades   map[string]bool
	purchasedAutoLvls   map[int]bool
	autoClickerLevel    int
	character3Paid      bool
	userServices        []catalog.PurchaseRecord
	weeklyBgTaskClaimed bool

	daily        []TaskState
	weekly       []TaskState
	loginRewards []LoginRewardState

	// Tap rate limiting: sliding log of accepted tap times.
	tapTimes []time.Time

	// Pending click batch and its debounce/flush machinery.
	batch         clickBatch
	flushTimer    *time.Timer
	flushInFlight bool
	flushDeferred bool

	closed bool
}

func New(cfg Config) *Engine {
	logger := cfg.Log
	if logger == nil {
		logger = log.New(log.Writer(), "[engine] ", log.LstdFlags|log.Lmicroseconds)
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	e := &Engine{
		log:               logger,
		tune:              cfg.Tuning,
		now:               nowFn,
		push:              cfg.Push,
		api:               cfg.Backend,
		store:             cfg.Store,
		telemetry:         cfg.Telemetry,
		state:             defaultPlayerState(),
		purchasedUpgrades: map[string]bool{},
		purchasedAutoLvls: map[int]bool{},
	}
	e.applySeed(cfg.Seed)
	return e
}

func (e *Engine) applySeed(s Seed) {
	e.state.Unlocks.Characters = tierSetOf(s.UnlockedCharacters)
	e.state.Unlocks.Teeth = tierSetOf(s.UnlockedTeeth)
	e.state.Unlocks.Backgrounds = tierSetOf(s.UnlockedBackgrounds)
	for _, id := range s.PurchasedUpgrades {
		e.purchasedUpgrades[id] = true
	}
	for _, lvl := range s.AutoClickerLevels {
		e.purchasedAutoLvls[lvl] = true
		if lvl > e.autoClickerLevel {
			e.autoClickerLevel = lvl
		}
	}
	e.state.InvitedFriendsCount = s.InvitedFriendsCount
	e.state.CurrentLoginStreak = s.CurrentLoginStreak
	e.state.LoginStreakStartedAfterTooth2 = s.StreakStartedAfterT2
}

// State returns a copy of the aggregate for display. Unlock sets are
// shared maps; callers must treat them as read-only.
func (e *Engine) State() PlayerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Visuals returns the sprite tiers the presentation layer should show.
func (e *Engine) Visuals() Visuals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Unlocks.Visuals()
}

// Run drives the standing periodic tasks: energy regen, bonus expiry,
// last-seen heartbeat and the task-list poll. It blocks until ctx is
// cancelled, then performs teardown (final best-effort flush).
func (e *Engine) Run(ctx context.Context) {
	energy := time.NewTicker(e.tune.EnergyTick())
	bonus := time.NewTicker(e.tune.BonusTick())
	heartbeat := time.NewTicker(e.tune.Heartbeat())
	tasks := time.NewTicker(e.tune.TaskPoll())
	defer energy.Stop()
	defer bonus.Stop()
	defer heartbeat.Stop()
	defer tasks.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Close()
			return
		case <-energy.C:
			e.tickEnergy()
		case <-bonus.C:
			e.TickBonus()
		case <-heartbeat.C:
			e.sendHeartbeat()
		case <-tasks.C:
			go e.RefreshTasks(context.Background())
		}
	}
}

// Close cancels the pending flush timer and sends any batched taps
// best-effort before the session ends.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.flushTimer != nil {
		e.flushTimer.Stop()
		e.flushTimer = nil
	}
	batch := e.takeBatchLocked()
	e.mu.Unlock()

	if batch.Count > 0 {
		e.deliverFinal(batch)
	}
}

func (e *Engine) tickEnergy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Energy < e.state.MaxEnergy {
		e.state.Energy += e.state.EnergyRegenRate
		if e.state.Energy > e.state.MaxEnergy {
			e.state.Energy = e.state.MaxEnergy
		}
	}
}

func (e *Engine) sendHeartbeat() {
	if e.push == nil {
		return
	}
	e.push.Send(protocol.TypePing, protocol.PingMsg{SentAt: e.now().UnixMilli()})
}

// recomputeBaseCoinsPerClick rebuilds the base from the upgrade
// catalog and purchase records: 1 plus the bonus of every owned
// upgrade.
func (e *Engine) recomputeBaseCoinsPerClick() {
	total := 1.0
	for _, u := range e.upgrades {
		if e.purchasedUpgrades[u.ID] {
			total += u.BaseValue
		}
	}
	e.state.BaseCoinsPerClick = total
	e.recomputeCoinsPerClick()
}

// recomputeCoinsPerClick derives the effective per-tap yield. No other
// code path may write CoinsPerClick.
func (e *Engine) recomputeCoinsPerClick() {
	mult := 1.0
	if e.state.ActiveBonus != nil {
		mult = e.state.ActiveBonus.Multiplier
	}
	e.state.CoinsPerClick = e.state.BaseCoinsPerClick * mult
}

// upgradeAtIndex resolves a chain position to its catalog entry.
func (e *Engine) upgradeAtIndex(idx int) (catalog.Upgrade, bool) {
	if idx < 0 || idx >= len(e.upgrades) {
		return catalog.Upgrade{}, false
	}
	return e.upgrades[idx], true
}

func (e *Engine) upgradeIndexPurchased(idx int) bool {
	u, ok := e.upgradeAtIndex(idx)
	return ok && e.purchasedUpgrades[u.ID]
}

func (e *Engine) unlockInputs() UnlockInputs {
	return UnlockInputs{
		Tooth2UpgradePurchased:      e.upgradeIndexPurchased(catalog.UpgradeIdxTooth2),
		Tooth3UpgradePurchased:      e.upgradeIndexPurchased(catalog.UpgradeIdxChar2Gate),
		InvitedFriends:              e.state.InvitedFriendsCount,
		TotalTaps:                   e.state.TotalTaps,
		LoginStreak:                 e.state.CurrentLoginStreak,
		StreakStartedAfterTooth2:    e.state.LoginStreakStartedAfterTooth2,
		WeeklyBackgroundTaskClaimed: e.weeklyBgTaskClaimed,
		Character3Purchased:         e.character3Paid,
	}
}

// reevaluateUnlocks runs the pure evaluator after any input counter
// changed and persists additions. Caller holds the lock.
func (e *Engine) reevaluateUnlocks() {
	if EvaluateUnlocks(e.unlockInputs(), e.state.Unlocks) {
		v := e.state.Unlocks.Visuals()
		e.log.Printf("unlocks advanced: char=%d tooth=%d bg=%d", v.Character, v.Tooth, v.Background)
		e.persistUnlocks()
	}
}

func (e *Engine) persistUnlocks() {
	if e.store == nil {
		return
	}
	_ = e.store.PutInts(KeyUnlockedCharacters, e.state.Unlocks.Characters.Sorted())
	_ = e.store.PutInts(KeyUnlockedTeeth, e.state.Unlocks.Teeth.Sorted())
	_ = e.store.PutInts(KeyUnlockedBackgrounds, e.state.Unlocks.Backgrounds.Sorted())
}

func (e *Engine) persistPurchases() {
	if e.store == nil {
		return
	}
	ids := make([]string, 0, len(e.purchasedUpgrades))
	for id := range e.purchasedUpgrades {
		ids = append(ids, id)
	}
	_ = e.store.PutStrings(KeyPurchasedUpgrades, ids)
	lvls := make([]int, 0, len(e.purchasedAutoLvls))
	for l := range e.purchasedAutoLvls {
		lvls = append(lvls, l)
	}
	_ = e.store.PutInts(KeyAutoClickerLevels, lvls)
}

func (e *Engine) persistCounters() {
	if e.store == nil {
		return
	}
	_ = e.store.PutInt(KeyInvitedFriends, e.state.InvitedFriendsCount)
	_ = e.store.PutInt(KeyLoginStreak, e.state.CurrentLoginStreak)
	_ = e.store.PutBool(KeyStreakAfterTooth2, e.state.LoginStreakStartedAfterTooth2)
}

// SetCatalogs installs freshly fetched reference data and rebuilds the
// derived click value from it.
func (e *Engine) SetCatalogs(upgrades []catalog.Upgrade, services []catalog.Service) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.upgrades = upgrades
	e.services = services
	e.recomputeBaseCoinsPerClick()
	e.reevaluateUnlocks()
}

// SetUserUpgrades replaces the purchase records from the server's
// owned-upgrade list.
func (e *Engine) SetUserUpgrades(ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.purchasedUpgrades = map[string]bool{}
	for _, id := range ids {
		e.purchasedUpgrades[id] = true
	}
	e.recomputeBaseCoinsPerClick()
	e.persistPurchases()
	e.reevaluateUnlocks()
}

// SetAutoClickerLevel installs the server-reported auto-clicker level.
func (e *Engine) SetAutoClickerLevel(level int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoClickerLevel = level
	for l := 1; l <= level; l++ {
		e.purchasedAutoLvls[l] = true
	}
	e.persistPurchases()
}

// SetInvitedFriends installs the referral count mirror.
func (e *Engine) SetInvitedFriends(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n == e.state.InvitedFriendsCount {
		return
	}
	e.state.InvitedFriendsCount = n
	e.persistCounters()
	e.reevaluateUnlocks()
}

// AutoClickerLevel returns the current passive-income level.
func (e *Engine) AutoClickerLevel() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoClickerLevel
}

// AutoClickerIncome returns the summed passive income per hour.
func (e *Engine) AutoClickerIncome() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return catalog.AutoClickerIncome(e.autoClickerLevel)
}

func (e *Engine) telemetryEvent(v any) {
	if e.telemetry == nil {
		return
	}
	if err := e.telemetry.Write(v); err != nil {
		e.log.Printf("telemetry write: %v", err)
	}
}
