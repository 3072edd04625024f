package game

import (
	"context"
	"testing"

	"omcip.game/internal/catalog"
)

func tapTask(id string, req, progress float64) TaskState {
	return TaskState{
		Task: catalog.Task{
			ID:               id,
			Kind:             catalog.TaskKindTap,
			RequirementValue: req,
		},
		Progress: progress,
	}
}

func TestTapCreditsTaskProgress(t *testing.T) {
	e := newTestEngine(newFakeClock())
	e.mu.Lock()
	e.daily = []TaskState{tapTask("d1", 3, 0)}
	e.weekly = []TaskState{tapTask("w1", 100, 0)}
	e.mu.Unlock()

	for i := 0; i < 3; i++ {
		if !e.Tap() {
			t.Fatalf("tap %d rejected", i)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.daily[0].Completed || e.daily[0].Progress != 3 {
		t.Fatalf("daily task = %+v, want completed at 3", e.daily[0])
	}
	if e.weekly[0].Completed || e.weekly[0].Progress != 3 {
		t.Fatalf("weekly task = %+v, want progress 3", e.weekly[0])
	}
}

func TestTapProgressCapsAtRequirement(t *testing.T) {
	e := newTestEngine(newFakeClock())
	e.mu.Lock()
	e.daily = []TaskState{tapTask("d1", 2, 0)}
	e.mu.Unlock()

	for i := 0; i < 5; i++ {
		e.Tap()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.daily[0].Progress != 2 {
		t.Fatalf("progress = %v, want capped at 2", e.daily[0].Progress)
	}
}

func TestRefreshKeepsHigherLocalTapProgress(t *testing.T) {
	api := &fakeBackend{
		daily:  []TaskState{tapTask("d1", 100, 10)},
		weekly: []TaskState{tapTask("w1", 1000, 500)},
	}
	e := New(Config{Tuning: testTuning(), Backend: api, Now: newFakeClock().Now})
	e.mu.Lock()
	e.daily = []TaskState{tapTask("d1", 100, 40)}
	e.weekly = []TaskState{tapTask("w1", 1000, 200)}
	e.mu.Unlock()

	e.RefreshTasks(context.Background())

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.daily[0].Progress != 40 {
		t.Fatalf("daily progress = %v, want local 40 kept", e.daily[0].Progress)
	}
	if e.weekly[0].Progress != 500 {
		t.Fatalf("weekly progress = %v, want server 500", e.weekly[0].Progress)
	}
}

func referralTask(id string, req float64) TaskState {
	return TaskState{
		Task: catalog.Task{
			ID:               id,
			Kind:             catalog.TaskKindReferral,
			RequirementValue: req,
		},
	}
}

func TestRefreshCreditsReferralTaskProgress(t *testing.T) {
	api := &fakeBackend{
		daily:      []TaskState{referralTask("d1", 3)},
		weekly:     []TaskState{referralTask("w1", 10)},
		dailyRefs:  2,
		weeklyRefs: 12,
	}
	e := New(Config{Tuning: testTuning(), Backend: api, Now: newFakeClock().Now})

	e.RefreshTasks(context.Background())

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.daily[0].Progress != 2 || e.daily[0].Completed {
		t.Fatalf("daily referral task = %+v, want progress 2", e.daily[0])
	}
	if e.weekly[0].Progress != 10 || !e.weekly[0].Completed {
		t.Fatalf("weekly referral task = %+v, want capped complete at 10", e.weekly[0])
	}
}

func TestRefreshServerOwnsCompletionAndClaims(t *testing.T) {
	server := tapTask("d1", 100, 100)
	server.Completed = true
	server.Claimed = true
	api := &fakeBackend{daily: []TaskState{server}}
	e := New(Config{Tuning: testTuning(), Backend: api, Now: newFakeClock().Now})
	e.mu.Lock()
	e.daily = []TaskState{tapTask("d1", 100, 99)}
	e.mu.Unlock()

	e.RefreshTasks(context.Background())

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.daily[0].Completed || !e.daily[0].Claimed {
		t.Fatalf("server completion/claim lost: %+v", e.daily[0])
	}
}

func TestRefreshUpdatesStreak(t *testing.T) {
	api := &fakeBackend{streak: 4}
	e := New(Config{Tuning: testTuning(), Backend: api, Now: newFakeClock().Now})
	e.RefreshTasks(context.Background())
	if got := e.State().CurrentLoginStreak; got != 4 {
		t.Fatalf("streak = %d, want 4", got)
	}
}

func TestHasClaimableTasks(t *testing.T) {
	e := newTestEngine(newFakeClock())
	if e.HasClaimableTasks() {
		t.Fatalf("claimable with no tasks")
	}

	done := tapTask("d1", 2, 2)
	done.Completed = true
	e.mu.Lock()
	e.daily = []TaskState{done}
	e.mu.Unlock()
	if !e.HasClaimableTasks() {
		t.Fatalf("completed unclaimed task not reported")
	}

	e.mu.Lock()
	e.daily[0].Claimed = true
	e.mu.Unlock()
	if e.HasClaimableTasks() {
		t.Fatalf("claimed task still reported")
	}
}

func TestHasAvailableUpgrades(t *testing.T) {
	e := newTestEngine(newFakeClock())
	e.SetCatalogs(testUpgrades(), nil)
	if e.HasAvailableUpgrades() {
		t.Fatalf("available with zero coins")
	}
	e.mu.Lock()
	e.state.Coins = 150
	e.mu.Unlock()
	if !e.HasAvailableUpgrades() {
		t.Fatalf("first upgrade affordable but not reported")
	}
}
