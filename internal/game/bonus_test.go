package game

import (
	"testing"
	"time"

	"omcip.game/internal/protocol"
)

func TestBonusMultipliesYield(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	e.ActivateTapBonus(2, 1)
	if got := e.State().CoinsPerClick; got != 2 {
		t.Fatalf("coinsPerClick = %v, want 2", got)
	}
	if !e.Tap() {
		t.Fatalf("tap rejected")
	}
	st := e.State()
	if st.Coins != 2 {
		t.Fatalf("coins = %v, want 2", st.Coins)
	}
	if st.Energy != 9998 {
		t.Fatalf("energy = %v, want 9998 (cost follows yield)", st.Energy)
	}
}

func TestBonusReplacesNotStacks(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	e.ActivateTapBonus(2, 1)
	e.ActivateTapBonus(3, 1)
	if got := e.State().CoinsPerClick; got != 3 {
		t.Fatalf("coinsPerClick = %v, want 3 (replace, not stack)", got)
	}
}

func TestBonusExpiresOnTick(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	e.ActivateTapBonus(2, 1)
	clock.Advance(59 * time.Second)
	e.TickBonus()
	if _, ok := e.ActiveBonus(); !ok {
		t.Fatalf("bonus expired early")
	}

	clock.Advance(2 * time.Second)
	e.TickBonus()
	if _, ok := e.ActiveBonus(); ok {
		t.Fatalf("bonus still active past expiry")
	}
	if got := e.State().CoinsPerClick; got != 1 {
		t.Fatalf("coinsPerClick = %v, want 1 after expiry", got)
	}

	// Further ticks are no-ops.
	e.TickBonus()
	if got := e.State().CoinsPerClick; got != 1 {
		t.Fatalf("coinsPerClick = %v after repeated tick", got)
	}
}

func TestServerOwnedBonusSurvivesTicks(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	// A multiplier confirmed by a click result without a deadline stays
	// until the server clears it.
	e.HandleMessage(mustEnvelope(t, protocol.TypeClickResult, protocol.ClickResult{
		CurrentMultiplier: fptr(2),
	}))
	clock.Advance(24 * time.Hour)
	e.TickBonus()
	if _, ok := e.ActiveBonus(); !ok {
		t.Fatalf("server-owned bonus evicted locally")
	}

	e.HandleMessage(mustEnvelope(t, protocol.TypeClickResult, protocol.ClickResult{
		CurrentMultiplier: fptr(1),
	}))
	if _, ok := e.ActiveBonus(); ok {
		t.Fatalf("bonus not cleared by multiplier 1")
	}
}
