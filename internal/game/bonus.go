package game

import "time"

// ActivateTapBonus installs a timed tap multiplier, replacing any
// existing bonus (no stacking), and recomputes the effective yield.
func (e *Engine) ActivateTapBonus(multiplier float64, durationMinutes int) Bonus {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := Bonus{
		Type:       "tap_multiplier",
		Multiplier: multiplier,
		ExpiresAt:  e.now().Add(time.Duration(durationMinutes) * time.Minute),
	}
	e.state.ActiveBonus = &b
	e.recomputeCoinsPerClick()
	return b
}

// TickBonus evicts an expired bonus. It runs once per second for the
// session lifetime, independent of taps, so a bonus expires on time
// even while the player is idle. Repeated calls after expiry are
// no-ops.
func (e *Engine) TickBonus() {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.state.ActiveBonus
	if b == nil || b.ExpiresAt.IsZero() {
		// Zero expiry means the server owns the lifetime; wait for a
		// snapshot or click result to clear it.
		return
	}
	if e.now().Before(b.ExpiresAt) {
		return
	}
	e.state.ActiveBonus = nil
	e.recomputeCoinsPerClick()
	e.log.Printf("tap bonus expired, coins/click back to %.2f", e.state.CoinsPerClick)
}

// ActiveBonus returns a copy of the current bonus, if any.
func (e *Engine) ActiveBonus() (Bonus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.ActiveBonus == nil {
		return Bonus{}, false
	}
	return *e.state.ActiveBonus, true
}
