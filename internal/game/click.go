package game

// Tap applies one player tap optimistically. It returns false, with no
// state change, when energy is short or the local rate limit is hit;
// the caller may use that for a visual cue only.
//
// An accepted tap mutates local state first and only then lands in the
// pending batch, so the optimistic view always precedes delivery.
func (e *Engine) Tap() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}

	now := e.now()

	// Sliding-window rate limit. Bounds batch size and shrugs off
	// local tap flooding; the server still does its own checks.
	window := e.tune.TapRateWindow()
	cutoff := now.Add(-window)
	kept := e.tapTimes[:0]
	for _, t := range e.tapTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.tapTimes = kept
	if len(e.tapTimes) >= e.tune.TapRateMax {
		return false
	}

	mult := 1.0
	if e.state.ActiveBonus != nil {
		mult = e.state.ActiveBonus.Multiplier
	}
	yield := e.state.BaseCoinsPerClick * mult
	energyCost := yield
	if energyCost > e.tune.TapEnergyCap {
		energyCost = e.tune.TapEnergyCap
	}
	if e.state.Energy < energyCost {
		return false
	}

	e.tapTimes = append(e.tapTimes, now)

	e.state.Coins += yield
	e.state.Energy -= energyCost
	if e.state.Energy < 0 {
		e.state.Energy = 0
	}
	e.state.TotalTaps++

	// Experience accrues by the same effective yield and cascades
	// levels locally before any server confirmation.
	e.state.ExpCurrent += yield
	newLevel, rem := cascadeLevels(e.state.Level, e.state.ExpCurrent)
	if newLevel != e.state.Level {
		e.state.Level = newLevel
	}
	e.state.ExpCurrent = rem
	e.state.ExpRequired = ExpRequired(e.state.Level)

	creditTapProgress(e.daily)
	creditTapProgress(e.weekly)

	e.reevaluateUnlocks()
	e.appendToBatch(now)
	return true
}
