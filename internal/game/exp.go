package game

import "math"

// ExpRequired is the single source of truth for experience-to-level
// conversion: floor(100 * 1.5^(level-1)). Snapshot ingestion reuses it
// to rebuild per-level progress from the raw lifetime total.
func ExpRequired(level int) float64 {
	if level < 1 {
		level = 1
	}
	return math.Floor(100 * math.Pow(1.5, float64(level-1)))
}

// ExpUsedBelow sums the requirement of every level below the given
// one, i.e. the experience already consumed by reaching it.
func ExpUsedBelow(level int) float64 {
	var used float64
	for i := 1; i < level; i++ {
		used += ExpRequired(i)
	}
	return used
}

// cascadeLevels consumes experience into level-ups. It returns the new
// level and the remainder, which is always below the new level's
// requirement.
func cascadeLevels(level int, exp float64) (int, float64) {
	req := ExpRequired(level)
	for exp >= req {
		exp -= req
		level++
		req = ExpRequired(level)
	}
	return level, exp
}
