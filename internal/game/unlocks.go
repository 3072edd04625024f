package game

// UnlockInputs is a snapshot of every counter and flag the unlock
// graph reads. Evaluation is a pure function of this snapshot so the
// independent triggers (purchases, referrals, streaks, tap counts)
// cannot race each other through scattered conditionals.
type UnlockInputs struct {
	Tooth2UpgradePurchased bool
	Tooth3UpgradePurchased bool

	InvitedFriends int
	TotalTaps      int64

	LoginStreak              int
	StreakStartedAfterTooth2 bool

	WeeklyBackgroundTaskClaimed bool

	// Character3Purchased is the explicit paid unlock. It is never
	// inferred from affordability; only a player-invoked purchase sets
	// it.
	Character3Purchased bool
}

// Thresholds of the automatic unlock paths.
const (
	char2ReferralThreshold = 1
	char2TapThreshold      = 10000
	char3ReferralThreshold = 7
	tooth3ReferralThreshold = 3
	background2StreakDays  = 7
)

// EvaluateUnlocks applies the unlock graph to cur, union-only, and
// reports whether anything was added. Running it twice with the same
// inputs is a no-op. Tiers chain (character 3 needs character 2,
// background 3 needs background 2), so evaluation loops to a fixpoint
// in case one pass unlocks a prerequisite.
func EvaluateUnlocks(in UnlockInputs, cur Unlocks) bool {
	changed := false
	for {
		pass := false

		if !cur.Characters.Has(2) {
			if in.InvitedFriends >= char2ReferralThreshold ||
				in.TotalTaps >= char2TapThreshold ||
				in.Tooth3UpgradePurchased {
				pass = cur.Characters.Add(2) || pass
			}
		}
		if cur.Characters.Has(2) && !cur.Characters.Has(3) {
			if in.InvitedFriends >= char3ReferralThreshold || in.Character3Purchased {
				pass = cur.Characters.Add(3) || pass
			}
		}

		if !cur.Teeth.Has(2) && in.Tooth2UpgradePurchased {
			pass = cur.Teeth.Add(2) || pass
		}
		if !cur.Teeth.Has(3) {
			if in.Tooth3UpgradePurchased || in.InvitedFriends >= tooth3ReferralThreshold {
				pass = cur.Teeth.Add(3) || pass
			}
		}

		// Background 2 only counts streak days accumulated after tooth 2
		// unlocked; the flag guards against crediting older days.
		if !cur.Backgrounds.Has(2) &&
			cur.Teeth.Has(2) &&
			in.StreakStartedAfterTooth2 &&
			in.LoginStreak >= background2StreakDays {
			pass = cur.Backgrounds.Add(2) || pass
		}
		if !cur.Backgrounds.Has(3) && cur.Backgrounds.Has(2) && in.WeeklyBackgroundTaskClaimed {
			pass = cur.Backgrounds.Add(3) || pass
		}

		if !pass {
			return changed
		}
		changed = true
	}
}
