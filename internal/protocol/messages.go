package protocol

// Server payload shapes vary between deployments, so every snapshot
// field is a pointer: absent means "no update for this field", never
// zero.

// StateSnapshot (server -> client, tag "game:state"): the authoritative
// full-state payload. Experience is the raw lifetime total; the engine
// rebuilds "progress toward next level" from it.
type StateSnapshot struct {
	Coins             *float64 `json:"coins,omitempty"`
	Energy            *float64 `json:"energy,omitempty"`
	MaxEnergy         *float64 `json:"max_energy,omitempty"`
	EnergyRegenRate   *float64 `json:"energy_regen_rate,omitempty"`
	Level             *int     `json:"level,omitempty"`
	Experience        *float64 `json:"experience,omitempty"`
	BaseCoinsPerClick *float64 `json:"base_coins_per_click,omitempty"`
	CoinsPerClick     *float64 `json:"coins_per_click,omitempty"`

	ActiveBoosts []Boost `json:"active_boosts,omitempty"`

	UnlockedCharacters  []int `json:"unlocked_characters,omitempty"`
	UnlockedTeeth       []int `json:"unlocked_teeth,omitempty"`
	UnlockedBackgrounds []int `json:"unlocked_backgrounds,omitempty"`

	InvitedFriendsCount           *int  `json:"invited_friends_count,omitempty"`
	LoginStreakStartedAfterTooth2 *bool `json:"login_streak_started_after_tooth2,omitempty"`

	UserServices []UserService `json:"user_services,omitempty"`
}

// Boost is a timed tap multiplier. A non-positive remaining time means
// the boost already expired server-side and must be discarded.
type Boost struct {
	Type             string  `json:"type,omitempty"`
	Multiplier       float64 `json:"multiplier"`
	EndsAt           string  `json:"ends_at,omitempty"` // RFC3339
	RemainingSeconds float64 `json:"remaining_seconds,omitempty"`
}

// UserService records that a service was bought and when, never the
// price paid.
type UserService struct {
	ServiceID   string `json:"service_id"`
	PurchasedAt string `json:"purchased_at"` // RFC3339
}

// EnergyUpdate (tag "energy:update").
type EnergyUpdate struct {
	Energy *float64 `json:"energy,omitempty"`
}

// AutoClickerEarnings (tag "autoclicker:earnings") carries the new
// authoritative coin total after passive income is credited.
type AutoClickerEarnings struct {
	Coins *float64 `json:"coins,omitempty"`
}

// ClickResult (tag "game:click:result") acknowledges a tap batch with
// the server's authoritative coins/energy and the effective multiplier
// at processing time.
type ClickResult struct {
	Coins             *float64 `json:"coins,omitempty"`
	Energy            *float64 `json:"energy,omitempty"`
	CurrentMultiplier *float64 `json:"current_multiplier,omitempty"`
}

// TaskCompleted (tag "task:completed") triggers a task-list refresh.
type TaskCompleted struct {
	TaskID string `json:"task_id,omitempty"`
}

// TaskClaimed (tag "task:claimed") carries the coin delta for a
// claimed task reward.
type TaskClaimed struct {
	TaskID      string   `json:"task_id,omitempty"`
	RewardCoins *float64 `json:"reward_coins,omitempty"`
}

// ServicePurchased (tag "service:purchased"): a purchase confirmed on
// another connection for the same account.
type ServicePurchased struct {
	ServiceID   string  `json:"service_id"`
	ServiceName string  `json:"service_name,omitempty"`
	Cost        float64 `json:"cost,omitempty"`
}

// ErrorMsg (tag "error").
type ErrorMsg struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ClickBatchMsg (client -> server, tag "game:click"): a debounced
// batch of taps. Timestamps are unix milliseconds, one per tap, in
// tap order.
type ClickBatchMsg struct {
	Count         int     `json:"count"`
	Timestamps    []int64 `json:"timestamps"`
	CoinsPerClick float64 `json:"coins_per_click"`
}

// PingMsg (client -> server, tag "user:ping"): last-seen heartbeat.
type PingMsg struct {
	SentAt int64 `json:"sent_at"` // unix ms
}
