package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Session/auth.
	ErrAuth         = "E_AUTH"
	ErrTokenExpired = "E_TOKEN_EXPIRED"

	// Action layer.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrNoCoins    = "E_NO_COINS"
	ErrNoEnergy   = "E_NO_ENERGY"
	ErrRateLimit  = "E_RATE_LIMIT"
	ErrLocked     = "E_LOCKED"
	ErrDuplicate  = "E_DUPLICATE"
	ErrCooldown   = "E_COOLDOWN"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrAuth:            {},
	ErrTokenExpired:    {},
	ErrBadRequest:      {},
	ErrNoCoins:         {},
	ErrNoEnergy:        {},
	ErrRateLimit:       {},
	ErrLocked:          {},
	ErrDuplicate:       {},
	ErrCooldown:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
