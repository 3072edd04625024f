package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	for _, code := range []string{"", ErrAuth, ErrRateLimit, ErrNoEnergy, ErrCooldown, ErrInternal} {
		if !IsKnownCode(code) {
			t.Fatalf("expected %q to be known", code)
		}
	}
	if IsKnownCode("E_DOES_NOT_EXIST") {
		t.Fatalf("unexpected known code")
	}
}
