package store

import (
	"path/filepath"
	"testing"

	"omcip.game/internal/game"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTest(t)

	if err := s.PutInts(game.KeyUnlockedTeeth, []int{1, 2, 3}); err != nil {
		t.Fatalf("put ints: %v", err)
	}
	if err := s.PutStrings(game.KeyPurchasedUpgrades, []string{"a", "b"}); err != nil {
		t.Fatalf("put strings: %v", err)
	}
	if err := s.PutInt(game.KeyLoginStreak, 5); err != nil {
		t.Fatalf("put int: %v", err)
	}
	if err := s.PutBool(game.KeyStreakAfterTooth2, true); err != nil {
		t.Fatalf("put bool: %v", err)
	}

	got := s.getInts(game.KeyUnlockedTeeth)
	if len(got) != 3 || got[2] != 3 {
		t.Fatalf("ints = %v", got)
	}
	if ids := s.getStrings(game.KeyPurchasedUpgrades); len(ids) != 2 {
		t.Fatalf("strings = %v", ids)
	}
	if n := s.getInt(game.KeyLoginStreak); n != 5 {
		t.Fatalf("int = %d", n)
	}
	if !s.getBool(game.KeyStreakAfterTooth2) {
		t.Fatalf("bool not persisted")
	}
}

func TestOverwriteKeepsLatest(t *testing.T) {
	s := openTest(t)
	_ = s.PutInt("k", 1)
	_ = s.PutInt("k", 2)
	if n := s.getInt("k"); n != 2 {
		t.Fatalf("value = %d, want 2", n)
	}
}

func TestMissingKeysAreZero(t *testing.T) {
	s := openTest(t)
	if v, ok, err := s.GetString("absent"); err != nil || ok || v != "" {
		t.Fatalf("absent = %q, %v, %v", v, ok, err)
	}
	if n := s.getInt("absent"); n != 0 {
		t.Fatalf("absent int = %d", n)
	}
}

func TestDelete(t *testing.T) {
	s := openTest(t)
	_ = s.PutString("session/token", "tok")
	if err := s.Delete("session/token"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetString("session/token"); ok {
		t.Fatalf("key survived delete")
	}
}

func TestLoadSeedFreshProfile(t *testing.T) {
	s := openTest(t)
	seed := s.LoadSeed()
	if len(seed.UnlockedCharacters) != 0 || seed.CurrentLoginStreak != 0 || seed.StreakStartedAfterT2 {
		t.Fatalf("fresh seed = %+v", seed)
	}
}

func TestLoadSeedRestoresState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.PutInts(game.KeyUnlockedCharacters, []int{1, 2})
	_ = s.PutStrings(game.KeyPurchasedUpgrades, []string{"u1"})
	_ = s.PutInt(game.KeyInvitedFriends, 4)
	_ = s.PutBool(game.KeyStreakAfterTooth2, true)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// A second open sees everything the first one wrote.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	seed := s2.LoadSeed()
	if len(seed.UnlockedCharacters) != 2 {
		t.Fatalf("characters = %v", seed.UnlockedCharacters)
	}
	if len(seed.PurchasedUpgrades) != 1 || seed.PurchasedUpgrades[0] != "u1" {
		t.Fatalf("upgrades = %v", seed.PurchasedUpgrades)
	}
	if seed.InvitedFriendsCount != 4 || !seed.StreakStartedAfterT2 {
		t.Fatalf("counters = %+v", seed)
	}
}
