package session

import (
	"context"
	"errors"
	"net/url"
	"testing"
)

type memTokens struct {
	m map[string]string
}

func newMemTokens() *memTokens { return &memTokens{m: map[string]string{}} }

func (s *memTokens) GetString(key string) (string, bool, error) {
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *memTokens) PutString(key, val string) error {
	s.m[key] = val
	return nil
}

func (s *memTokens) Delete(key string) error {
	delete(s.m, key)
	return nil
}

type fakeAuth struct {
	token string
	err   error
	calls int
}

func (a *fakeAuth) AuthTelegram(_ context.Context, initData string) (string, error) {
	a.calls++
	return a.token, a.err
}

func sampleInitData(startParam string) string {
	v := url.Values{}
	v.Set("user", `{"id":123456789,"first_name":"Dev"}`)
	v.Set("auth_date", "1717200000")
	v.Set("hash", "abc123")
	if startParam != "" {
		v.Set("start_param", startParam)
	}
	return v.Encode()
}

func TestParseInitData(t *testing.T) {
	uid, start, err := ParseInitData(sampleInitData("ref42"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if uid != "123456789" {
		t.Fatalf("userID = %q", uid)
	}
	if start != "ref42" {
		t.Fatalf("startCode = %q", start)
	}
}

func TestParseInitDataMissingUser(t *testing.T) {
	if _, _, err := ParseInitData("auth_date=1&hash=zz"); err == nil {
		t.Fatalf("expected error without user field")
	}
}

func TestEstablishFreshToken(t *testing.T) {
	store := newMemTokens()
	auth := &fakeAuth{token: "tok-1"}
	m := NewManager(auth, store, nil)

	id, err := m.Establish(context.Background(), sampleInitData(""))
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if id.Token != "tok-1" || id.UserID != "123456789" || id.Degraded {
		t.Fatalf("identity = %+v", id)
	}
	if got, _, _ := store.GetString(keyToken); got != "tok-1" {
		t.Fatalf("token not cached: %q", got)
	}
}

func TestEstablishFallsBackToCachedToken(t *testing.T) {
	store := newMemTokens()
	_ = store.PutString(keyToken, "cached")
	_ = store.PutString(keyUserID, "42")
	auth := &fakeAuth{err: errors.New("backend down")}
	m := NewManager(auth, store, nil)

	id, err := m.Establish(context.Background(), sampleInitData(""))
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if id.Token != "cached" || id.Degraded {
		t.Fatalf("identity = %+v", id)
	}
	// UserID from init data wins over the cached one.
	if id.UserID != "123456789" {
		t.Fatalf("userID = %q", id.UserID)
	}
}

func TestEstablishDegradedWithoutCredentials(t *testing.T) {
	m := NewManager(&fakeAuth{err: errors.New("down")}, newMemTokens(), nil)
	id, err := m.Establish(context.Background(), "")
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if !id.Degraded || id.Token != "" {
		t.Fatalf("identity = %+v, want degraded", id)
	}
}

func TestInvalidateDropsCachedToken(t *testing.T) {
	store := newMemTokens()
	_ = store.PutString(keyToken, "stale")
	m := NewManager(&fakeAuth{}, store, nil)
	m.Invalidate()
	if _, ok, _ := store.GetString(keyToken); ok {
		t.Fatalf("token survived Invalidate")
	}
}
