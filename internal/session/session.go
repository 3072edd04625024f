// Package session owns the identity lifecycle: exchanging
// host-provided init data for a bearer token, caching the token
// locally, and deciding whether the client runs connected or in
// local-only degraded mode.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"
)

// Authenticator exchanges signed init data for a bearer token.
type Authenticator interface {
	AuthTelegram(ctx context.Context, initData string) (string, error)
}

// TokenStore persists the opaque token between launches.
type TokenStore interface {
	GetString(key string) (string, bool, error)
	PutString(key, val string) error
	Delete(key string) error
}

const (
	keyToken  = "session/token"
	keyUserID = "session/user_id"
)

// Identity is what the rest of the client needs to know about who is
// playing. UserID comes from the init data, never from the token.
type Identity struct {
	UserID    string
	Token     string
	StartCode string
	Degraded  bool
}

type Manager struct {
	auth  Authenticator
	store TokenStore
	log   *log.Logger
}

func NewManager(auth Authenticator, store TokenStore, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "[session] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Manager{auth: auth, store: store, log: logger}
}

// Establish produces a usable Identity. Order of preference: fresh
// token from init data, cached token from the store, degraded
// local-only mode. A cached token may be expired; callers learn that
// from the first authenticated request and should call Invalidate and
// re-establish.
func (m *Manager) Establish(ctx context.Context, initData string) (Identity, error) {
	id := Identity{}
	if initData != "" {
		uid, start, err := ParseInitData(initData)
		if err != nil {
			return Identity{}, fmt.Errorf("parse init data: %w", err)
		}
		id.UserID = uid
		id.StartCode = start

		tok, err := m.auth.AuthTelegram(ctx, initData)
		if err == nil {
			id.Token = tok
			m.cache(id)
			return id, nil
		}
		m.log.Printf("auth exchange failed, trying cached token: %v", err)
	}

	if m.store != nil {
		tok, ok, err := m.store.GetString(keyToken)
		if err == nil && ok && tok != "" {
			id.Token = tok
			if id.UserID == "" {
				if uid, ok2, err2 := m.store.GetString(keyUserID); err2 == nil && ok2 {
					id.UserID = uid
				}
			}
			return id, nil
		}
	}

	// No credentials at all. Taps still simulate locally and unlock
	// state persists; nothing reaches the server until the next
	// successful Establish.
	id.Degraded = true
	m.log.Printf("no credentials available, running local-only")
	return id, nil
}

func (m *Manager) cache(id Identity) {
	if m.store == nil {
		return
	}
	if err := m.store.PutString(keyToken, id.Token); err != nil {
		m.log.Printf("cache token: %v", err)
	}
	if id.UserID != "" {
		if err := m.store.PutString(keyUserID, id.UserID); err != nil {
			m.log.Printf("cache user id: %v", err)
		}
	}
}

// Invalidate drops the cached token after the server rejects it.
func (m *Manager) Invalidate() {
	if m.store == nil {
		return
	}
	if err := m.store.Delete(keyToken); err != nil {
		m.log.Printf("drop cached token: %v", err)
	}
}

// ParseInitData pulls the user id and optional referral start code out
// of the url-encoded init data blob. Signature verification is the
// server's job; the client only needs the identity fields.
func ParseInitData(initData string) (userID, startCode string, err error) {
	vals, err := url.ParseQuery(initData)
	if err != nil {
		return "", "", err
	}
	startCode = vals.Get("start_param")
	rawUser := vals.Get("user")
	if rawUser == "" {
		return "", startCode, fmt.Errorf("init data has no user field")
	}
	var u struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
		return "", startCode, fmt.Errorf("decode user field: %w", err)
	}
	if u.ID == 0 {
		return "", startCode, fmt.Errorf("init data user has no id")
	}
	return strconv.FormatInt(u.ID, 10), startCode, nil
}

// AuthDate reports when the init data was signed, for staleness
// logging. Zero time when absent.
func AuthDate(initData string) time.Time {
	vals, err := url.ParseQuery(initData)
	if err != nil {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(vals.Get("auth_date"), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
