// Package store is the durable local key/value layer: unlock sets,
// purchase flags, counters and the cached session token survive
// restarts here. Values are JSON so list keys and scalar keys share
// one table.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"omcip.game/internal/game"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL keeps writes cheap; NORMAL is enough durability for a cache
	// the server snapshot can always rebuild.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at;`,
		key, string(raw), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// get decodes into out; found is false when the key has never been
// written.
func (s *Store) get(key string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?;`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) PutInts(key string, vals []int) error { return s.put(key, vals) }

func (s *Store) PutStrings(key string, vals []string) error { return s.put(key, vals) }

func (s *Store) PutInt(key string, v int) error { return s.put(key, v) }

func (s *Store) PutBool(key string, v bool) error { return s.put(key, v) }

func (s *Store) PutString(key, val string) error { return s.put(key, val) }

func (s *Store) GetString(key string) (string, bool, error) {
	var v string
	ok, err := s.get(key, &v)
	return v, ok, err
}

func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?;`, key)
	return err
}

func (s *Store) getInts(key string) []int {
	var v []int
	if ok, err := s.get(key, &v); err != nil || !ok {
		return nil
	}
	return v
}

func (s *Store) getStrings(key string) []string {
	var v []string
	if ok, err := s.get(key, &v); err != nil || !ok {
		return nil
	}
	return v
}

func (s *Store) getInt(key string) int {
	var v int
	if ok, err := s.get(key, &v); err != nil || !ok {
		return 0
	}
	return v
}

func (s *Store) getBool(key string) bool {
	var v bool
	if ok, err := s.get(key, &v); err != nil || !ok {
		return false
	}
	return v
}

// LoadSeed reads everything the engine restores at session start.
// Missing keys fall back to zero values; a fresh profile seeds as a
// brand-new player.
func (s *Store) LoadSeed() game.Seed {
	return game.Seed{
		UnlockedCharacters:   s.getInts(game.KeyUnlockedCharacters),
		UnlockedTeeth:        s.getInts(game.KeyUnlockedTeeth),
		UnlockedBackgrounds:  s.getInts(game.KeyUnlockedBackgrounds),
		PurchasedUpgrades:    s.getStrings(game.KeyPurchasedUpgrades),
		AutoClickerLevels:    s.getInts(game.KeyAutoClickerLevels),
		InvitedFriendsCount:  s.getInt(game.KeyInvitedFriends),
		CurrentLoginStreak:   s.getInt(game.KeyLoginStreak),
		StreakStartedAfterT2: s.getBool(game.KeyStreakAfterTooth2),
	}
}
