// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides client-held credential persistence for medcare.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// KEYS & ERRORS
// =============================================================================

// Well-known keys.
const (
	// KeyAuthToken holds the bearer token of the signed-in user.
	KeyAuthToken = "auth_token"

	// KeyUser holds the signed-in user as JSON.
	KeyUser = "user"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("credential store closed")
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS credentials (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS login_attempts (
		id           TEXT PRIMARY KEY,
		count        INTEGER NOT NULL,
		last_attempt INTEGER NOT NULL,
		locked_until INTEGER NOT NULL
	)`,
}

// =============================================================================
// CREDENTIAL STORE
// =============================================================================

// CredentialStore is a small key/value table for the values a signed-in
// session needs across restarts.
type CredentialStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// DefaultCredentialPath returns ~/.medcare/credentials.db.
func DefaultCredentialPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".medcare", "credentials.db")
}

// OpenCredentialStore opens or creates the store at path. An empty path
// uses DefaultCredentialPath. The file is readable by the owner only.
func OpenCredentialStore(path string) (*CredentialStore, error) {
	if path == "" {
		path = DefaultCredentialPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	if err := os.Chmod(path, 0600); err != nil {
		log.Printf("CREDENTIALS: could not restrict permissions on %s: %v", path, err)
	}

	return &CredentialStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *CredentialStore) Path() string {
	return s.path
}

// Get returns the value for key and whether it was present.
func (s *CredentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return "", false, ErrClosed
	}

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM credentials WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *CredentialStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SetMany stores several values in one transaction, so a reader never
// sees a token without its user.
func (s *CredentialStore) SetMany(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Delete removes the given keys. Missing keys are not an error.
func (s *CredentialStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	for _, k := range keys {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE key = ?", k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}

// =============================================================================
// LOGIN ATTEMPTS
// =============================================================================

// LoginAttempt is the failed-login series of one identifier. It lives in
// the same file as the credentials so every process sees the same count.
type LoginAttempt struct {
	Count       int
	LastAttempt time.Time
	LockedUntil time.Time
}

// LoadAttempt returns the series stored for id and whether one exists.
func (s *CredentialStore) LoadAttempt(ctx context.Context, id string) (LoginAttempt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return LoginAttempt{}, false, ErrClosed
	}

	var count int
	var last, locked int64
	err := s.db.QueryRowContext(ctx,
		"SELECT count, last_attempt, locked_until FROM login_attempts WHERE id = ?", id).
		Scan(&count, &last, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return LoginAttempt{}, false, nil
	}
	if err != nil {
		return LoginAttempt{}, false, fmt.Errorf("load attempts: %w", err)
	}
	return LoginAttempt{
		Count:       count,
		LastAttempt: fromUnixNano(last),
		LockedUntil: fromUnixNano(locked),
	}, true, nil
}

// SaveAttempt stores the series for id, replacing any previous one.
func (s *CredentialStore) SaveAttempt(ctx context.Context, id string, a LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO login_attempts (id, count, last_attempt, locked_until) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET count = excluded.count,
			last_attempt = excluded.last_attempt, locked_until = excluded.locked_until`,
		id, a.Count, toUnixNano(a.LastAttempt), toUnixNano(a.LockedUntil))
	if err != nil {
		return fmt.Errorf("save attempts: %w", err)
	}
	return nil
}

// DeleteAttempt forgets the series for id. A missing series is not an
// error.
func (s *CredentialStore) DeleteAttempt(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM login_attempts WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete attempts: %w", err)
	}
	return nil
}

// Zero times are stored as 0.
func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Token returns the stored bearer token, or "" when none is stored or the
// store cannot be read.
func (s *CredentialStore) Token() string {
	token, _, err := s.Get(context.Background(), KeyAuthToken)
	if err != nil {
		log.Printf("CREDENTIALS: token read failed: %v", err)
		return ""
	}
	return token
}

// Close closes the database. Further calls return ErrClosed.
func (s *CredentialStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
