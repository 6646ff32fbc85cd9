// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package security provides audit logging and login protection.
//
// This file implements lockout after repeated failed logins. An identifier
// (normally the email being signed in) is locked for a fixed period once it
// accumulates the configured number of consecutive failed attempts. A
// successful attempt clears the count. With an AttemptStore the count is
// shared by every process using the same store, so repeated CLI logins
// lock out as well as the TUI.
package security

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/medcare-tui/internal/storage"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultMaxAttempts is the default number of failed attempts before lockout.
	DefaultMaxAttempts = 5

	// DefaultLockoutDuration is the default lockout duration.
	DefaultLockoutDuration = 15 * time.Minute
)

// ErrLocked is returned when an identifier is locked out.
var ErrLocked = errors.New("too many failed login attempts")

// =============================================================================
// ATTEMPT RECORD
// =============================================================================

// AttemptRecord tracks authentication attempts for one identifier.
type AttemptRecord struct {
	Count       int
	LastAttempt time.Time
	LockedUntil time.Time
}

// AttemptStore persists attempt records between processes.
// *storage.CredentialStore satisfies it.
type AttemptStore interface {
	LoadAttempt(ctx context.Context, id string) (storage.LoginAttempt, bool, error)
	SaveAttempt(ctx context.Context, id string, a storage.LoginAttempt) error
	DeleteAttempt(ctx context.Context, id string) error
}

// =============================================================================
// LOCKOUT MANAGER
// =============================================================================

// LockoutManager tracks failed logins. It is safe for concurrent use.
type LockoutManager struct {
	mu sync.Mutex

	attempts        map[string]*AttemptRecord
	maxAttempts     int
	lockoutDuration time.Duration
	auditLogger     *AuditLogger
	store           AttemptStore
	now             func() time.Time
}

// LockoutManagerOption is a functional option for configuring LockoutManager.
type LockoutManagerOption func(*LockoutManager)

// WithMaxAttempts sets the number of consecutive failures that triggers a
// lockout. Zero disables lockout.
func WithMaxAttempts(max int) LockoutManagerOption {
	return func(l *LockoutManager) {
		if max >= 0 {
			l.maxAttempts = max
		}
	}
}

// WithLockoutDuration sets the lockout duration.
func WithLockoutDuration(d time.Duration) LockoutManagerOption {
	return func(l *LockoutManager) {
		if d > 0 {
			l.lockoutDuration = d
		}
	}
}

// WithAuditLogger sets the audit logger for lockout events.
func WithAuditLogger(logger *AuditLogger) LockoutManagerOption {
	return func(l *LockoutManager) {
		l.auditLogger = logger
	}
}

// WithAttemptStore keeps attempt records in store instead of memory only.
func WithAttemptStore(store AttemptStore) LockoutManagerOption {
	return func(l *LockoutManager) {
		l.store = store
	}
}

// WithLockoutClock sets the time source.
func WithLockoutClock(now func() time.Time) LockoutManagerOption {
	return func(l *LockoutManager) {
		l.now = now
	}
}

// NewLockoutManager creates a LockoutManager with the given options.
func NewLockoutManager(opts ...LockoutManagerOption) *LockoutManager {
	lm := &LockoutManager{
		attempts:        make(map[string]*AttemptRecord),
		maxAttempts:     DefaultMaxAttempts,
		lockoutDuration: DefaultLockoutDuration,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(lm)
	}
	return lm
}

// Check returns an error wrapping ErrLocked while id is locked out.
func (l *LockoutManager) Check(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if remaining := l.remainingLocked(l.loadLocked(normalizeID(id))); remaining > 0 {
		return fmt.Errorf("%w: try again in %s", ErrLocked, remaining.Round(time.Second))
	}
	return nil
}

// IsLocked reports whether id is currently locked out.
func (l *LockoutManager) IsLocked(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remainingLocked(l.loadLocked(normalizeID(id))) > 0
}

// RecordFailure counts a failed attempt and reports whether it locked id.
func (l *LockoutManager) RecordFailure(id string) bool {
	key := normalizeID(id)

	l.mu.Lock()
	if l.maxAttempts == 0 {
		l.mu.Unlock()
		return false
	}

	now := l.now()
	rec := l.loadLocked(key)
	if rec == nil {
		rec = &AttemptRecord{}
		l.attempts[key] = rec
	}
	if !rec.LockedUntil.IsZero() && !now.Before(rec.LockedUntil) {
		// Previous lockout has lapsed; start a fresh series.
		rec.Count = 0
		rec.LockedUntil = time.Time{}
	}

	rec.Count++
	rec.LastAttempt = now
	locked := false
	if rec.Count >= l.maxAttempts && rec.LockedUntil.IsZero() {
		rec.LockedUntil = now.Add(l.lockoutDuration)
		locked = true
	}
	l.saveLocked(key, rec)
	count := rec.Count
	logger := l.auditLogger
	l.mu.Unlock()

	if locked && logger != nil {
		logger.LogEvent("", "ACCOUNT_LOCKED", key, map[string]string{
			"attempts": fmt.Sprintf("%d", count),
			"duration": l.lockoutDuration.String(),
		})
	}
	return locked
}

// RecordSuccess clears the failure count for id.
func (l *LockoutManager) RecordSuccess(id string) {
	key := normalizeID(id)

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
	if l.store != nil {
		if err := l.store.DeleteAttempt(context.Background(), key); err != nil {
			log.Printf("LOCKOUT_STORE_FAILED | op=delete error=%v", err)
		}
	}
}

// Attempts returns the current consecutive failure count for id.
func (l *LockoutManager) Attempts(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec := l.loadLocked(normalizeID(id)); rec != nil {
		return rec.Count
	}
	return 0
}

// loadLocked returns the record for key, or nil. With a store the stored
// record wins so attempts made by other processes count; the in-memory
// copy is used only when the store cannot be read.
func (l *LockoutManager) loadLocked(key string) *AttemptRecord {
	if l.store == nil {
		return l.attempts[key]
	}
	a, ok, err := l.store.LoadAttempt(context.Background(), key)
	if err != nil {
		log.Printf("LOCKOUT_STORE_FAILED | op=load error=%v", err)
		return l.attempts[key]
	}
	if !ok {
		delete(l.attempts, key)
		return nil
	}
	rec := &AttemptRecord{Count: a.Count, LastAttempt: a.LastAttempt, LockedUntil: a.LockedUntil}
	l.attempts[key] = rec
	return rec
}

func (l *LockoutManager) saveLocked(key string, rec *AttemptRecord) {
	if l.store == nil {
		return
	}
	err := l.store.SaveAttempt(context.Background(), key, storage.LoginAttempt{
		Count:       rec.Count,
		LastAttempt: rec.LastAttempt,
		LockedUntil: rec.LockedUntil,
	})
	if err != nil {
		log.Printf("LOCKOUT_STORE_FAILED | op=save error=%v", err)
	}
}

func (l *LockoutManager) remainingLocked(rec *AttemptRecord) time.Duration {
	if rec == nil || rec.LockedUntil.IsZero() {
		return 0
	}
	remaining := rec.LockedUntil.Sub(l.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
