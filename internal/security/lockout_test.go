// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/medcare-tui/internal/storage"
)

type fakeNow struct {
	t time.Time
}

func (f *fakeNow) now() time.Time { return f.t }

// =============================================================================
// LOCKOUT TESTS
// =============================================================================

func TestLockoutManager_LocksAfterMaxAttempts(t *testing.T) {
	clock := &fakeNow{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	lm := NewLockoutManager(WithMaxAttempts(3), WithLockoutDuration(time.Minute), WithLockoutClock(clock.now))

	for i := 0; i < 2; i++ {
		if lm.RecordFailure("User@Example.com") {
			t.Fatalf("locked after %d failures, want 3", i+1)
		}
	}
	if err := lm.Check("user@example.com"); err != nil {
		t.Fatalf("Check before lockout = %v", err)
	}

	if !lm.RecordFailure(" user@example.com ") {
		t.Fatal("third failure should lock")
	}
	if err := lm.Check("USER@example.com"); !errors.Is(err, ErrLocked) {
		t.Errorf("Check = %v, want ErrLocked", err)
	}

	clock.t = clock.t.Add(time.Minute)
	if lm.IsLocked("user@example.com") {
		t.Error("lockout should lapse after its duration")
	}

	if lm.RecordFailure("user@example.com") {
		t.Error("first failure after a lapsed lockout should not lock")
	}
	if got := lm.Attempts("user@example.com"); got != 1 {
		t.Errorf("Attempts = %d, want 1", got)
	}
}

func TestLockoutManager_SuccessClears(t *testing.T) {
	lm := NewLockoutManager(WithMaxAttempts(2))

	lm.RecordFailure("a")
	lm.RecordSuccess("a")
	if got := lm.Attempts("a"); got != 0 {
		t.Errorf("Attempts after success = %d, want 0", got)
	}
	if lm.RecordFailure("a") {
		t.Error("count should restart after success")
	}
}

func TestLockoutManager_ZeroDisables(t *testing.T) {
	lm := NewLockoutManager(WithMaxAttempts(0))
	for i := 0; i < 10; i++ {
		if lm.RecordFailure("a") {
			t.Fatal("lockout disabled but locked")
		}
	}
	if lm.IsLocked("a") {
		t.Error("lockout disabled but IsLocked")
	}
}

func TestLockoutManager_SharedStoreAcrossProcesses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.db")
	clock := &fakeNow{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	// Each CLI invocation opens the store and builds a fresh manager.
	attempt := func() bool {
		store, err := storage.OpenCredentialStore(path)
		if err != nil {
			t.Fatalf("OpenCredentialStore() = %v", err)
		}
		defer store.Close()
		lm := NewLockoutManager(WithMaxAttempts(3), WithAttemptStore(store), WithLockoutClock(clock.now))
		return lm.RecordFailure("ann@x.com")
	}

	if attempt() || attempt() {
		t.Fatal("locked before the third failure")
	}
	if !attempt() {
		t.Fatal("third failure across processes should lock")
	}

	store, err := storage.OpenCredentialStore(path)
	if err != nil {
		t.Fatalf("OpenCredentialStore() = %v", err)
	}
	defer store.Close()
	lm := NewLockoutManager(WithMaxAttempts(3), WithAttemptStore(store), WithLockoutClock(clock.now))
	if err := lm.Check("ANN@x.com"); !errors.Is(err, ErrLocked) {
		t.Errorf("Check in a new process = %v, want ErrLocked", err)
	}

	lm.RecordSuccess("ann@x.com")
	if got := lm.Attempts("ann@x.com"); got != 0 {
		t.Errorf("Attempts after success = %d, want 0", got)
	}
}
