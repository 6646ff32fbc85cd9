// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *AuditLogger {
	t.Helper()
	l, err := NewAuditLogger(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// =============================================================================
// EVENT FORMAT TESTS
// =============================================================================

func TestAuditEvent_ToLogLine(t *testing.T) {
	e := AuditEvent{
		Timestamp: time.Date(2025, 3, 1, 9, 15, 0, 0, time.UTC),
		EventType: "SESSION_TIMEOUT",
		SessionID: "abc",
		User:      "admin@fmmedcare.com",
		Success:   true,
		Metadata:  map[string]string{"timeout": "15m0s", "idle": "15m0s"},
	}
	assert.Equal(t,
		"2025-03-01 09:15:00 | SESSION_TIMEOUT | abc | admin@fmmedcare.com | idle=15m0s timeout=15m0s | SUCCESS",
		e.ToLogLine())

	e.Success = false
	e.Metadata = nil
	assert.True(t, strings.HasSuffix(e.ToLogLine(), "| FAILURE"))

	e.Error = "boom"
	assert.True(t, strings.HasSuffix(e.ToLogLine(), "| ERROR: boom"))
}

func TestRedactSecrets(t *testing.T) {
	tests := []struct {
		in      string
		leaked  string
		wantHas string
	}{
		{"Authorization: Bearer abc.def-123", "abc.def-123", "[TOKEN_REDACTED]"},
		{"password=hunter2", "hunter2", "[PASSWORD_REDACTED]"},
		{"auth_token: mock-token-123", "mock-token-123", "[TOKEN_REDACTED]"},
		{"jwt eyJhbGciOi.eyJzdWIiOi.sig", "eyJhbGciOi", "[JWT_REDACTED]"},
	}
	for _, tt := range tests {
		got := RedactSecrets(tt.in)
		assert.NotContains(t, got, tt.leaked)
		assert.Contains(t, got, tt.wantHas)
	}
}

// =============================================================================
// LOGGER TESTS
// =============================================================================

func TestAuditLogger_WritesRedactedLines(t *testing.T) {
	l := newTestLogger(t)

	require.NoError(t, l.LogEvent("s1", "LOGIN_SUCCESS", "ann@x.com", map[string]string{"detail": "password=secret"}))
	require.NoError(t, l.LogFailure("s1", "LOGIN_FAILURE", "ann@x.com", "rejected Bearer tok123"))

	lines := readLines(t, l.Path())
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "| LOGIN_SUCCESS | s1 | ann@x.com |")
	assert.NotContains(t, lines[0], "secret")
	assert.Contains(t, lines[1], "ERROR: rejected Bearer [TOKEN_REDACTED]")
}

func TestAuditLogger_DoesNotMutateCallerMetadata(t *testing.T) {
	l := newTestLogger(t)
	meta := map[string]string{"note": "password=secret"}

	require.NoError(t, l.LogEvent("", "X", "", meta))
	assert.Equal(t, "password=secret", meta["note"])
}

func TestAuditLogger_Rotates(t *testing.T) {
	l := newTestLogger(t)
	l.SetMaxSize(1)

	require.NoError(t, l.LogEvent("", "FIRST", "", nil))
	require.NoError(t, l.LogEvent("", "SECOND", "", nil))

	lines := readLines(t, l.Path())
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "SECOND")

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(l.Path()), "audit_*.log"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestAuditLogger_ClosedDropsEvents(t *testing.T) {
	l := newTestLogger(t)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.NoError(t, l.LogEvent("", "X", "", nil))
}
