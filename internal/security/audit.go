// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package security provides audit logging with secret redaction.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// DefaultMaxFileSize is the default max file size before rotation (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// =============================================================================
// AUDIT EVENT
// =============================================================================

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	SessionID string            `json:"session_id"`
	User      string            `json:"user,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ToLogLine formats the event as a single pipe-delimited line. Metadata is
// written as sorted key=value pairs.
func (e *AuditEvent) ToLogLine() string {
	timestamp := e.Timestamp.Format("2006-01-02 15:04:05")

	status := "SUCCESS"
	if !e.Success {
		if e.Error != "" {
			status = fmt.Sprintf("ERROR: %s", e.Error)
		} else {
			status = "FAILURE"
		}
	}

	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+e.Metadata[k])
	}

	return fmt.Sprintf("%s | %s | %s | %s | %s | %s",
		timestamp,
		e.EventType,
		e.SessionID,
		e.User,
		strings.Join(pairs, " "),
		status,
	)
}

// =============================================================================
// REDACTION
// =============================================================================

// secretPatterns covers credentials that can reach an audit line through
// error messages or metadata.
var secretPatterns = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.]+`), "Bearer [TOKEN_REDACTED]"},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[JWT_REDACTED]"},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*\S+`), "[PASSWORD_REDACTED]"},
	{regexp.MustCompile(`(?i)(auth_token|token)\s*[=:]\s*\S+`), "[TOKEN_REDACTED]"},
}

// RedactSecrets replaces bearer tokens, JWTs and password or token
// assignments in input.
func RedactSecrets(input string) string {
	result := input
	for _, sp := range secretPatterns {
		result = sp.pattern.ReplaceAllString(result, sp.replace)
	}
	return result
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

// AuditLogger appends redacted events to a file. It is safe for
// concurrent use.
type AuditLogger struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	maxSize int64
	now     func() time.Time
}

// NewAuditLogger opens (or creates) the audit log at path. An empty path
// uses DefaultAuditPath.
func NewAuditLogger(path string) (*AuditLogger, error) {
	if path == "" {
		path = DefaultAuditPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &AuditLogger{
		path:    path,
		file:    file,
		maxSize: DefaultMaxFileSize,
		now:     time.Now,
	}, nil
}

// Log writes an event. A zero Timestamp is stamped with the current time.
// A closed logger drops the event without error.
func (l *AuditLogger) Log(event AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	if event.Error != "" {
		event.Error = RedactSecrets(event.Error)
	}
	if len(event.Metadata) > 0 {
		redacted := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			redacted[k] = RedactSecrets(v)
		}
		event.Metadata = redacted
	}

	if err := l.checkRotationLocked(); err != nil {
		return fmt.Errorf("audit rotation failed: %w", err)
	}

	if _, err := fmt.Fprintln(l.file, event.ToLogLine()); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	return nil
}

// LogEvent logs a successful event with optional metadata.
func (l *AuditLogger) LogEvent(sessionID, eventType, user string, metadata map[string]string) error {
	return l.Log(AuditEvent{
		EventType: eventType,
		SessionID: sessionID,
		User:      user,
		Success:   true,
		Metadata:  metadata,
	})
}

// LogFailure logs a failed event.
func (l *AuditLogger) LogFailure(sessionID, eventType, user, errMsg string) error {
	return l.Log(AuditEvent{
		EventType: eventType,
		SessionID: sessionID,
		User:      user,
		Success:   false,
		Error:     errMsg,
	})
}

// =============================================================================
// FILE ROTATION
// =============================================================================

// rotateLocked renames the current file with a timestamp suffix and
// starts a new one.
func (l *AuditLogger) rotateLocked() error {
	if l.file == nil {
		return nil
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log for rotation: %w", err)
	}

	ext := filepath.Ext(l.path)
	base := strings.TrimSuffix(l.path, ext)
	rotatedPath := fmt.Sprintf("%s_%s%s", base, l.now().Format("20060102_150405.000000000"), ext)

	if err := os.Rename(l.path, rotatedPath); err != nil {
		l.file, _ = os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		l.file = nil
		return fmt.Errorf("failed to create new audit log after rotation: %w", err)
	}
	l.file = file
	return nil
}

func (l *AuditLogger) checkRotationLocked() error {
	if l.maxSize <= 0 {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return nil
	}
	if info.Size() >= l.maxSize {
		return l.rotateLocked()
	}
	return nil
}

// SetMaxSize sets the file size that triggers rotation. Zero disables it.
func (l *AuditLogger) SetMaxSize(size int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxSize = size
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Path returns the audit log file path.
func (l *AuditLogger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Close closes the audit log file.
func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// DefaultAuditPath returns ~/.medcare/audit.log.
func DefaultAuditPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".medcare", "audit.log")
}
