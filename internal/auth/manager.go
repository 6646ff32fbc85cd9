// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/security"
	"github.com/jeranaias/medcare-tui/internal/storage"
	"github.com/jeranaias/medcare-tui/internal/telemetry"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCredentials is returned when the email or password is wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotAuthenticated is returned when an operation needs a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoToken is returned by Restore when nothing is stored.
	ErrNoToken = errors.New("no stored credentials")
)

// =============================================================================
// DEMO ACCOUNT
// =============================================================================

const (
	// DemoEmail signs in without a backend.
	DemoEmail = "admin@fmmedcare.com"

	// DemoToken is the token stored for demo sessions.
	DemoToken = "mock-token-123"

	demoSalt       = "medcare-demo-salt"
	demoIterations = 100000
	demoKeyLen     = 32
	demoHash       = "59e288f765a8af7e44ebfef877463bd8b3d3ef3652452d7b7651df1955ef2013"
)

// DemoUser is the profile of the demo account.
var DemoUser = api.User{
	ID:    "1",
	Email: DemoEmail,
	Name:  "FMmedCare Admin",
	Role:  "Administrator",
}

func verifyDemoPassword(password string) bool {
	want, err := hex.DecodeString(demoHash)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password), []byte(demoSalt), demoIterations, demoKeyLen, sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Backend is the subset of api.Client the manager needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context) (*api.User, error)
}

// Store persists credentials between runs. *storage.CredentialStore
// satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager tracks the signed-in user. It is safe for concurrent use.
type Manager struct {
	mu   sync.RWMutex
	user *api.User

	backend Backend
	store   Store
	lockout *security.LockoutManager
	audit   *security.AuditLogger
	metrics *telemetry.Metrics
	demo    bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLockout enables lockout after repeated failed logins.
func WithLockout(lm *security.LockoutManager) Option {
	return func(m *Manager) {
		m.lockout = lm
	}
}

// WithAudit records login and logout events.
func WithAudit(logger *security.AuditLogger) Option {
	return func(m *Manager) {
		m.audit = logger
	}
}

// WithMetrics counts login attempts.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithDemoAccount enables or disables the built-in demo account.
func WithDemoAccount(enabled bool) Option {
	return func(m *Manager) {
		m.demo = enabled
	}
}

// NewManager creates a manager with no user signed in. The demo account is
// enabled by default.
func NewManager(backend Backend, store Store, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		store:   store,
		demo:    true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns a copy of the signed-in user, or nil.
func (m *Manager) Current() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	return m.Current() != nil
}

// Token returns the stored token, or "".
func (m *Manager) Token(ctx context.Context) string {
	token, _, err := m.store.Get(ctx, storage.KeyAuthToken)
	if err != nil {
		return ""
	}
	return token
}

// =============================================================================
// LOGIN
// =============================================================================

// Login signs in with email and password. On success the user and token
// are persisted and the user becomes current.
func (m *Manager) Login(ctx context.Context, email, password string) (*api.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if m.lockout != nil {
		if err := m.lockout.Check(email); err != nil {
			m.metrics.LoginAttempt(telemetry.LoginLocked)
			m.logFailure("LOGIN_FAILURE", email, err.Error())
			return nil, err
		}
	}

	var (
		user  api.User
		token string
	)
	if m.demo && strings.EqualFold(email, DemoEmail) && verifyDemoPassword(password) {
		user = DemoUser
		token = DemoToken
	} else {
		resp, err := m.backend.Login(ctx, email, password)
		if err != nil {
			return nil, m.loginFailed(email, err)
		}
		if resp.Token == "" {
			return nil, m.loginFailed(email, errors.New("backend returned no token"))
		}
		user = resp.User
		token = resp.Token
	}

	if err := m.persist(ctx, &user, token); err != nil {
		m.metrics.LoginAttempt(telemetry.LoginError)
		return nil, err
	}

	m.mu.Lock()
	m.user = &user
	m.mu.Unlock()

	if m.lockout != nil {
		m.lockout.RecordSuccess(email)
	}
	m.metrics.LoginAttempt(telemetry.LoginSuccess)
	if m.audit != nil {
		m.audit.LogEvent("", "LOGIN_SUCCESS", user.Email, map[string]string{"role": user.Role})
	}

	u := user
	return &u, nil
}

// loginFailed classifies a backend login error. Rejections by the backend
// count toward lockout and become ErrInvalidCredentials; transport and
// server errors are returned as-is.
func (m *Manager) loginFailed(email string, err error) error {
	var apiErr *api.APIError
	rejected := errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 &&
		apiErr.Status != http.StatusTooManyRequests

	m.logFailure("LOGIN_FAILURE", email, err.Error())
	if !rejected {
		m.metrics.LoginAttempt(telemetry.LoginError)
		return fmt.Errorf("login failed: %w", err)
	}

	m.metrics.LoginAttempt(telemetry.LoginFailure)
	if m.lockout != nil && m.lockout.RecordFailure(email) {
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, security.ErrLocked)
	}
	return fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
}

func (m *Manager) persist(ctx context.Context, user *api.User, token string) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	err = m.store.SetMany(ctx, map[string]string{
		storage.KeyAuthToken: token,
		storage.KeyUser:      string(data),
	})
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// =============================================================================
// LOGOUT
// =============================================================================

// Logout clears local credentials, then asks the backend to revoke the
// token. Backend failures are logged and otherwise ignored.
func (m *Manager) Logout(ctx context.Context) error {
	token := m.Token(ctx)
	err := m.ClearLocal(ctx)
	m.Revoke(ctx, token)
	return err
}

// ClearLocal forgets the current user and deletes stored credentials.
func (m *Manager) ClearLocal(ctx context.Context) error {
	m.mu.Lock()
	user := m.user
	m.user = nil
	m.mu.Unlock()

	err := m.store.Delete(ctx, storage.KeyAuthToken, storage.KeyUser)
	if m.audit != nil && user != nil {
		m.audit.LogEvent("", "LOGOUT", user.Email, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Revoke asks the backend to invalidate token. Demo and empty tokens are
// never sent.
func (m *Manager) Revoke(ctx context.Context, token string) {
	if token == "" || token == DemoToken {
		return
	}
	if err := m.backend.Logout(ctx, token); err != nil {
		log.Printf("Logout error: %v", err)
	}
}

// =============================================================================
// RESTORE
// =============================================================================

// Restore reloads a session saved by an earlier run. Demo sessions come
// back from the stored profile. Any other token is checked against the
// backend, and stored credentials are cleared if the check fails.
func (m *Manager) Restore(ctx context.Context) (*api.User, error) {
	token, ok, err := m.store.Get(ctx, storage.KeyAuthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if !ok || token == "" {
		return nil, ErrNoToken
	}

	if token == DemoToken {
		if !m.demo {
			m.ClearLocal(ctx)
			return nil, ErrNotAuthenticated
		}
		user, err := m.storedUser(ctx)
		if err != nil {
			m.ClearLocal(ctx)
			return nil, err
		}
		m.setUser(user)
		return m.Current(), nil
	}

	user, err := m.backend.Me(ctx)
	if err != nil {
		m.ClearLocal(ctx)
		return nil, fmt.Errorf("session check failed: %w", err)
	}
	if err := m.persist(ctx, user, token); err != nil {
		return nil, err
	}
	m.setUser(user)
	return m.Current(), nil
}

func (m *Manager) storedUser(ctx context.Context) (*api.User, error) {
	raw, ok, err := m.store.Get(ctx, storage.KeyUser)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if !ok {
		return nil, ErrNotAuthenticated
	}
	var user api.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("stored user is corrupt: %w", err)
	}
	return &user, nil
}

func (m *Manager) setUser(user *api.User) {
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
}

func (m *Manager) logFailure(eventType, email, msg string) {
	if m.audit != nil {
		m.audit.LogFailure("", eventType, email, msg)
	}
}
