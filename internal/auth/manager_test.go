// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/security"
	"github.com/jeranaias/medcare-tui/internal/storage"
)

type fakeBackend struct {
	loginResp *api.LoginResponse
	loginErr  error
	logins    int

	meUser *api.User
	meErr  error

	logoutErr    error
	logoutTokens []string
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (*api.LoginResponse, error) {
	f.logins++
	return f.loginResp, f.loginErr
}

func (f *fakeBackend) Logout(ctx context.Context, token string) error {
	f.logoutTokens = append(f.logoutTokens, token)
	return f.logoutErr
}

func (f *fakeBackend) Me(ctx context.Context) (*api.User, error) {
	return f.meUser, f.meErr
}

func newTestStore(t *testing.T) *storage.CredentialStore {
	t.Helper()
	store, err := storage.OpenCredentialStore(filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var ann = api.User{ID: "42", Email: "ann@example.com", Name: "Ann", Role: "Biller"}

// =============================================================================
// LOGIN TESTS
// =============================================================================

func TestLogin_DemoAccount(t *testing.T) {
	backend := &fakeBackend{}
	store := newTestStore(t)
	m := NewManager(backend, store)

	user, err := m.Login(context.Background(), "Admin@FMmedCare.com", "admin123")
	require.NoError(t, err)

	assert.Equal(t, "FMmedCare Admin", user.Name)
	assert.Equal(t, 0, backend.logins, "demo login never reaches the backend")
	assert.Equal(t, DemoToken, store.Token())
	assert.True(t, m.IsAuthenticated())
}

func TestLogin_DemoDisabledUsesBackend(t *testing.T) {
	backend := &fakeBackend{loginErr: &api.APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}}
	m := NewManager(backend, newTestStore(t), WithDemoAccount(false))

	_, err := m.Login(context.Background(), DemoEmail, "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, backend.logins)
}

func TestLogin_WrongDemoPasswordFallsThrough(t *testing.T) {
	backend := &fakeBackend{loginErr: &api.APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}}
	m := NewManager(backend, newTestStore(t))

	_, err := m.Login(context.Background(), DemoEmail, "admin124")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, backend.logins)
	assert.Nil(t, m.Current())
}

func TestLogin_Backend(t *testing.T) {
	backend := &fakeBackend{loginResp: &api.LoginResponse{User: ann, Token: "tok-9"}}
	store := newTestStore(t)
	m := NewManager(backend, store)

	user, err := m.Login(context.Background(), " ann@example.com ", "pw")
	require.NoError(t, err)
	assert.Equal(t, ann, *user)
	assert.Equal(t, "tok-9", store.Token())

	raw, ok, err := store.Get(context.Background(), storage.KeyUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"42","email":"ann@example.com","name":"Ann","role":"Biller"}`, raw)
}

func TestLogin_EmptyFields(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, newTestStore(t))

	_, err := m.Login(context.Background(), "  ", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Login(context.Background(), "a@b.c", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, backend.logins)
}

func TestLogin_MissingTokenIsError(t *testing.T) {
	backend := &fakeBackend{loginResp: &api.LoginResponse{User: ann}}
	m := NewManager(backend, newTestStore(t))

	_, err := m.Login(context.Background(), ann.Email, "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, m.Current())
}

func TestLogin_TransportErrorDoesNotCountTowardLockout(t *testing.T) {
	backend := &fakeBackend{loginErr: errors.New("connection refused")}
	lm := security.NewLockoutManager(security.WithMaxAttempts(1))
	m := NewManager(backend, newTestStore(t), WithLockout(lm))

	_, err := m.Login(context.Background(), ann.Email, "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, lm.Attempts(ann.Email))
}

func TestLogin_Lockout(t *testing.T) {
	backend := &fakeBackend{loginErr: &api.APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}}
	lm := security.NewLockoutManager(security.WithMaxAttempts(2))
	m := NewManager(backend, newTestStore(t), WithLockout(lm))
	ctx := context.Background()

	_, err := m.Login(ctx, ann.Email, "bad")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, security.ErrLocked)

	_, err = m.Login(ctx, ann.Email, "bad")
	assert.ErrorIs(t, err, security.ErrLocked, "second failure locks")

	backend.loginErr = nil
	backend.loginResp = &api.LoginResponse{User: ann, Token: "tok"}
	_, err = m.Login(ctx, ann.Email, "good")
	assert.ErrorIs(t, err, security.ErrLocked)
	assert.Equal(t, 2, backend.logins, "locked attempts never reach the backend")
}

// =============================================================================
// LOGOUT TESTS
// =============================================================================

func TestLogout_ClearsEvenWhenBackendFails(t *testing.T) {
	backend := &fakeBackend{
		loginResp: &api.LoginResponse{User: ann, Token: "tok-9"},
		logoutErr: errors.New("unreachable"),
	}
	store := newTestStore(t)
	m := NewManager(backend, store)
	ctx := context.Background()

	_, err := m.Login(ctx, ann.Email, "pw")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, []string{"tok-9"}, backend.logoutTokens)
	assert.Empty(t, store.Token())
	assert.Nil(t, m.Current())

	_, ok, err := store.Get(ctx, storage.KeyUser)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogout_DemoTokenNotRevoked(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, newTestStore(t))
	ctx := context.Background()

	_, err := m.Login(ctx, DemoEmail, "admin123")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx))
	assert.Empty(t, backend.logoutTokens)
}

func TestLogout_WhenSignedOut(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, newTestStore(t))

	assert.NoError(t, m.Logout(context.Background()))
	assert.Empty(t, backend.logoutTokens)
}

// =============================================================================
// RESTORE TESTS
// =============================================================================

func TestRestore_NothingStored(t *testing.T) {
	m := NewManager(&fakeBackend{}, newTestStore(t))

	_, err := m.Restore(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestRestore_DemoSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	first := NewManager(&fakeBackend{}, store)
	_, err := first.Login(ctx, DemoEmail, "admin123")
	require.NoError(t, err)

	backend := &fakeBackend{meErr: errors.New("must not be called")}
	second := NewManager(backend, store)
	user, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, DemoUser, *user)
}

func TestRestore_ValidatesWithBackend(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, storage.KeyAuthToken, "tok-9"))

	renamed := ann
	renamed.Name = "Ann B."
	m := NewManager(&fakeBackend{meUser: &renamed}, store)

	user, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ann B.", user.Name)
	assert.Equal(t, "tok-9", store.Token())
}

func TestRestore_FailureClearsCredentials(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, storage.KeyAuthToken, "expired"))

	m := NewManager(&fakeBackend{meErr: &api.APIError{Status: http.StatusUnauthorized, Message: "Unauthenticated."}}, store)

	_, err := m.Restore(ctx)
	require.Error(t, err)
	assert.True(t, api.IsStatus(err, http.StatusUnauthorized))
	assert.Empty(t, store.Token())
	assert.Nil(t, m.Current())
}

func TestVerifyDemoPassword(t *testing.T) {
	assert.True(t, verifyDemoPassword("admin123"))
	assert.False(t, verifyDemoPassword("Admin123"))
	assert.False(t, verifyDemoPassword(""))
}
