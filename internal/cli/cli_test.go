// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/auth"
	"github.com/jeranaias/medcare-tui/internal/config"
)

// =============================================================================
// PARSING
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		cmd  Command
		want Args
	}{
		{"default", nil, CmdTUI, Args{}},
		{"login with email", []string{"login", "--email", "ann@example.com"}, CmdLogin, Args{Email: "ann@example.com"}},
		{"json before command", []string{"--json", "status"}, CmdStatus, Args{JSON: true}},
		{"alias", []string{"s"}, CmdStatus, Args{}},
		{"config set", []string{"config", "set", "ui.theme", "light"}, CmdConfig,
			Args{Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "light"}},
		{"config file", []string{"--config=/tmp/x.toml", "whoami"}, CmdWhoami, Args{ConfigFile: "/tmp/x.toml"}},
		{"help flag wins", []string{"status", "-h"}, CmdHelp, Args{}},
		{"version flag", []string{"--version"}, CmdVersion, Args{}},
		{"unknown", []string{"frobnicate"}, CmdHelp, Args{Unknown: "frobnicate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := Parse(tt.argv)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.want, args)
		})
	}
}

func TestArgParser(t *testing.T) {
	p := NewArgParser([]string{"set", "--json", "key", "--email=a@b.c", "--quiet=false", "--", "--literal"})
	assert.True(t, p.BoolFlag("json"))
	assert.False(t, p.BoolFlag("quiet"))
	assert.Equal(t, "a@b.c", p.Flag("email"))
	assert.Equal(t, "fallback", p.FlagOrDefault("missing", "fallback"))
	assert.Equal(t, "set", p.Positional(0))
	assert.Equal(t, "key", p.Positional(1))
	assert.Equal(t, "--literal", p.Positional(2))
	assert.Equal(t, "", p.Positional(9))
	assert.Nil(t, p.PositionalFrom(9))
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "login", CmdLogin.String())
	assert.Equal(t, "unknown", Command(99).String())
}

// =============================================================================
// VERSION AND HELP
// =============================================================================

func TestHandleVersion_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HandleVersion(&buf, Args{JSON: true}))

	var resp struct {
		Success bool        `json:"success"`
		Command string      `json:"command"`
		Data    VersionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "version", resp.Command)
	assert.Equal(t, Version, resp.Data.Version)
}

func TestHandleHelp_PlainWhenPiped(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HandleHelp(&buf, Args{Unknown: "frob"}))
	out := buf.String()
	assert.Contains(t, out, "Unknown command: frob")
	assert.Contains(t, out, "medcare login")
	assert.Contains(t, out, "L signs out immediately")
}

// =============================================================================
// CONFIG
// =============================================================================

func TestHandleConfig_InitGetSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	args := Args{ConfigFile: path, Quiet: true}

	args.Subcommand = "init"
	require.NoError(t, HandleConfig(&bytes.Buffer{}, args))
	assert.FileExists(t, path)

	err := HandleConfig(&bytes.Buffer{}, args)
	var usage *UsageError
	require.ErrorAs(t, err, &usage, "init refuses to overwrite")

	args.Force = true
	require.NoError(t, HandleConfig(&bytes.Buffer{}, args))

	args.Subcommand, args.ConfigKey, args.ConfigVal = "set", "session.timeout_secs", "600"
	require.NoError(t, HandleConfig(&bytes.Buffer{}, args))

	var buf bytes.Buffer
	args.Subcommand, args.ConfigVal = "get", ""
	require.NoError(t, HandleConfig(&buf, args))
	assert.Equal(t, "600\n", buf.String())

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Session.TimeoutSecs)
}

func TestHandleConfig_SetRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	args := Args{ConfigFile: path, Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "neon"}

	err := HandleConfig(&bytes.Buffer{}, args)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
	assert.NoFileExists(t, path)

	args.ConfigKey = "nope.key"
	err = HandleConfig(&bytes.Buffer{}, args)
	var usage *UsageError
	assert.ErrorAs(t, err, &usage)
}

func TestHandleConfig_ShowMasksSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := config.Default()
	cfg.Metrics.BearerToken = "supersecrettoken"
	require.NoError(t, config.SaveTOML(cfg, path))

	var buf bytes.Buffer
	require.NoError(t, HandleConfig(&buf, Args{ConfigFile: path, Subcommand: "show", JSON: true}))
	assert.NotContains(t, buf.String(), "supersecrettoken")
	assert.Contains(t, buf.String(), "su************en")
}

func TestHandleConfig_UnknownSubcommand(t *testing.T) {
	err := HandleConfig(&bytes.Buffer{}, Args{Subcommand: "explode"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// LOGIN / LOGOUT / WHOAMI
// =============================================================================

type fakePrompter struct {
	lines    []string
	password string
	err      error
	closed   bool
}

func (p *fakePrompter) Prompt(string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func (p *fakePrompter) PasswordPrompt(string) (string, error) {
	return p.password, p.err
}

func (p *fakePrompter) Close() error {
	p.closed = true
	return nil
}

func openServices(t *testing.T, baseURL string) *Services {
	t.Helper()
	home := t.TempDir()
	t.Setenv("MEDCARE_HOME", home)

	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.API.RequestsPerSecond = 0
	cfg.Audit.Path = filepath.Join(home, "audit.log")

	svc, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		svc.Close()
	})
	return svc
}

func TestLoginWhoamiLogout_DemoAccount(t *testing.T) {
	svc := openServices(t, "http://127.0.0.1:1")
	ctx := context.Background()

	p := &fakePrompter{lines: []string{auth.DemoEmail}, password: "admin123"}
	var buf bytes.Buffer
	require.NoError(t, HandleLogin(ctx, &buf, svc, Args{}, p))
	assert.True(t, p.closed)
	assert.Contains(t, buf.String(), "Signed in as FMmedCare Admin (Administrator)")

	buf.Reset()
	require.NoError(t, HandleWhoami(ctx, &buf, svc, Args{JSON: true}))
	var resp struct {
		Data UserData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.Data.SignedIn)
	assert.True(t, resp.Data.Demo)
	assert.Equal(t, auth.DemoEmail, resp.Data.User.Email)

	buf.Reset()
	require.NoError(t, HandleLogout(ctx, &buf, svc, Args{}))
	assert.Contains(t, buf.String(), "Signed out")
	assert.Empty(t, svc.Store.Token())

	buf.Reset()
	err := HandleWhoami(ctx, &buf, svc, Args{})
	assert.ErrorIs(t, err, auth.ErrNoToken)
	assert.Equal(t, ExitAuthError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Not signed in")

	audit, err := os.ReadFile(svc.Audit.Path())
	require.NoError(t, err)
	assert.Contains(t, string(audit), "LOGIN_SUCCESS")
	assert.Contains(t, string(audit), "LOGOUT")
}

func TestLogin_EmailFlagSkipsPrompt(t *testing.T) {
	svc := openServices(t, "http://127.0.0.1:1")
	p := &fakePrompter{password: "wrong"}

	err := HandleLogin(context.Background(), &bytes.Buffer{}, svc, Args{Email: auth.DemoEmail}, p)
	require.Error(t, err)
	assert.Empty(t, p.lines)
}

func TestLogin_Aborted(t *testing.T) {
	svc := openServices(t, "http://127.0.0.1:1")
	p := &fakePrompter{err: liner.ErrPromptAborted}

	err := HandleLogin(context.Background(), &bytes.Buffer{}, svc, Args{}, p)
	assert.ErrorIs(t, err, ErrAborted)
}

func TestLogin_NeedsTerminal(t *testing.T) {
	svc := openServices(t, "http://127.0.0.1:1")
	err := HandleLogin(context.Background(), &bytes.Buffer{}, svc, Args{}, nil)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestLogout_WhenSignedOut(t *testing.T) {
	svc := openServices(t, "http://127.0.0.1:1")
	var buf bytes.Buffer
	require.NoError(t, HandleLogout(context.Background(), &buf, svc, Args{JSON: true}))
	assert.Contains(t, buf.String(), `"signed_out": false`)
}

// =============================================================================
// STATUS
// =============================================================================

func TestHandleStatus_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.Write([]byte(`{"status":"OK","message":"up"}`))
	}))
	defer srv.Close()

	svc := openServices(t, srv.URL+"/api")
	svc.Config.Session.TimeoutSecs = 600

	var buf bytes.Buffer
	require.NoError(t, HandleStatus(context.Background(), &buf, svc, Args{JSON: true}))

	var resp struct {
		Data StatusData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.Data.Backend.Reachable)
	assert.Equal(t, "OK", resp.Data.Backend.Status)
	assert.False(t, resp.Data.User.SignedIn)
	assert.Equal(t, 600, resp.Data.Session.TimeoutSecs)
	assert.Equal(t, svc.Store.Path(), resp.Data.Credentials)
}

func TestHandleStatus_BackendDown(t *testing.T) {
	svc := openServices(t, "http://127.0.0.1:1")
	var buf bytes.Buffer
	require.NoError(t, HandleStatus(context.Background(), &buf, svc, Args{}))
	assert.Contains(t, buf.String(), "Backend")
	assert.Contains(t, buf.String(), "signed out")
}

// =============================================================================
// ERRORS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitGeneralError, GetExitCode(errors.New("x")))
	assert.Equal(t, ExitAuthError, GetExitCode(NewCommandError("login", "", auth.ErrInvalidCredentials)))
	assert.Equal(t, ExitAuthError, GetExitCode(&api.APIError{Status: http.StatusUnauthorized}))
	assert.Equal(t, ExitNetworkError, GetExitCode(&api.APIError{Status: http.StatusBadGateway}))
}

func TestDisplayError_JSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, "status", errors.New("boom"), true)
	assert.Contains(t, buf.String(), `"error": "boom"`)
	assert.Contains(t, buf.String(), `"success": false`)
}
