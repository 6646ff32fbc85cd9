// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/auth"
)

// =============================================================================
// PROMPTER
// =============================================================================

// Prompter reads a line and a hidden password. *liner.State satisfies it.
type Prompter interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
	Close() error
}

// NewLinePrompter returns a line editor on the terminal. Ctrl+C aborts
// the prompt.
func NewLinePrompter() Prompter {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return line
}

// ErrAborted is returned when the user aborts a prompt.
var ErrAborted = errors.New("aborted")

// UserData is the JSON form of a signed-in user.
type UserData struct {
	SignedIn bool      `json:"signed_in"`
	User     *api.User `json:"user,omitempty"`
	Demo     bool      `json:"demo,omitempty"`
}

// =============================================================================
// LOGIN / LOGOUT / WHOAMI
// =============================================================================

// HandleLogin prompts for credentials and signs in. The email comes from
// --email when given.
func HandleLogin(ctx context.Context, w io.Writer, svc *Services, args Args, p Prompter) error {
	if p == nil {
		return &UsageError{Message: "login needs an interactive terminal"}
	}
	defer p.Close()

	email := strings.TrimSpace(args.Email)
	if email == "" {
		var err error
		email, err = p.Prompt("Email: ")
		if err != nil {
			return promptErr(err)
		}
	}
	password, err := p.PasswordPrompt("Password: ")
	if err != nil {
		return promptErr(err)
	}

	user, err := svc.Auth.Login(ctx, email, password)
	if err != nil {
		return NewCommandError("login", "", err)
	}

	if args.JSON {
		return NewJSONResponse("login", userData(ctx, svc, user)).Print(w)
	}
	if !args.Quiet {
		fmt.Fprintln(w, RenderStatus(true, "Signed in as "+describeUser(user)))
	}
	return nil
}

func promptErr(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return ErrAborted
	}
	return err
}

// HandleLogout clears stored credentials and revokes the token.
func HandleLogout(ctx context.Context, w io.Writer, svc *Services, args Args) error {
	wasSignedIn := svc.Auth.Token(ctx) != ""
	if wasSignedIn {
		if err := svc.Auth.Logout(ctx); err != nil {
			return NewCommandError("logout", "", err)
		}
	}

	if args.JSON {
		return NewJSONResponse("logout", map[string]bool{"signed_out": wasSignedIn}).Print(w)
	}
	if args.Quiet {
		return nil
	}
	if wasSignedIn {
		fmt.Fprintln(w, RenderStatus(true, "Signed out"))
	} else {
		fmt.Fprintln(w, MutedStyle.Render("Not signed in"))
	}
	return nil
}

// HandleWhoami restores the stored session and shows its user.
func HandleWhoami(ctx context.Context, w io.Writer, svc *Services, args Args) error {
	user, err := svc.Auth.Restore(ctx)
	if err != nil {
		if args.JSON && errors.Is(err, auth.ErrNoToken) {
			return NewJSONResponse("whoami", UserData{}).Print(w)
		}
		if errors.Is(err, auth.ErrNoToken) {
			fmt.Fprintln(w, MutedStyle.Render("Not signed in"))
			return err
		}
		return NewCommandError("whoami", "", err)
	}

	if args.JSON {
		return NewJSONResponse("whoami", userData(ctx, svc, user)).Print(w)
	}
	fmt.Fprintln(w, RenderField("Name", user.Name))
	fmt.Fprintln(w, RenderField("Email", user.Email))
	fmt.Fprintln(w, RenderField("Role", user.Role))
	return nil
}

func userData(ctx context.Context, svc *Services, user *api.User) UserData {
	return UserData{
		SignedIn: true,
		User:     user,
		Demo:     svc.Auth.Token(ctx) == auth.DemoToken,
	}
}

func describeUser(u *api.User) string {
	if u.Role == "" {
		return u.Name
	}
	return u.Name + " (" + u.Role + ")"
}
