// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/medcare-tui/internal/ui/styles"
)

// LoginSubmitMsg is emitted when the user submits the form.
type LoginSubmitMsg struct {
	Email    string
	Password string
}

const (
	fieldEmail = iota
	fieldPassword
)

// LoginForm collects an email and a masked password.
type LoginForm struct {
	email    textinput.Model
	password textinput.Model
	focus    int
	err      string
	busy     bool

	width  int
	height int
	theme  *styles.Theme
}

// NewLoginForm creates a form with the email field focused.
func NewLoginForm(theme *styles.Theme) LoginForm {
	email := textinput.New()
	email.Placeholder = "you@fmmedcare.com"
	email.Prompt = ""
	email.CharLimit = 254
	email.Width = 32
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = ""
	password.CharLimit = 128
	password.Width = 32
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return LoginForm{
		email:    email,
		password: password,
		theme:    theme,
	}
}

// SetSize sets the area the form is centered in.
func (f *LoginForm) SetSize(width, height int) {
	f.width = width
	f.height = height
}

// SetEmail pre-fills the email field.
func (f *LoginForm) SetEmail(email string) {
	f.email.SetValue(email)
	f.email.CursorEnd()
}

// SetError shows msg under the fields. An empty msg clears it.
func (f *LoginForm) SetError(msg string) {
	f.err = msg
}

// Err returns the message under the fields.
func (f LoginForm) Err() string {
	return f.err
}

// SetBusy blocks input while a login is in flight.
func (f *LoginForm) SetBusy(busy bool) {
	f.busy = busy
}

// Busy reports whether a login is in flight.
func (f LoginForm) Busy() bool {
	return f.busy
}

// Reset clears the password and error and focuses the first empty field.
// The email is kept so a re-login after a timeout needs only the password.
func (f *LoginForm) Reset() tea.Cmd {
	f.password.SetValue("")
	f.err = ""
	f.busy = false
	if strings.TrimSpace(f.email.Value()) == "" {
		return f.setFocus(fieldEmail)
	}
	return f.setFocus(fieldPassword)
}

func (f *LoginForm) setFocus(field int) tea.Cmd {
	f.focus = field
	if field == fieldEmail {
		f.password.Blur()
		return f.email.Focus()
	}
	f.email.Blur()
	return f.password.Focus()
}

// Update handles focus movement, submission and typing.
func (f LoginForm) Update(msg tea.Msg) (LoginForm, tea.Cmd) {
	if f.busy {
		return f, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "tab", "shift+tab", "up", "down":
			return f, f.setFocus(1 - f.focus)
		case "enter":
			if f.focus == fieldEmail {
				return f, f.setFocus(fieldPassword)
			}
			return f.submit()
		}
	}

	var cmd tea.Cmd
	if f.focus == fieldEmail {
		f.email, cmd = f.email.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return f, cmd
}

func (f LoginForm) submit() (LoginForm, tea.Cmd) {
	email := strings.TrimSpace(f.email.Value())
	password := f.password.Value()
	if email == "" || password == "" {
		f.err = "Email and password are required"
		return f, nil
	}
	f.err = ""
	f.busy = true
	return f, func() tea.Msg {
		return LoginSubmitMsg{Email: email, Password: password}
	}
}

// View renders the centered form.
func (f LoginForm) View() string {
	t := f.theme

	label := func(s string, focused bool) string {
		style := t.LoginLabel
		if focused {
			style = style.Foreground(styles.Teal).Bold(true)
		}
		return style.Render(s)
	}

	parts := []string{
		t.LoginTitle.Render("FMmedCare Billing"),
		t.HeaderSubtitle.Render("Sign in to continue"),
		"",
		label("Email", f.focus == fieldEmail),
		f.email.View(),
		"",
		label("Password", f.focus == fieldPassword),
		f.password.View(),
		"",
	}

	switch {
	case f.busy:
		parts = append(parts, t.LoginHint.Render("Signing in..."))
	case f.err != "":
		parts = append(parts, t.ErrorMessage.Render(styles.StatusIndicators.Error+" "+f.err))
	default:
		parts = append(parts, t.LoginHint.Render("tab to switch fields, enter to sign in"))
	}

	box := t.LoginBox.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	if f.width == 0 || f.height == 0 {
		return box
	}
	return lipgloss.Place(f.width, f.height, lipgloss.Center, lipgloss.Center, box)
}
