// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/auth"
	"github.com/jeranaias/medcare-tui/internal/security"
	"github.com/jeranaias/medcare-tui/internal/session"
	"github.com/jeranaias/medcare-tui/internal/ui/components"
	"github.com/jeranaias/medcare-tui/internal/ui/dashboard"
	"github.com/jeranaias/medcare-tui/internal/ui/styles"
)

// loginTimeout bounds a login request issued from the form.
const loginTimeout = 30 * time.Second

// =============================================================================
// APPLICATION MODEL
// =============================================================================

// State represents the current application screen.
type State int

const (
	StateLogin     State = iota // Login form
	StateDashboard              // Records dashboard
	StateExpired                // Logged out by inactivity, waiting for acknowledgement
)

// Authenticator is what the TUI needs from auth.Manager.
type Authenticator interface {
	session.Authenticator
	Login(ctx context.Context, email, password string) (*api.User, error)
}

// loginResultMsg carries the outcome of a login started from the form.
type loginResultMsg struct {
	user *api.User
	err  error
}

// clockTickMsg refreshes the status bar once a second. It is not input and
// never counts as activity.
type clockTickMsg struct {
	gen int
}

// Model is the root Bubble Tea model.
type Model struct {
	state State

	theme  *styles.Theme
	width  int
	height int

	login   components.LoginForm
	dash    dashboard.Model
	status  *components.StatusBar
	overlay components.SessionTimeoutOverlay

	auth Authenticator
	ctrl *session.Controller

	// Bumped per session so an old status tick dies with its session.
	tickGen int
}

// NewModel creates the root model. The controller must be built on the
// same authenticator.
func NewModel(theme *styles.Theme, authr Authenticator, ctrl *session.Controller, backend dashboard.Backend, perPage int) *Model {
	return &Model{
		state:   StateLogin,
		theme:   theme,
		width:   80,
		height:  24,
		login:   components.NewLoginForm(theme),
		dash:    dashboard.New(theme, backend, perPage),
		status:  components.NewStatusBar(theme),
		overlay: components.NewSessionTimeoutOverlay(),
		auth:    authr,
		ctrl:    ctrl,
	}
}

// State returns the current screen.
func (m *Model) State() State {
	return m.state
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init resumes a session restored before the program started, or shows
// the login form.
func (m *Model) Init() tea.Cmd {
	if m.auth.Current() != nil {
		return m.beginSession()
	}
	return m.login.Reset()
}

// Update handles messages and updates the model. The session controller
// sees every message first so activity is never missed.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	before := m.ctrl.Phase()
	ctrlCmd := m.ctrl.Update(msg)

	// A key or click while the prompt is open extends the session and is
	// not passed on.
	if before == session.PhaseWarning && m.overlay.IsVisible() && !m.overlay.IsExpired() &&
		m.ctrl.Phase() == session.PhaseActive {
		m.overlay.Hide()
		m.refreshStatus()
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "ctrl+c" {
			return m, tea.Batch(ctrlCmd, tea.Quit)
		}
		return m, ctrlCmd
	}

	model, cmd := m.update(msg)
	return model, tea.Batch(ctrlCmd, cmd)
}

func (m *Model) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case clockTickMsg:
		return m, m.handleClockTick(msg)

	case session.WarningMsg:
		// Input may have extended the session while this was queued.
		if m.ctrl.Phase() == session.PhaseWarning {
			m.overlay.ShowWarning(msg.Countdown)
		}
		m.refreshStatus()
		return m, nil

	case session.CountdownTickMsg:
		st := m.ctrl.Status()
		if st.Phase == session.PhaseWarning {
			m.overlay.SetCountdown(st.Countdown)
		}
		m.status.SetStatus(st)
		return m, nil

	case session.ExpiredMsg:
		m.overlay.ShowExpired()
		m.dash.Reset()
		m.state = StateExpired
		m.refreshStatus()
		return m, nil

	case session.EndedMsg:
		return m, m.toLogin()

	case loginResultMsg:
		return m, m.handleLoginResult(msg)

	case components.LoginSubmitMsg:
		return m, m.submitLogin(msg)

	case dashboard.UnauthorizedMsg:
		if m.state != StateDashboard {
			return m, nil
		}
		// A demo token is never accepted by a real backend. The dashboard
		// keeps showing the load error instead of signing out.
		if m.auth.Token(context.Background()) == auth.DemoToken {
			return m, nil
		}
		cmd := m.ctrl.Logout()
		m.login.SetError("Your session is no longer valid. Please sign in again.")
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, m.forward(msg)
}

// forward passes msg to the active screen.
func (m *Model) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.state {
	case StateLogin:
		m.login, cmd = m.login.Update(msg)
	case StateDashboard:
		m.dash, cmd = m.dash.Update(msg)
	}
	return cmd
}

// handleKeyPress processes keyboard input.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.state {
	case StateExpired:
		switch msg.String() {
		case "enter", "esc", " ":
			m.ctrl.Acknowledge()
			return m, m.toLogin()
		case "q":
			return m, tea.Quit
		}
		return m, nil

	case StateDashboard:
		if m.overlay.IsVisible() {
			return m, nil
		}
		if !m.dash.CapturesInput() {
			switch msg.String() {
			case "ctrl+l":
				return m, m.ctrl.Logout()
			case "q":
				return m, tea.Quit
			}
		}

	case StateLogin:
		if msg.String() == "esc" && !m.login.Busy() {
			return m, tea.Quit
		}
	}

	return m, m.forward(msg)
}

// =============================================================================
// SESSION TRANSITIONS
// =============================================================================

func (m *Model) submitLogin(msg components.LoginSubmitMsg) tea.Cmd {
	authr := m.auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		user, err := authr.Login(ctx, msg.Email, msg.Password)
		return loginResultMsg{user: user, err: err}
	}
}

func (m *Model) handleLoginResult(msg loginResultMsg) tea.Cmd {
	m.login.SetBusy(false)
	if msg.err != nil {
		m.login.SetError(loginErrorText(msg.err))
		return nil
	}
	return m.beginSession()
}

// beginSession starts the watchdog for the current user and opens the
// dashboard on its first tab.
func (m *Model) beginSession() tea.Cmd {
	if err := m.ctrl.Start(); err != nil {
		m.state = StateLogin
		m.login.SetError(err.Error())
		return nil
	}
	m.state = StateDashboard
	m.overlay.Hide()
	m.login.SetError("")
	m.tickGen++
	m.refreshStatus()
	return tea.Batch(m.dash.Start(), clockTick(m.tickGen))
}

// toLogin drops the records and shows the login form. An error already
// set on the form, such as a rejected token, stays visible.
func (m *Model) toLogin() tea.Cmd {
	m.state = StateLogin
	m.overlay.Hide()
	m.dash.Reset()
	m.tickGen++
	m.refreshStatus()

	errMsg := m.login.Err()
	cmd := m.login.Reset()
	m.login.SetError(errMsg)
	return cmd
}

func loginErrorText(err error) string {
	switch {
	case errors.Is(err, security.ErrLocked):
		return "Too many failed attempts. Try again later."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid email or password"
	default:
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			return apiErr.Error()
		}
		return "Login failed: " + err.Error()
	}
}

// =============================================================================
// STATUS CLOCK
// =============================================================================

func clockTick(gen int) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return clockTickMsg{gen: gen}
	})
}

func (m *Model) handleClockTick(msg clockTickMsg) tea.Cmd {
	if msg.gen != m.tickGen || m.state != StateDashboard {
		return nil
	}
	m.refreshStatus()
	return clockTick(m.tickGen)
}

func (m *Model) refreshStatus() {
	m.status.SetStatus(m.ctrl.Status())
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)
	m.login.SetSize(width, height)
	m.overlay.SetSize(width, height)
	m.status.SetWidth(width)
	m.dash.SetSize(width, height-lipgloss.Height(m.status.View()))
}

// View renders the current screen. The session overlay replaces the
// dashboard while it is visible.
func (m *Model) View() string {
	if m.overlay.IsVisible() {
		return m.overlay.View()
	}

	switch m.state {
	case StateDashboard:
		return lipgloss.JoinVertical(lipgloss.Left, m.dash.View(), m.status.View())
	default:
		return m.login.View()
	}
}
