// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/medcare-tui/internal/ui/styles"
	"github.com/jeranaias/medcare-tui/internal/util"
)

// =============================================================================
// SESSION TIMEOUT OVERLAY
// =============================================================================

// SessionTimeoutOverlay is the modal shown while a session is about to end
// and after it has ended. It only renders; the session controller decides
// what keys do.
type SessionTimeoutOverlay struct {
	visible   bool
	expired   bool
	countdown int

	width  int
	height int
}

// NewSessionTimeoutOverlay creates a hidden overlay.
func NewSessionTimeoutOverlay() SessionTimeoutOverlay {
	return SessionTimeoutOverlay{}
}

// SetSize sets the area the overlay is centered in.
func (o *SessionTimeoutOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// ShowWarning opens the prompt with secs left on the countdown.
func (o *SessionTimeoutOverlay) ShowWarning(secs int) {
	o.visible = true
	o.expired = false
	o.countdown = secs
}

// SetCountdown updates the seconds left.
func (o *SessionTimeoutOverlay) SetCountdown(secs int) {
	o.countdown = secs
}

// ShowExpired switches to the logged-out notice.
func (o *SessionTimeoutOverlay) ShowExpired() {
	o.visible = true
	o.expired = true
	o.countdown = 0
}

// Hide closes the overlay.
func (o *SessionTimeoutOverlay) Hide() {
	o.visible = false
	o.expired = false
	o.countdown = 0
}

// IsVisible returns whether the overlay is currently visible.
func (o SessionTimeoutOverlay) IsVisible() bool {
	return o.visible
}

// IsExpired returns whether the expired notice is showing.
func (o SessionTimeoutOverlay) IsExpired() bool {
	return o.visible && o.expired
}

// Countdown returns the seconds left on the prompt.
func (o SessionTimeoutOverlay) Countdown() int {
	return o.countdown
}

// View renders the overlay, or nothing when hidden.
func (o SessionTimeoutOverlay) View() string {
	if !o.visible {
		return ""
	}
	if o.expired {
		return o.place(styles.Rose, o.expiredContent())
	}
	return o.place(styles.Amber, o.warningContent())
}

// =============================================================================
// RENDER METHODS
// =============================================================================

func (o SessionTimeoutOverlay) boxWidth() int {
	w := o.width - 8
	if w < 40 {
		w = 40
	}
	if w > 60 {
		w = 60
	}
	return w
}

func (o SessionTimeoutOverlay) warningContent() string {
	inner := o.boxWidth() - 8

	title := lipgloss.NewStyle().Foreground(styles.Amber).Bold(true).
		Render(styles.StatusIndicators.Warning + " Session Timeout Warning")

	clock := lipgloss.NewStyle().Foreground(styles.Amber).Bold(true).
		Render(util.FormatClock(o.countdown))
	msg := lipgloss.NewStyle().Foreground(styles.TextPrimary).Width(inner).Align(lipgloss.Center).
		Render("Your session will expire in " + clock + " due to inactivity.")

	question := lipgloss.NewStyle().Foreground(styles.TextSecondary).Width(inner).Align(lipgloss.Center).
		Render("Would you like to extend your session?")

	key := lipgloss.NewStyle().Foreground(styles.Teal).Bold(true)
	desc := lipgloss.NewStyle().Foreground(styles.TextMuted)
	buttons := key.Render("any key") + desc.Render(" Extend Session") +
		"    " + key.Render("L") + desc.Render(" Logout Now")

	return lipgloss.JoinVertical(lipgloss.Center, title, "", msg, "", question, "", buttons)
}

func (o SessionTimeoutOverlay) expiredContent() string {
	inner := o.boxWidth() - 8

	title := lipgloss.NewStyle().Foreground(styles.Rose).Bold(true).
		Render(styles.StatusIndicators.Error + " Session Expired")

	msg := lipgloss.NewStyle().Foreground(styles.TextPrimary).Width(inner).Align(lipgloss.Center).
		Render("You have been logged out due to inactivity.")

	hint := lipgloss.NewStyle().Foreground(styles.TextSecondary).Italic(true).
		Render("Press Enter to sign in again")

	return lipgloss.JoinVertical(lipgloss.Center, title, "", msg, "", hint)
}

func (o SessionTimeoutOverlay) place(border lipgloss.AdaptiveColor, content string) string {
	width, height := o.width, o.height
	if width == 0 {
		width = 60
	}
	if height == 0 {
		height = 24
	}

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(border).
		Padding(1, 3).
		Width(o.boxWidth()).
		Align(lipgloss.Center).
		Render(content)

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}
