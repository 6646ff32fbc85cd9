// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/medcare-tui/internal/session"
	"github.com/jeranaias/medcare-tui/internal/ui/styles"
	"github.com/jeranaias/medcare-tui/internal/util"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// Shortcut is one key hint.
type Shortcut struct {
	Key  string
	Desc string
}

// DashboardShortcuts are shown while browsing records.
var DashboardShortcuts = []Shortcut{
	{"tab", "switch"},
	{"/", "filter"},
	{"[ ]", "page"},
	{"r", "reload"},
	{"ctrl+l", "logout"},
	{"q", "quit"},
}

// StatusBar is the bottom line of the dashboard.
type StatusBar struct {
	Width         int
	ShowRemaining bool
	Shortcuts     []Shortcut
	Message       string

	status session.Status
	theme  *styles.Theme
}

// NewStatusBar creates a status bar with the dashboard shortcuts.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Width:         80,
		ShowRemaining: true,
		Shortcuts:     DashboardShortcuts,
		theme:         theme,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// SetStatus records the latest session snapshot.
func (s *StatusBar) SetStatus(st session.Status) {
	s.status = st
}

// View renders the status bar. Shortcuts are dropped first when the line
// does not fit.
func (s *StatusBar) View() string {
	t := s.theme
	left := s.userSegment()
	right := s.sessionSegment()

	var hints []string
	for _, sc := range s.Shortcuts {
		hints = append(hints, t.ShortcutKey.Render(sc.Key)+" "+t.ShortcutDesc.Render(sc.Desc))
	}
	middle := strings.Join(hints, "  ")
	if s.Message != "" {
		middle = t.ShortcutDesc.Render(s.Message)
	}

	inner := s.Width - t.StatusBar.GetHorizontalPadding()
	used := lipgloss.Width(left) + lipgloss.Width(right)
	if used+lipgloss.Width(middle)+4 > inner {
		middle = ""
	}

	gap := inner - used - lipgloss.Width(middle)
	if gap < 2 {
		gap = 2
	}
	leftGap := gap / 2
	line := left + strings.Repeat(" ", leftGap) + middle + strings.Repeat(" ", gap-leftGap) + right

	return t.StatusBar.Width(s.Width).Render(line)
}

func (s *StatusBar) userSegment() string {
	u := s.status.User
	if u == nil {
		return s.theme.ShortcutDesc.Render("signed out")
	}
	name := util.Truncate(u.Name, 24)
	if u.Role != "" {
		name += " (" + util.Truncate(u.Role, 16) + ")"
	}
	return s.theme.StatusUser.Render(name)
}

func (s *StatusBar) sessionSegment() string {
	st := s.status
	switch st.Phase {
	case session.PhaseWarning:
		return s.theme.StatusWarning.Render(styles.StatusIndicators.Warning + " logout in " + util.FormatClock(st.Countdown))
	case session.PhaseActive:
		if !st.Watchdog {
			return s.theme.StatusClock.Render("auto-logout off")
		}
		if !s.ShowRemaining {
			return ""
		}
		return s.theme.StatusClock.Render("idle logout in " + util.FormatDuration(st.Remaining))
	default:
		return ""
	}
}
