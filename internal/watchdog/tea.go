// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watchdog

import (
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// FireMsg carries a timer expiration into the Bubble Tea event loop. The
// root model must call Run when it receives one.
type FireMsg struct {
	fn func()
}

// Run executes the expiration on the caller's goroutine.
func (m FireMsg) Run() {
	if m.fn != nil {
		m.fn()
	}
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramDispatcher posts expirations to p as FireMsg so they run inside
// Update, serialized with every other message.
func ProgramDispatcher(p Sender) Dispatcher {
	return func(fn func()) {
		p.Send(FireMsg{fn: fn})
	}
}

// KindsForMsg maps a Bubble Tea input message to the activity it represents.
// Non-input messages map to nothing.
func KindsForMsg(msg tea.Msg) []EventKind {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return []EventKind{EventKeyDown, EventKeyPress}

	case tea.MouseMsg:
		switch msg.Type {
		case tea.MouseWheelUp, tea.MouseWheelDown:
			return []EventKind{EventScroll}
		case tea.MouseMotion:
			return []EventKind{EventPointerMove}
		case tea.MouseRelease:
			return []EventKind{EventClick}
		case tea.MouseLeft, tea.MouseRight, tea.MouseMiddle:
			return []EventKind{EventPointerDown}
		}
	}
	return nil
}

// TeaSource is a Source fed by the root model. Calling Observe before any
// child model sees the message gives capture-phase semantics: activity is
// detected no matter which view ends up handling the input.
type TeaSource struct {
	*Broadcaster
}

// NewTeaSource creates a source for a Bubble Tea program.
func NewTeaSource() *TeaSource {
	return &TeaSource{Broadcaster: NewBroadcaster()}
}

// Observe emits the activity carried by msg, if any, and reports whether
// msg was user input.
func (s *TeaSource) Observe(msg tea.Msg) bool {
	kinds := KindsForMsg(msg)
	for _, k := range kinds {
		s.Emit(k)
	}
	return len(kinds) > 0
}
