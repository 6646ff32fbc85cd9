// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session ties the inactivity watchdog to the signed-in user.
//
// A Controller runs one watchdog activation per login. While a user is
// signed in every key press, click, wheel turn and pointer move pushes the
// deadlines back. When the warning deadline passes the controller shows a
// prompt with its own countdown; any activity dismisses it. When the expiry
// deadline passes, or the countdown runs out, the user is signed out and
// stored credentials are cleared.
//
// # Key Types
//
//   - Controller: Session lifecycle and watchdog wiring
//   - Phase: SignedOut, Active, Warning or Expired
//   - WarningMsg, ExpiredMsg, EndedMsg: Bubble Tea notifications
//
// # Usage
//
// Feed every message through the controller before any child model sees it:
//
//	func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
//	    cmd := m.session.Update(msg)
//	    ...
//	}
//
// and route timer expirations into the program:
//
//	p := tea.NewProgram(m)
//	ctrl.SetDispatcher(watchdog.ProgramDispatcher(p))
package session
