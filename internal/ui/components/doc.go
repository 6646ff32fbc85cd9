// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable pieces of the medcare TUI.
//
// # Key Types
//
//   - LoginForm: Email and masked password inputs
//   - RecordsTable: Scrollable record table sized to the terminal
//   - StatusBar: Signed-in user, shortcuts and time until logout
//   - SessionTimeoutOverlay: Countdown prompt and expired notice
//
// Components render with the shared styles.Theme and never talk to the
// backend. The root model owns data loading and the session lifecycle.
package components
