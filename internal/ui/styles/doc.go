// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and Lip Gloss styles of the medcare TUI.

# Colors (colors.go)

Every color is a lipgloss.AdaptiveColor so the palette follows the
terminal background:

  - Teal - Brand color, active tab, focused inputs
  - Emerald - Paid claims, success notices
  - Amber - Session warnings, pending claims
  - Rose - Errors, expired sessions, denied claims

Status messages always carry an ASCII indicator ([OK], [X], [!], [i]) so
they read correctly without color.

# Theme (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme)
	header := theme.Header.Render("FMmedCare")

NewTheme accepts "dark", "light" or "auto". "auto" asks termenv for the
terminal background.
*/
package styles
