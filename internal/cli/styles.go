// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/medcare-tui/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Teal)

	// SectionStyle is used for section headers.
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.TextPrimary).
			MarginTop(1)

	// LabelStyle is used for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Width(20)

	// ValueStyle is used for plain values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary)

	// MutedStyle is used for paths and hints.
	MutedStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true)

	// SuccessStyle marks OK results.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)

	// ErrorStyle marks failures.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	// WarningStyle marks cautions.
	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber).
			Bold(true)
)

// RenderField renders one "label  value" line.
func RenderField(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}

// RenderStatus renders ok as a green OK or a red failure marker.
func RenderStatus(ok bool, text string) string {
	if ok {
		return SuccessStyle.Render(styles.StatusIndicators.Success) + " " + text
	}
	return ErrorStyle.Render(styles.StatusIndicators.Error) + " " + text
}
