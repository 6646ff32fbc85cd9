// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/session"
	"github.com/jeranaias/medcare-tui/internal/ui/styles"
)

var theme = styles.NewTheme("dark")

func typeText(f LoginForm, s string) LoginForm {
	for _, r := range s {
		f, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return f
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// =============================================================================
// SESSION TIMEOUT OVERLAY TESTS
// =============================================================================

func TestSessionTimeoutOverlay_HiddenByDefault(t *testing.T) {
	o := NewSessionTimeoutOverlay()
	assert.False(t, o.IsVisible())
	assert.Empty(t, o.View())
}

func TestSessionTimeoutOverlay_Warning(t *testing.T) {
	o := NewSessionTimeoutOverlay()
	o.SetSize(100, 30)
	o.ShowWarning(60)

	view := o.View()
	assert.Contains(t, view, "Session Timeout Warning")
	assert.Contains(t, view, "1:00")
	assert.Contains(t, view, "Extend Session")
	assert.Contains(t, view, "Logout Now")

	o.SetCountdown(42)
	assert.Contains(t, o.View(), "0:42")
	assert.False(t, o.IsExpired())
}

func TestSessionTimeoutOverlay_Expired(t *testing.T) {
	o := NewSessionTimeoutOverlay()
	o.ShowWarning(3)
	o.ShowExpired()

	assert.True(t, o.IsExpired())
	assert.Zero(t, o.Countdown())
	view := o.View()
	assert.Contains(t, view, "Session Expired")
	assert.NotContains(t, view, "Extend Session")

	o.Hide()
	assert.False(t, o.IsVisible())
	assert.False(t, o.IsExpired())
}

// =============================================================================
// LOGIN FORM TESTS
// =============================================================================

func TestLoginForm_SubmitsCredentials(t *testing.T) {
	f := NewLoginForm(theme)
	f = typeText(f, "ann@example.com")
	f, _ = f.Update(key("enter"))
	f = typeText(f, "hunter2")

	assert.NotContains(t, f.View(), "hunter2", "password must be masked")

	f, cmd := f.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.True(t, f.Busy())
	assert.Equal(t, LoginSubmitMsg{Email: "ann@example.com", Password: "hunter2"}, cmd())

	// Input is ignored while busy.
	f, cmd = f.Update(key("x"))
	assert.Nil(t, cmd)
}

func TestLoginForm_RequiresBothFields(t *testing.T) {
	f := NewLoginForm(theme)
	f = typeText(f, "ann@example.com")
	f, _ = f.Update(key("tab"))

	f, cmd := f.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.False(t, f.Busy())
	assert.Equal(t, "Email and password are required", f.Err())
	assert.Contains(t, f.View(), "required")
}

func TestLoginForm_ResetKeepsEmail(t *testing.T) {
	f := NewLoginForm(theme)
	f.SetEmail("ann@example.com")
	f.SetBusy(true)
	f.SetError("bad")

	f.Reset()
	assert.False(t, f.Busy())
	assert.Empty(t, f.Err())

	f = typeText(f, "pw")
	_, cmd := f.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, LoginSubmitMsg{Email: "ann@example.com", Password: "pw"}, cmd())
}

// =============================================================================
// FORM TESTS
// =============================================================================

func typeInto(f Form, s string) Form {
	for _, r := range s {
		f, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return f
}

var claimFields = []Field{
	{Key: "name", Label: "Patient name", Required: true},
	{Key: "paid_on", Label: "Date paid", Kind: FieldDate},
	{Key: "amount", Label: "Amount", Kind: FieldMoney},
	{Key: "count", Label: "Items", Kind: FieldCount},
	{Key: "auth", Label: "Authorized", Kind: FieldYesNo},
	{Key: "status", Label: "Status", Kind: FieldChoice, Options: []string{"Pending", "Paid"}},
}

func TestForm_SubmitsNormalizedValues(t *testing.T) {
	f := NewForm(theme, "claim", "New claim", claimFields)
	f = typeInto(f, "Jane Roe")
	f, _ = f.Update(key("tab"))
	f = typeInto(f, "2025-03-01")
	f, _ = f.Update(key("tab"))
	f = typeInto(f, "$1,200.5")
	f, _ = f.Update(key("tab"))
	f = typeInto(f, "2")
	f, _ = f.Update(key("tab"))
	f = typeInto(f, "y")
	f, _ = f.Update(key("tab"))
	f = typeInto(f, "paid")
	assert.Equal(t, "status", f.Focused())

	f, cmd := f.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.True(t, f.Busy())
	assert.Equal(t, FormSubmitMsg{ID: "claim", Values: map[string]string{
		"name": "Jane Roe", "paid_on": "2025-03-01", "amount": "1200.50",
		"count": "2", "auth": "Yes", "status": "Paid",
	}}, cmd())
}

func TestForm_RejectsBadField(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"missing required", "name", "", "Patient name is required"},
		{"bad date", "paid_on", "03/01/2025", "Date paid must be a date (YYYY-MM-DD)"},
		{"bad amount", "amount", "12a", "Amount must be an amount"},
		{"zero count", "count", "0", "Items must be a whole number above zero"},
		{"bad yes/no", "auth", "maybe", "Authorized must be yes or no"},
		{"bad choice", "status", "Lost", "Status must be one of: Pending, Paid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewForm(theme, "claim", "New claim", claimFields)
			f.SetValue("name", "Jane Roe")
			f.SetValue(tt.key, tt.value)

			f, cmd := f.Update(key("ctrl+s"))
			assert.Nil(t, cmd)
			assert.False(t, f.Busy())
			assert.Equal(t, tt.want, f.Err())
			assert.Equal(t, tt.key, f.Focused(), "focus moves to the failing field")
		})
	}
}

func TestForm_CheckAndSummary(t *testing.T) {
	f := NewForm(theme, "claim", "New claim", claimFields[:3])
	f.SetCheck(func(v map[string]string) error {
		if v["amount"] == "" {
			return assert.AnError
		}
		return nil
	})
	f.SetSummary(func(v map[string]string) []string {
		return []string{"Amount so far: " + v["amount"]}
	})
	f.SetValue("name", "Jane Roe")
	f.SetValue("amount", "42")

	assert.Contains(t, f.View(), "Amount so far: 42")
	values, err := f.Validate()
	require.NoError(t, err)
	assert.Equal(t, "42.00", values["amount"])

	f.SetValue("amount", "")
	_, err = f.Validate()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestForm_EscCancels(t *testing.T) {
	f := NewForm(theme, "claim", "New claim", claimFields)
	_, cmd := f.Update(key("esc"))
	require.NotNil(t, cmd)
	assert.Equal(t, FormCancelMsg{ID: "claim"}, cmd())
}

func TestForm_ScrollsToFocusedField(t *testing.T) {
	f := NewForm(theme, "claim", "New claim", claimFields)
	f.SetSize(80, 11)
	assert.Contains(t, f.View(), "Patient name")
	assert.NotContains(t, f.View(), "Status")

	for i := 0; i < len(claimFields)-1; i++ {
		f, _ = f.Update(key("tab"))
	}
	view := f.View()
	assert.Contains(t, view, "Status")
	assert.NotContains(t, view, "Patient name")
	assert.Contains(t, view, "field 6 of 6")
}

// =============================================================================
// TABLE TESTS
// =============================================================================

func TestFitColumns(t *testing.T) {
	cols := []Column{
		{Title: "A", MinWidth: 10, Weight: 2},
		{Title: "B", MinWidth: 5, Weight: 1},
		{Title: "C", MinWidth: 8},
	}

	assert.Equal(t, []int{10, 5, 8}, FitColumns(cols, 20), "below minimum")
	assert.Equal(t, []int{10, 5, 8}, FitColumns(cols, 23))

	widths := FitColumns(cols, 33)
	assert.Equal(t, []int{17, 8, 8}, widths)

	sum := 0
	for _, w := range FitColumns(cols, 34) {
		sum += w
	}
	assert.Equal(t, 34, sum, "rounding leftovers are not lost")
}

func TestRecordsTable_DropsOptionalColumnsWhenNarrow(t *testing.T) {
	rt := NewRecordsTable(theme, []Column{
		{Title: "Patient", MinWidth: 12, Weight: 1},
		{Title: "Notes", MinWidth: 12, Weight: 1, Optional: true},
		{Title: "Status", MinWidth: 8},
	})
	rt.SetRows([][]string{{"Jane Roe", "call\nback", "Paid"}})

	rt.SetSize(60, 5, styles.LayoutNarrow)
	assert.Equal(t, []string{"Patient", "Status"}, rt.Columns())
	assert.Contains(t, rt.View(), "Jane Roe")
	assert.NotContains(t, rt.View(), "call")

	rt.SetSize(120, 5, styles.LayoutWide)
	assert.Equal(t, []string{"Patient", "Notes", "Status"}, rt.Columns())
	assert.Contains(t, rt.View(), "call back")
}

func TestRecordsTable_CursorClampedOnShorterRows(t *testing.T) {
	rt := NewRecordsTable(theme, []Column{{Title: "Patient", MinWidth: 10}})
	rt.SetRows([][]string{{"a"}, {"b"}, {"c"}})
	rt, _ = rt.Update(tea.KeyMsg{Type: tea.KeyDown})
	rt, _ = rt.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, rt.Cursor())

	rt.SetRows([][]string{{"a"}})
	assert.Equal(t, 0, rt.Cursor())
}

// =============================================================================
// STATUS BAR TESTS
// =============================================================================

func TestStatusBar_Phases(t *testing.T) {
	ann := &api.User{Name: "Ann", Role: "Biller"}
	sb := NewStatusBar(theme)
	sb.SetWidth(120)

	sb.SetStatus(session.Status{})
	assert.Contains(t, sb.View(), "signed out")

	sb.SetStatus(session.Status{User: ann, Phase: session.PhaseActive, Watchdog: true, Remaining: 14*time.Minute + 30*time.Second})
	view := sb.View()
	assert.Contains(t, view, "Ann (Biller)")
	assert.Contains(t, view, "14m 30s")
	assert.Contains(t, view, "filter")

	sb.SetStatus(session.Status{User: ann, Phase: session.PhaseWarning, Watchdog: true, Countdown: 9})
	assert.Contains(t, sb.View(), "logout in 0:09")

	sb.SetStatus(session.Status{User: ann, Phase: session.PhaseActive})
	assert.Contains(t, sb.View(), "auto-logout off")
}

func TestStatusBar_HidesRemainingWhenConfigured(t *testing.T) {
	sb := NewStatusBar(theme)
	sb.SetWidth(120)
	sb.ShowRemaining = false
	sb.SetStatus(session.Status{User: &api.User{Name: "Ann"}, Phase: session.PhaseActive, Watchdog: true, Remaining: time.Minute})
	assert.NotContains(t, sb.View(), "idle logout")
}

func TestStatusBar_DropsShortcutsWhenNarrow(t *testing.T) {
	sb := NewStatusBar(theme)
	sb.SetWidth(40)
	sb.SetStatus(session.Status{User: &api.User{Name: "Ann"}, Phase: session.PhaseActive, Watchdog: true, Remaining: time.Minute})
	view := sb.View()
	assert.NotContains(t, view, "filter")
	assert.True(t, strings.Contains(view, "Ann"))
}
