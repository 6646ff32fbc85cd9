// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/medcare-tui/internal/billing"
	"github.com/jeranaias/medcare-tui/internal/ui/styles"
)

// DateLayout is the date format every form field accepts.
const DateLayout = "2006-01-02"

// FieldKind selects how a field value is checked and normalized.
type FieldKind int

const (
	FieldText   FieldKind = iota
	FieldDate             // YYYY-MM-DD
	FieldMoney            // decimal amount, normalized to "1234.50"
	FieldCount            // whole number above zero
	FieldYesNo            // normalized to "Yes" or "No"
	FieldChoice           // one of Options, normalized to its spelling
)

// Field describes one form input.
type Field struct {
	Key         string
	Label       string
	Kind        FieldKind
	Required    bool
	Options     []string
	Placeholder string
}

// FormSubmitMsg carries the normalized values of a submitted form.
type FormSubmitMsg struct {
	ID     string
	Values map[string]string
}

// FormCancelMsg is emitted when the user closes a form with esc.
type FormCancelMsg struct {
	ID string
}

// Form edits a list of single-line fields. Only the fields around the
// focused one are drawn when the form is taller than its area.
type Form struct {
	id     string
	title  string
	fields []Field
	inputs []textinput.Model
	focus  int
	err    string
	busy   bool

	summary func(values map[string]string) []string
	check   func(values map[string]string) error

	width  int
	height int
	theme  *styles.Theme
}

// NewForm creates a form with the first field focused.
func NewForm(theme *styles.Theme, id, title string, fields []Field) Form {
	inputs := make([]textinput.Model, len(fields))
	for i, fd := range fields {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 255
		in.Width = 36
		in.Placeholder = fd.Placeholder
		if in.Placeholder == "" {
			in.Placeholder = placeholderFor(fd)
		}
		inputs[i] = in
	}
	f := Form{id: id, title: title, fields: fields, inputs: inputs, theme: theme}
	f.setFocus(0)
	return f
}

func placeholderFor(fd Field) string {
	switch fd.Kind {
	case FieldDate:
		return "YYYY-MM-DD"
	case FieldMoney:
		return "0.00"
	case FieldYesNo:
		return "yes / no"
	case FieldChoice:
		return strings.Join(fd.Options, " / ")
	}
	return ""
}

// ID returns the identifier carried by the form's messages.
func (f Form) ID() string {
	return f.id
}

// SetSize sets the area the form is centered in.
func (f *Form) SetSize(width, height int) {
	f.width = width
	f.height = height
}

// SetSummary sets a function whose lines are drawn under the fields and
// recomputed on every keystroke.
func (f *Form) SetSummary(fn func(values map[string]string) []string) {
	f.summary = fn
}

// SetCheck sets a cross-field check run after the per-field checks.
func (f *Form) SetCheck(fn func(values map[string]string) error) {
	f.check = fn
}

// SetValue pre-fills the field with the given key.
func (f *Form) SetValue(key, value string) {
	for i, fd := range f.fields {
		if fd.Key == key {
			f.inputs[i].SetValue(value)
			f.inputs[i].CursorEnd()
			return
		}
	}
}

// Value returns the trimmed text of the field with the given key.
func (f Form) Value(key string) string {
	for i, fd := range f.fields {
		if fd.Key == key {
			return strings.TrimSpace(f.inputs[i].Value())
		}
	}
	return ""
}

// Values returns the trimmed text of every field by key.
func (f Form) Values() map[string]string {
	out := make(map[string]string, len(f.fields))
	for i, fd := range f.fields {
		out[fd.Key] = strings.TrimSpace(f.inputs[i].Value())
	}
	return out
}

// SetError shows msg under the fields. An empty msg clears it.
func (f *Form) SetError(msg string) {
	f.err = msg
}

// Err returns the message under the fields.
func (f Form) Err() string {
	return f.err
}

// SetBusy blocks input while a save is in flight.
func (f *Form) SetBusy(busy bool) {
	f.busy = busy
}

// Busy reports whether a save is in flight.
func (f Form) Busy() bool {
	return f.busy
}

// Focused returns the key of the focused field.
func (f Form) Focused() string {
	if len(f.fields) == 0 {
		return ""
	}
	return f.fields[f.focus].Key
}

func (f *Form) setFocus(i int) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	i = (i + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Blur()
	f.focus = i
	return f.inputs[i].Focus()
}

// Update handles focus movement, submission, cancel and typing.
func (f Form) Update(msg tea.Msg) (Form, tea.Cmd) {
	if f.busy {
		return f, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			id := f.id
			return f, func() tea.Msg { return FormCancelMsg{ID: id} }
		case "tab", "down":
			return f, f.setFocus(f.focus + 1)
		case "shift+tab", "up":
			return f, f.setFocus(f.focus - 1)
		case "ctrl+s":
			return f.submit()
		case "enter":
			if f.focus < len(f.inputs)-1 {
				return f, f.setFocus(f.focus + 1)
			}
			return f.submit()
		}
	}

	if len(f.inputs) == 0 {
		return f, nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

func (f Form) submit() (Form, tea.Cmd) {
	values, err := f.Validate()
	if err != nil {
		f.err = err.Error()
		return f, nil
	}
	f.err = ""
	f.busy = true
	id := f.id
	return f, func() tea.Msg {
		return FormSubmitMsg{ID: id, Values: values}
	}
}

// Validate checks every field and returns the normalized values. The
// first failing field gets focus.
func (f *Form) Validate() (map[string]string, error) {
	values := f.Values()
	for i, fd := range f.fields {
		v, err := normalize(fd, values[fd.Key])
		if err != nil {
			f.setFocus(i)
			return nil, err
		}
		values[fd.Key] = v
	}
	if f.check != nil {
		if err := f.check(values); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func normalize(fd Field, v string) (string, error) {
	if v == "" {
		if fd.Required {
			return "", fmt.Errorf("%s is required", fd.Label)
		}
		return "", nil
	}

	switch fd.Kind {
	case FieldDate:
		if _, err := time.Parse(DateLayout, v); err != nil {
			return "", fmt.Errorf("%s must be a date (YYYY-MM-DD)", fd.Label)
		}
	case FieldMoney:
		c, err := billing.ParseAmount(v)
		if err != nil || c < 0 {
			return "", fmt.Errorf("%s must be an amount", fd.Label)
		}
		return billing.FormatDecimal(c), nil
	case FieldCount:
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return "", fmt.Errorf("%s must be a whole number above zero", fd.Label)
		}
		return strconv.Itoa(n), nil
	case FieldYesNo:
		switch strings.ToLower(v) {
		case "y", "yes", "true":
			return "Yes", nil
		case "n", "no", "false":
			return "No", nil
		}
		return "", fmt.Errorf("%s must be yes or no", fd.Label)
	case FieldChoice:
		for _, opt := range fd.Options {
			if strings.EqualFold(opt, v) {
				return opt, nil
			}
		}
		return "", errors.New(fd.Label + " must be one of: " + strings.Join(fd.Options, ", "))
	}
	return v, nil
}

// View renders the form box, centered when a size is set.
func (f Form) View() string {
	t := f.theme

	labelWidth := 0
	for _, fd := range f.fields {
		if w := lipgloss.Width(fd.Label) + 2; w > labelWidth {
			labelWidth = w
		}
	}

	var summary []string
	if f.summary != nil {
		summary = f.summary(f.Values())
	}

	// Title, blank, blank, hint, box border and padding.
	rows := len(f.fields)
	if f.height > 0 {
		avail := f.height - 8 - len(summary)
		if avail < 3 {
			avail = 3
		}
		if avail < rows {
			rows = avail
		}
	}
	start := f.focus - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > len(f.fields) {
		start = len(f.fields) - rows
	}

	parts := []string{t.LoginTitle.Render(f.title), ""}
	for i := start; i < start+rows; i++ {
		fd := f.fields[i]
		label := fd.Label
		if fd.Required {
			label += "*"
		}
		style := t.LoginLabel.Width(labelWidth)
		if i == f.focus {
			style = style.Foreground(styles.Teal).Bold(true)
		}
		parts = append(parts, lipgloss.JoinHorizontal(lipgloss.Top, style.Render(label), f.inputs[i].View()))
	}
	if rows < len(f.fields) {
		parts = append(parts, t.PageInfo.Render(fmt.Sprintf("field %d of %d", f.focus+1, len(f.fields))))
	}

	if len(summary) > 0 {
		parts = append(parts, "")
		for _, line := range summary {
			parts = append(parts, t.TotalsLabel.Render(line))
		}
	}

	parts = append(parts, "")
	switch {
	case f.busy:
		parts = append(parts, t.LoginHint.Render("Saving..."))
	case f.err != "":
		parts = append(parts, t.ErrorMessage.Render(styles.StatusIndicators.Error+" "+f.err))
	default:
		parts = append(parts, t.LoginHint.Render("tab next field  enter/ctrl+s save  esc cancel"))
	}

	box := t.LoginBox.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	if f.width == 0 || f.height == 0 {
		return box
	}
	return lipgloss.Place(f.width, f.height, lipgloss.Center, lipgloss.Center, box)
}
