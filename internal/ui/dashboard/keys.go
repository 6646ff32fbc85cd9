// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the dashboard key bindings.
type KeyMap struct {
	NextTab     key.Binding
	PrevTab     key.Binding
	Patients    key.Binding
	Billing     key.Binding
	Audit       key.Binding
	Filter      key.Binding
	ClearFilter key.Binding
	PrevPage    key.Binding
	NextPage    key.Binding
	Reload      key.Binding

	New          key.Binding
	Edit         key.Binding
	Delete       key.Binding
	CompleteOnly key.Binding
	AuditFilter  key.Binding
	Confirm      key.Binding
}

// DefaultKeyMap returns the default dashboard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextTab: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab", "left", "h"),
			key.WithHelp("S-tab", "previous tab"),
		),
		Patients: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "patient intake"),
		),
		Billing: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "billing & payments"),
		),
		Audit: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "audit trail"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		ClearFilter: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear filter"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("[", "pgup"),
			key.WithHelp("[", "previous page"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]", "pgdown"),
			key.WithHelp("]", "next page"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r", "f5"),
			key.WithHelp("r", "reload"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new record"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e", "enter"),
			key.WithHelp("e", "edit"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x", "delete"),
			key.WithHelp("x", "delete"),
		),
		CompleteOnly: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "complete only"),
		),
		AuditFilter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "date & status filter"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
	}
}
