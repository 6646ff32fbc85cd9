// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/medcare-tui/internal/ui/styles"
	"github.com/jeranaias/medcare-tui/internal/util"
)

// Column describes a table column. Weight shares out space beyond the
// minimum widths. Optional columns are dropped on narrow terminals.
type Column struct {
	Title    string
	MinWidth int
	Weight   int
	Optional bool
}

// RecordsTable shows one page of records.
type RecordsTable struct {
	columns []Column
	visible []int
	rows    [][]string
	table   table.Model
}

// NewRecordsTable creates a focused table with the given columns.
func NewRecordsTable(theme *styles.Theme, columns []Column) RecordsTable {
	s := table.DefaultStyles()
	s.Header = theme.TableHeader.Padding(0, 1)
	s.Cell = theme.TableCell.Padding(0, 1)
	s.Selected = theme.TableSelected

	rt := RecordsTable{
		columns: columns,
		table: table.New(
			table.WithFocused(true),
			table.WithStyles(s),
		),
	}
	rt.SetSize(80, 10, styles.LayoutMedium)
	return rt
}

// SetSize fits the columns into width and shows height rows.
func (rt *RecordsTable) SetSize(width, height int, mode styles.LayoutMode) {
	rt.visible = rt.visible[:0]
	for i, c := range rt.columns {
		if c.Optional && mode == styles.LayoutNarrow {
			continue
		}
		rt.visible = append(rt.visible, i)
	}

	cols := make([]Column, len(rt.visible))
	for i, idx := range rt.visible {
		cols[i] = rt.columns[idx]
	}
	// Each cell carries one column of padding on either side.
	widths := FitColumns(cols, width-2*len(cols))

	tc := make([]table.Column, len(cols))
	for i, c := range cols {
		tc[i] = table.Column{Title: c.Title, Width: widths[i]}
	}

	// Rows must match the column count before columns change.
	rt.table.SetRows(nil)
	rt.table.SetColumns(tc)
	rt.table.SetWidth(width)
	if height < 1 {
		height = 1
	}
	rt.table.SetHeight(height)
	rt.applyRows()
}

// SetRows replaces the rows. Each row holds one cell per column.
func (rt *RecordsTable) SetRows(rows [][]string) {
	rt.rows = rows
	rt.applyRows()
	if rt.table.Cursor() >= len(rows) {
		rt.table.SetCursor(0)
	}
}

func (rt *RecordsTable) applyRows() {
	out := make([]table.Row, len(rt.rows))
	for i, r := range rt.rows {
		row := make(table.Row, len(rt.visible))
		for j, idx := range rt.visible {
			if idx < len(r) {
				row[j] = util.SingleLine(r[idx])
			}
		}
		out[i] = row
	}
	rt.table.SetRows(out)
}

// Cursor returns the selected row index.
func (rt RecordsTable) Cursor() int {
	return rt.table.Cursor()
}

// Columns returns the titles of the columns currently shown.
func (rt RecordsTable) Columns() []string {
	out := make([]string, len(rt.visible))
	for i, idx := range rt.visible {
		out[i] = rt.columns[idx].Title
	}
	return out
}

// Update moves the selection.
func (rt RecordsTable) Update(msg tea.Msg) (RecordsTable, tea.Cmd) {
	var cmd tea.Cmd
	rt.table, cmd = rt.table.Update(msg)
	return rt, cmd
}

// View renders the table.
func (rt RecordsTable) View() string {
	return rt.table.View()
}

// FitColumns gives every column its minimum width and shares what is left
// of total by weight. When total is below the sum of minimums the minimums
// are returned unchanged.
func FitColumns(cols []Column, total int) []int {
	widths := make([]int, len(cols))
	minTotal, weights := 0, 0
	for i, c := range cols {
		widths[i] = c.MinWidth
		minTotal += c.MinWidth
		weights += c.Weight
	}
	spare := total - minTotal
	if spare <= 0 || weights == 0 {
		return widths
	}

	given := 0
	for i, c := range cols {
		extra := spare * c.Weight / weights
		widths[i] += extra
		given += extra
	}
	// Rounding leftovers go to the first weighted column.
	for i, c := range cols {
		if c.Weight > 0 {
			widths[i] += spare - given
			break
		}
	}
	return widths
}
