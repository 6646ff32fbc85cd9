// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/medcare-tui/internal/billing"
	"github.com/jeranaias/medcare-tui/internal/ui/styles"
	"github.com/jeranaias/medcare-tui/internal/util"
)

// chromeHeight is the tab bar, filter line, page line and totals box.
const chromeHeight = 6

// View renders the dashboard. An open form replaces everything under the
// tab bar.
func (m Model) View() string {
	if m.editing != formNone {
		tabs := m.renderTabs()
		f := m.form
		f.SetSize(m.width, m.height-lipgloss.Height(tabs))
		return lipgloss.JoinVertical(lipgloss.Left, tabs, f.View())
	}

	parts := []string{
		m.renderTabs(),
		m.renderFilter(),
		m.renderBody(),
		m.renderPageInfo(),
		m.renderTotals(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderTabs() string {
	t := m.theme
	title := t.HeaderTitle.Render("FMmedCare")

	tabs := make([]string, 0, tabCount)
	for i := Tab(0); i < tabCount; i++ {
		label := fmt.Sprintf("%d %s", i+1, i)
		if i == m.tab {
			tabs = append(tabs, t.TabActive.Render(label))
		} else {
			tabs = append(tabs, t.TabInactive.Render(label))
		}
	}

	line := title + "  " + lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if m.width > 0 {
		return t.Header.Width(m.width).Render(line)
	}
	return t.Header.Render(line)
}

// renderFilter draws the delete prompt, the filter input, or the active
// filters followed by the last notice.
func (m Model) renderFilter() string {
	t := m.theme
	if m.confirm != nil {
		return t.ErrorMessage.Render("Delete "+util.Truncate(m.confirm.label, 48)+"?") +
			t.PageInfo.Render("  y to confirm, any other key to cancel")
	}
	if m.filtering {
		return m.filter.View()
	}

	var parts []string
	if term := m.terms[m.tab]; term != "" {
		parts = append(parts, t.FilterPrompt.Render("/ ")+util.Truncate(term, 48)+
			t.PageInfo.Render("  (esc to clear)"))
	}
	switch {
	case m.tab == TabPatients && m.completeOnly:
		parts = append(parts, t.FilterPrompt.Render("complete only")+t.PageInfo.Render("  (c to show all)"))
	case m.tab == TabAudit && m.auditFilter.Active():
		parts = append(parts, t.FilterPrompt.Render(m.auditFilter.String())+t.PageInfo.Render("  (f to change)"))
	}
	if m.notice != "" {
		parts = append(parts, t.PageInfo.Render(util.SingleLine(m.notice)))
	}
	return strings.Join(parts, "   ")
}

// narrowed reports whether anything besides the search term hides records
// on the current tab.
func (m Model) narrowed() bool {
	return (m.tab == TabPatients && m.completeOnly) || (m.tab == TabAudit && m.auditFilter.Active())
}

func (m Model) renderBody() string {
	t := m.theme
	switch {
	case m.errs[m.tab] != nil:
		return t.ErrorMessage.Render(styles.StatusIndicators.Error+" Failed to load "+strings.ToLower(m.tab.String())+": "+
			util.SingleLine(m.errs[m.tab].Error())) + "\n" + t.PageInfo.Render("press r to retry")
	case m.loading[m.tab] && !m.loaded[m.tab]:
		return t.PageInfo.Render("Loading " + strings.ToLower(m.tab.String()) + "...")
	case m.loaded[m.tab] && m.pageInfo().Total == 0:
		if m.terms[m.tab] != "" {
			return t.PageInfo.Render("No records match \"" + util.Truncate(m.terms[m.tab], 32) + "\"")
		}
		if m.narrowed() {
			return t.PageInfo.Render("No records match the current filters")
		}
		return t.PageInfo.Render("No records")
	}
	return m.tables[m.tab].View()
}

func (m Model) renderPageInfo() string {
	if !m.loaded[m.tab] {
		return ""
	}
	p := m.pageInfo()
	from, to := p.Range()
	info := fmt.Sprintf("Page %d of %d  %d-%d of %d", p.CurrentPage, p.LastPage, from, to, p.Total)
	if n, total := m.loadedCount(m.tab), m.totals[m.tab]; total > n {
		info += fmt.Sprintf("  (first %d of %d on server)", n, total)
	}
	if m.loading[m.tab] {
		info += "  refreshing..."
	}
	switch m.tab {
	case TabPatients:
		info += "   n new  e edit  x delete  c complete only"
	case TabBilling:
		info += "   n new  e edit  x delete"
	case TabAudit:
		info += "   e edit status  f date & status filter"
	}
	return m.theme.PageInfo.Render(info)
}

// renderTotals sums the filtered records of the billing and audit tabs.
func (m Model) renderTotals() string {
	if !m.loaded[m.tab] {
		return ""
	}

	var totals billing.Totals
	switch m.tab {
	case TabBilling:
		totals = billing.PaymentTotals(m.filteredPayments())
	case TabAudit:
		totals = billing.AuditTotals(m.filteredAudit())
	default:
		return ""
	}

	t := m.theme
	item := func(label string, c billing.Cents) string {
		return t.TotalsLabel.Render(label+" ") + t.TotalsValue.Render(billing.FormatUSD(c))
	}
	line := strings.Join([]string{
		t.TotalsLabel.Render("Claims ") + t.TotalsValue.Render(fmt.Sprint(totals.Payments)),
		item("Billed", totals.TotalClaim),
		item("Allowed", totals.Allowed),
		item("Insurance paid", totals.InsurancePaid),
		item("Patient resp.", totals.PatientResponsibility),
	}, "   ")
	return t.TotalsBox.Render(line)
}
