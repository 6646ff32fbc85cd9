// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/records"
	"github.com/jeranaias/medcare-tui/internal/ui/components"
	"github.com/jeranaias/medcare-tui/internal/ui/styles"
)

// FetchLimit is the per_page sent when loading a tab. Records are then
// filtered and paged locally.
const FetchLimit = 1000

// MaxRecords caps how many records one tab load pulls across backend
// pages. The page line says so when the backend holds more.
const MaxRecords = 10 * FetchLimit

// DefaultPerPage is the page size used when none is configured.
const DefaultPerPage = 10

// DefaultRequestTimeout bounds a single tab load.
const DefaultRequestTimeout = 30 * time.Second

// Loader fetches records from the billing backend.
type Loader interface {
	ListPatientIntakes(ctx context.Context, p api.ListParams) (*api.ListResponse[api.PatientIntake], error)
	ListBillingPayments(ctx context.Context, p api.ListParams) (*api.ListResponse[api.BillingPayment], error)
	ListAuditTrail(ctx context.Context, p api.ListParams) (*api.ListResponse[api.AuditRecord], error)
}

// Writer changes records on the billing backend.
type Writer interface {
	NextEnrollmentID(ctx context.Context) (string, error)
	CreatePatientIntake(ctx context.Context, req api.IntakeRequest) (*api.PatientIntake, error)
	UpdatePatientIntake(ctx context.Context, id string, req api.IntakeRequest) (*api.PatientIntake, error)
	DeletePatientIntake(ctx context.Context, id string) error
	CreateBillingPayment(ctx context.Context, req api.BillingRequest) (*api.BillingPayment, error)
	UpdateBillingPayment(ctx context.Context, id string, req api.BillingRequest) (*api.BillingPayment, error)
	DeleteBillingPayment(ctx context.Context, id string) error
	UpdateAuditRecord(ctx context.Context, id string, upd api.AuditUpdate) (*api.AuditRecord, error)
}

// Backend is everything the dashboard needs. *api.Client satisfies it.
type Backend interface {
	Loader
	Writer
}

// =============================================================================
// TABS
// =============================================================================

// Tab identifies a dashboard tab.
type Tab int

const (
	TabPatients Tab = iota
	TabBilling
	TabAudit
	tabCount
)

// String returns the tab title.
func (t Tab) String() string {
	switch t {
	case TabPatients:
		return "Patient Intake"
	case TabBilling:
		return "Billing & Payments"
	case TabAudit:
		return "Audit Trail"
	default:
		return "Unknown"
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the records dashboard.
type Model struct {
	theme   *styles.Theme
	backend Backend
	keys    KeyMap
	perPage int
	timeout time.Duration

	tab    Tab
	tables [tabCount]components.RecordsTable

	patients []api.PatientIntake
	payments []api.BillingPayment
	audit    []api.AuditRecord

	// Per-tab state
	loaded  [tabCount]bool
	loading [tabCount]bool
	errs    [tabCount]error
	seq     [tabCount]int
	page    [tabCount]int
	terms   [tabCount]string
	totals  [tabCount]int

	filter    textinput.Model
	filtering bool

	// Patient tab shows complete intakes only.
	completeOnly bool
	auditFilter  AuditFilter

	form    components.Form
	editing formKind
	editID  string
	confirm *deletion
	notice  string

	// Bumped on Reset so saves from a previous session are dropped.
	gen int

	width  int
	height int
}

// New creates a dashboard that reads and writes through backend and shows
// perPage rows per page.
func New(theme *styles.Theme, backend Backend, perPage int) Model {
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "name, enrollment ID, member ID or claim #"
	filter.CharLimit = 64
	filter.PromptStyle = theme.FilterPrompt

	m := Model{
		theme:   theme,
		backend: backend,
		keys:    DefaultKeyMap(),
		perPage: perPage,
		timeout: DefaultRequestTimeout,
		filter:  filter,
	}
	m.tables[TabPatients] = components.NewRecordsTable(theme, patientColumns)
	m.tables[TabBilling] = components.NewRecordsTable(theme, billingColumns)
	m.tables[TabAudit] = components.NewRecordsTable(theme, auditColumns)
	for i := range m.page {
		m.page[i] = 1
	}
	return m
}

// SetRequestTimeout bounds each tab load.
func (m *Model) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		m.timeout = d
	}
}

// Start clears the previous user's records and loads the first tab.
func (m *Model) Start() tea.Cmd {
	m.Reset()
	return m.Load(m.tab)
}

// Load marks tab as loading and returns the command that fetches it.
func (m *Model) Load(tab Tab) tea.Cmd {
	m.seq[tab]++
	m.loading[tab] = true
	m.errs[tab] = nil
	return fetch(m.backend, tab, m.seq[tab], m.timeout, m.listParams(tab))
}

// listParams returns the backend filters for tab. Only the audit trail
// filters on the server.
func (m Model) listParams(tab Tab) api.ListParams {
	p := api.ListParams{PerPage: FetchLimit}
	if tab == TabAudit {
		p.DateFrom = m.auditFilter.From
		p.DateTo = m.auditFilter.To
		p.Status = m.auditFilter.Status
	}
	return p
}

// Reset drops every loaded record and filter. Responses still in flight
// are ignored.
func (m *Model) Reset() {
	m.patients, m.payments, m.audit = nil, nil, nil
	m.gen++
	for i := range m.tables {
		m.seq[i]++
		m.loaded[i] = false
		m.loading[i] = false
		m.errs[i] = nil
		m.page[i] = 1
		m.terms[i] = ""
		m.totals[i] = 0
		m.tables[i].SetRows(nil)
	}
	m.tab = TabPatients
	m.filtering = false
	m.filter.SetValue("")
	m.filter.Blur()
	m.completeOnly = false
	m.auditFilter = AuditFilter{}
	m.closeForm()
	m.confirm = nil
	m.notice = ""
}

// SetSize sizes the tables to the area left by the dashboard chrome.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.filter.Width = width - 4

	mode := styles.LayoutFor(width)
	rows := height - chromeHeight
	for i := range m.tables {
		m.tables[i].SetSize(width, rows, mode)
	}
}

// Tab returns the current tab.
func (m Model) Tab() Tab {
	return m.tab
}

// Filtering reports whether the filter input has focus.
func (m Model) Filtering() bool {
	return m.filtering
}

// CapturesInput reports whether typed keys belong to the dashboard: the
// filter input, an open form or a delete prompt. Global shortcuts must
// not fire while it does.
func (m Model) CapturesInput() bool {
	return m.filtering || m.editing != formNone || m.confirm != nil
}

// Editing reports whether a form is open.
func (m Model) Editing() bool {
	return m.editing != formNone
}

// Form returns the open form.
func (m Model) Form() components.Form {
	return m.form
}

// Notice returns the outcome of the last save or delete.
func (m Model) Notice() string {
	return m.notice
}

// CompleteOnly reports whether the patient tab hides incomplete intakes.
func (m Model) CompleteOnly() bool {
	return m.completeOnly
}

// AuditFilter returns the filters applied to the audit trail.
func (m Model) AuditFilter() AuditFilter {
	return m.auditFilter
}

// Term returns the filter applied to the current tab.
func (m Model) Term() string {
	return m.terms[m.tab]
}

// Page returns the current page number of the current tab.
func (m Model) Page() int {
	return m.page[m.tab]
}

// Err returns the last load error of the current tab.
func (m Model) Err() error {
	return m.errs[m.tab]
}

// Loading reports whether the current tab is being fetched.
func (m Model) Loading() bool {
	return m.loading[m.tab]
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles loads, resizes and keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case LoadedMsg:
		return m.handleLoaded(msg)

	case SavedMsg:
		return m.handleSaved(msg)

	case enrollmentIDMsg:
		if m.editing != formNone || m.tab != TabPatients {
			return m, nil
		}
		return m.openIntakeForm(msg.id, nil)

	case components.FormSubmitMsg:
		return m.handleSubmit(msg)

	case components.FormCancelMsg:
		if msg.ID == m.form.ID() {
			m.closeForm()
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case m.editing != formNone:
			var cmd tea.Cmd
			m.form, cmd = m.form.Update(msg)
			return m, cmd
		case m.confirm != nil:
			return m.handleConfirmKey(msg)
		case m.filtering:
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)
	}

	if m.editing != formNone {
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleLoaded(msg LoadedMsg) (Model, tea.Cmd) {
	if msg.Tab < 0 || msg.Tab >= tabCount || msg.Seq != m.seq[msg.Tab] {
		return m, nil
	}
	m.loading[msg.Tab] = false

	if msg.Err != nil {
		m.errs[msg.Tab] = msg.Err
		if api.IsStatus(msg.Err, http.StatusUnauthorized) {
			err := msg.Err
			return m, func() tea.Msg { return UnauthorizedMsg{Err: err} }
		}
		return m, nil
	}

	m.totals[msg.Tab] = msg.Total
	switch msg.Tab {
	case TabPatients:
		m.patients = msg.Patients
	case TabBilling:
		m.payments = msg.Payments
	case TabAudit:
		m.audit = msg.Audit
	}
	m.loaded[msg.Tab] = true
	m.refresh(msg.Tab)
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextTab):
		return m.switchTab((m.tab + 1) % tabCount)
	case key.Matches(msg, m.keys.PrevTab):
		return m.switchTab((m.tab + tabCount - 1) % tabCount)
	case key.Matches(msg, m.keys.Patients):
		return m.switchTab(TabPatients)
	case key.Matches(msg, m.keys.Billing):
		return m.switchTab(TabBilling)
	case key.Matches(msg, m.keys.Audit):
		return m.switchTab(TabAudit)

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		m.filter.SetValue(m.terms[m.tab])
		m.filter.CursorEnd()
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.ClearFilter):
		if m.terms[m.tab] != "" {
			m.applyTerm("")
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		m.turnPage(-1)
		return m, nil
	case key.Matches(msg, m.keys.NextPage):
		m.turnPage(1)
		return m, nil

	case key.Matches(msg, m.keys.Reload):
		return m, m.Load(m.tab)

	case key.Matches(msg, m.keys.New):
		return m.startCreate()
	case key.Matches(msg, m.keys.Edit):
		return m.startEdit()
	case key.Matches(msg, m.keys.Delete):
		m.startDelete()
		return m, nil
	case key.Matches(msg, m.keys.CompleteOnly) && m.tab == TabPatients:
		m.completeOnly = !m.completeOnly
		m.page[TabPatients] = 1
		m.refresh(TabPatients)
		return m, nil
	case key.Matches(msg, m.keys.AuditFilter) && m.tab == TabAudit:
		return m.openAuditFilter()
	}

	var cmd tea.Cmd
	m.tables[m.tab], cmd = m.tables[m.tab].Update(msg)
	return m, cmd
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyTerm("")
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != m.terms[m.tab] {
		m.applyTerm(m.filter.Value())
	}
	return m, cmd
}

func (m Model) switchTab(tab Tab) (Model, tea.Cmd) {
	m.tab = tab
	if !m.loaded[tab] && !m.loading[tab] {
		return m, m.Load(tab)
	}
	return m, nil
}

func (m *Model) applyTerm(term string) {
	m.terms[m.tab] = term
	m.page[m.tab] = 1
	m.refresh(m.tab)
}

func (m *Model) turnPage(delta int) {
	m.page[m.tab] += delta
	m.refresh(m.tab)
}

// refresh rebuilds the rows of tab from its records, filter and page. The
// stored page number is clamped to the pages that exist.
func (m *Model) refresh(tab Tab) {
	var rows [][]string
	switch tab {
	case TabPatients:
		p := records.Paginate(m.filteredPatients(), m.page[tab], m.perPage)
		m.page[tab] = p.CurrentPage
		rows = patientRows(p.Items)
	case TabBilling:
		p := records.Paginate(m.filteredPayments(), m.page[tab], m.perPage)
		m.page[tab] = p.CurrentPage
		rows = billingRows(p.Items)
	case TabAudit:
		p := records.Paginate(m.filteredAudit(), m.page[tab], m.perPage)
		m.page[tab] = p.CurrentPage
		rows = auditRows(p.Items)
	}
	m.tables[tab].SetRows(rows)
}

func (m Model) filteredPatients() []api.PatientIntake {
	items := m.patients
	if m.completeOnly {
		items = keep(items, api.PatientIntake.Complete)
	}
	return records.Filter(items, m.terms[TabPatients], records.PatientFields)
}

func (m Model) filteredPayments() []api.BillingPayment {
	return records.Filter(m.payments, m.terms[TabBilling], records.BillingFields)
}

func (m Model) filteredAudit() []api.AuditRecord {
	items := m.audit
	if m.auditFilter.Active() {
		items = keep(items, m.auditFilter.Match)
	}
	return records.Filter(items, m.terms[TabAudit], records.AuditFields)
}

func keep[T any](items []T, ok func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if ok(it) {
			out = append(out, it)
		}
	}
	return out
}

// selected returns the index, within the filtered records of the current
// tab, of the row under the cursor.
func (m Model) selected() (int, bool) {
	if !m.loaded[m.tab] {
		return 0, false
	}
	p := m.pageInfo()
	if p.Total == 0 {
		return 0, false
	}
	i := (p.CurrentPage-1)*m.perPage + m.tables[m.tab].Cursor()
	if i < 0 || i >= p.Total {
		return 0, false
	}
	return i, true
}

// loadedCount returns how many records tab holds before filtering.
func (m Model) loadedCount(tab Tab) int {
	switch tab {
	case TabPatients:
		return len(m.patients)
	case TabBilling:
		return len(m.payments)
	case TabAudit:
		return len(m.audit)
	}
	return 0
}

// pageInfo returns the page of the current tab without its items.
func (m Model) pageInfo() records.Page[struct{}] {
	var n int
	switch m.tab {
	case TabPatients:
		n = len(m.filteredPatients())
	case TabBilling:
		n = len(m.filteredPayments())
	case TabAudit:
		n = len(m.filteredAudit())
	}
	return records.Paginate(make([]struct{}, n), m.page[m.tab], m.perPage)
}

// =============================================================================
// COMMANDS
// =============================================================================

func fetch(loader Loader, tab Tab, seq int, timeout time.Duration, params api.ListParams) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		msg := LoadedMsg{Tab: tab, Seq: seq}
		switch tab {
		case TabPatients:
			msg.Patients, msg.Total, msg.Err = fetchAll(ctx, loader.ListPatientIntakes, params)
		case TabBilling:
			msg.Payments, msg.Total, msg.Err = fetchAll(ctx, loader.ListBillingPayments, params)
		case TabAudit:
			msg.Audit, msg.Total, msg.Err = fetchAll(ctx, loader.ListAuditTrail, params)
		}
		return msg
	}
}

// fetchAll walks the backend pages until the last one, an empty page or
// MaxRecords. total is the count the backend reported, never less than
// what was fetched.
func fetchAll[T any](ctx context.Context, list func(context.Context, api.ListParams) (*api.ListResponse[T], error), params api.ListParams) ([]T, int, error) {
	var out []T
	total := 0
	for page := 1; ; page++ {
		params.Page = page
		resp, err := list(ctx, params)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, resp.Data...)
		total = resp.Pagination.Total
		if len(resp.Data) == 0 || page >= resp.Pagination.LastPage || len(out) >= MaxRecords {
			break
		}
	}
	if len(out) > MaxRecords {
		out = out[:MaxRecords]
	}
	if total < len(out) {
		total = len(out)
	}
	return out, total, nil
}
