// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/ui/styles"
)

type fakeLoader struct {
	mu       sync.Mutex
	calls    map[Tab]int
	pages    map[Tab][]int
	params   api.ListParams
	patients []api.PatientIntake
	payments []api.BillingPayment
	audit    []api.AuditRecord
	total    int
	err      error

	nextID      string
	nextIDErr   error
	writeErr    error
	writes      []string
	lastIntake  api.IntakeRequest
	lastBilling api.BillingRequest
	lastAudit   api.AuditUpdate
}

func (f *fakeLoader) record(tab Tab, p api.ListParams) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[Tab]int)
		f.pages = make(map[Tab][]int)
	}
	if p.Page <= 1 {
		f.calls[tab]++
	}
	f.pages[tab] = append(f.pages[tab], p.Page)
	f.params = p
}

func (f *fakeLoader) count(tab Tab) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tab]
}

func (f *fakeLoader) pagesOf(tab Tab) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[tab]
}

// pageOf slices items the way the backend pages them. total overrides the
// reported count when it is larger than items.
func pageOf[T any](items []T, p api.ListParams, total int) *api.ListResponse[T] {
	per := p.PerPage
	if per < 1 {
		per = api.DefaultPerPage
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	from := (page - 1) * per
	if from > len(items) {
		from = len(items)
	}
	to := from + per
	if to > len(items) {
		to = len(items)
	}
	if total < len(items) {
		total = len(items)
	}
	last := (total + per - 1) / per
	if last < 1 {
		last = 1
	}
	return &api.ListResponse[T]{
		Success:    true,
		Data:       items[from:to],
		Pagination: api.Pagination{CurrentPage: page, PerPage: per, Total: total, LastPage: last},
	}
}

func (f *fakeLoader) ListPatientIntakes(_ context.Context, p api.ListParams) (*api.ListResponse[api.PatientIntake], error) {
	f.record(TabPatients, p)
	if f.err != nil {
		return nil, f.err
	}
	return pageOf(f.patients, p, f.total), nil
}

func (f *fakeLoader) ListBillingPayments(_ context.Context, p api.ListParams) (*api.ListResponse[api.BillingPayment], error) {
	f.record(TabBilling, p)
	if f.err != nil {
		return nil, f.err
	}
	return pageOf(f.payments, p, f.total), nil
}

func (f *fakeLoader) ListAuditTrail(_ context.Context, p api.ListParams) (*api.ListResponse[api.AuditRecord], error) {
	f.record(TabAudit, p)
	if f.err != nil {
		return nil, f.err
	}
	return pageOf(f.audit, p, f.total), nil
}

func (f *fakeLoader) NextEnrollmentID(context.Context) (string, error) {
	return f.nextID, f.nextIDErr
}

func (f *fakeLoader) write(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, op)
	return f.writeErr
}

func (f *fakeLoader) CreatePatientIntake(_ context.Context, req api.IntakeRequest) (*api.PatientIntake, error) {
	f.lastIntake = req
	return &api.PatientIntake{}, f.write("create-intake")
}

func (f *fakeLoader) UpdatePatientIntake(_ context.Context, id string, req api.IntakeRequest) (*api.PatientIntake, error) {
	f.lastIntake = req
	return &api.PatientIntake{}, f.write("update-intake " + id)
}

func (f *fakeLoader) DeletePatientIntake(_ context.Context, id string) error {
	return f.write("delete-intake " + id)
}

func (f *fakeLoader) CreateBillingPayment(_ context.Context, req api.BillingRequest) (*api.BillingPayment, error) {
	f.lastBilling = req
	return &api.BillingPayment{}, f.write("create-billing")
}

func (f *fakeLoader) UpdateBillingPayment(_ context.Context, id string, req api.BillingRequest) (*api.BillingPayment, error) {
	f.lastBilling = req
	return &api.BillingPayment{}, f.write("update-billing " + id)
}

func (f *fakeLoader) DeleteBillingPayment(_ context.Context, id string) error {
	return f.write("delete-billing " + id)
}

func (f *fakeLoader) UpdateAuditRecord(_ context.Context, id string, upd api.AuditUpdate) (*api.AuditRecord, error) {
	f.lastAudit = upd
	return &api.AuditRecord{}, f.write("update-audit " + id)
}

func (f *fakeLoader) writeLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func manyPatients(n int) []api.PatientIntake {
	out := make([]api.PatientIntake, n)
	for i := range out {
		out[i] = api.PatientIntake{
			PatientName:  fmt.Sprintf("Patient %02d", i+1),
			EnrollmentID: fmt.Sprintf("ENR-%03d", i+1),
		}
	}
	return out
}

func newModel(t *testing.T, loader *fakeLoader) Model {
	t.Helper()
	m := New(styles.NewTheme("dark"), loader, 10)
	m.SetSize(160, 30)
	return m
}

// run executes cmd and feeds the message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) (Model, tea.Msg) {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	m, _ = m.Update(msg)
	return m, msg
}

// drive runs cmd and feeds each resulting message back in until the chain
// ends. Only commands that finish at once may be driven.
func drive(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil && i < 10; i++ {
		msg := cmd()
		if msg == nil {
			break
		}
		m, cmd = m.Update(msg)
	}
	return m
}

func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "ctrl+s":
			msg = tea.KeyMsg{Type: tea.KeyCtrlS}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

// =============================================================================
// LOADING
// =============================================================================

func TestStart_LoadsPatients(t *testing.T) {
	loader := &fakeLoader{patients: []api.PatientIntake{{PatientName: "Jane Roe", EnrollmentID: "ENR-1"}}}
	m := newModel(t, loader)

	cmd := m.Start()
	assert.True(t, m.Loading())
	assert.Contains(t, m.View(), "Loading patient intake")

	m, _ = run(t, m, cmd)
	assert.False(t, m.Loading())
	assert.Equal(t, 1, loader.count(TabPatients))
	assert.Equal(t, FetchLimit, loader.params.PerPage)

	view := m.View()
	assert.Contains(t, view, "Jane Roe")
	assert.Contains(t, view, "Incomplete")
	assert.Contains(t, view, "Page 1 of 1")
}

func TestSwitchTab_LoadsOnce(t *testing.T) {
	loader := &fakeLoader{payments: []api.BillingPayment{{PatientName: "Jane Roe", ClaimNumber: "CLM-9", TotalClaimAmount: "1200.5"}}}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())

	m, cmd := press(m, "tab")
	assert.Equal(t, TabBilling, m.Tab())
	m, _ = run(t, m, cmd)
	assert.Equal(t, 1, loader.count(TabBilling))
	assert.Contains(t, m.View(), "CLM-9")
	assert.Contains(t, m.View(), "$1,200.50")

	m, _ = press(m, "1")
	m, cmd = press(m, "2")
	assert.Nil(t, cmd, "loaded tabs are not fetched again")

	_, cmd = press(m, "r")
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 2, loader.count(TabBilling))
}

func TestReset_DropsInFlightResponses(t *testing.T) {
	loader := &fakeLoader{patients: manyPatients(3)}
	m := newModel(t, loader)

	cmd := m.Start()
	m.Reset()
	m, _ = run(t, m, cmd)

	assert.NotContains(t, m.View(), "Patient 01")
	assert.Empty(t, m.patients)
}

func TestLoadError_ShowsRetry(t *testing.T) {
	loader := &fakeLoader{err: fmt.Errorf("connection refused")}
	m := newModel(t, loader)
	m, msg := run(t, m, m.Start())

	require.IsType(t, LoadedMsg{}, msg)
	assert.Error(t, m.Err())
	assert.Contains(t, m.View(), "press r to retry")
}

func TestLoadUnauthorized_EmitsUnauthorizedMsg(t *testing.T) {
	loader := &fakeLoader{err: &api.APIError{Status: http.StatusUnauthorized, Message: "Unauthenticated."}}
	m := newModel(t, loader)

	msg := m.Start()()
	_, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	assert.IsType(t, UnauthorizedMsg{}, cmd())
}

// =============================================================================
// FILTER AND PAGING
// =============================================================================

func TestPaging(t *testing.T) {
	m := newModel(t, &fakeLoader{patients: manyPatients(25)})
	m, _ = run(t, m, m.Start())

	assert.Contains(t, m.View(), "Page 1 of 3  1-10 of 25")

	m, _ = press(m, "]", "]", "]")
	assert.Equal(t, 3, m.Page(), "clamped to the last page")
	view := m.View()
	assert.Contains(t, view, "21-25 of 25")
	assert.Contains(t, view, "Patient 25")
	assert.NotContains(t, view, "Patient 01")

	m, _ = press(m, "[")
	assert.Equal(t, 2, m.Page())
}

func TestFilter(t *testing.T) {
	m := newModel(t, &fakeLoader{patients: manyPatients(25)})
	m, _ = run(t, m, m.Start())
	m, _ = press(m, "]")

	m, _ = press(m, "/")
	assert.True(t, m.Filtering())

	m, _ = press(m, "E", "N", "R", "-", "0", "1")
	assert.Equal(t, "ENR-01", m.Term())
	assert.Equal(t, 1, m.Page(), "filtering returns to the first page")

	m, _ = press(m, "enter")
	assert.False(t, m.Filtering())
	view := m.View()
	assert.Contains(t, view, "Patient 10")
	assert.NotContains(t, view, "Patient 20")
	assert.Contains(t, view, "1-10 of 10")

	// q is an ordinary key while typing a filter.
	m, _ = press(m, "/", "q")
	assert.Equal(t, "ENR-01q", m.Term())
	assert.Contains(t, m.View(), "No records match")

	m, _ = press(m, "esc")
	assert.Empty(t, m.Term())
	assert.False(t, m.Filtering())
}

func TestFilter_IsPerTab(t *testing.T) {
	m := newModel(t, &fakeLoader{patients: manyPatients(3)})
	m, _ = run(t, m, m.Start())
	m, _ = press(m, "/", "x", "enter")

	m, cmd := press(m, "3")
	m, _ = run(t, m, cmd)
	assert.Empty(t, m.Term())

	m, _ = press(m, "1")
	assert.Equal(t, "x", m.Term())
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func TestAuditTrail_TotalsFollowFilter(t *testing.T) {
	loader := &fakeLoader{audit: []api.AuditRecord{
		{
			PatientName: "Jane Roe",
			BillingPayments: []api.BillingPayment{
				{ClaimNumber: "CLM-1", TotalClaimAmount: "100", AllowedAmount: "80", InsurancePaid: "60"},
				{ClaimNumber: "CLM-2", TotalClaimAmount: "50"},
			},
		},
		{
			PatientName:     "John Doe",
			BillingPayments: []api.BillingPayment{{ClaimNumber: "CLM-3", TotalClaimAmount: "1000"}},
		},
	}}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "3")
	m, _ = run(t, m, cmd)

	view := m.View()
	assert.Contains(t, view, "CLM-1 +1")
	assert.Contains(t, view, "$1,150.00")

	m, _ = press(m, "/", "r", "o", "e", "enter")
	view = m.View()
	assert.Contains(t, view, "$150.00")
	assert.NotContains(t, view, "$1,150.00")
	assert.Contains(t, view, "$20.00", "patient responsibility derived from allowed minus paid")
}

func TestClaimSummary(t *testing.T) {
	assert.Equal(t, "-", claimSummary(nil))
	assert.Equal(t, "A", claimSummary([]string{"A"}))
	assert.Equal(t, "A +2", claimSummary([]string{"A", "B", "C"}))
}

func TestTab_String(t *testing.T) {
	assert.Equal(t, "Patient Intake", TabPatients.String())
	assert.Equal(t, "Billing & Payments", TabBilling.String())
	assert.Equal(t, "Audit Trail", TabAudit.String())
}

// =============================================================================
// BACKEND PAGES
// =============================================================================

func TestFetch_WalksBackendPages(t *testing.T) {
	loader := &fakeLoader{patients: manyPatients(FetchLimit + 500)}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())

	assert.Equal(t, []int{1, 2}, loader.pagesOf(TabPatients))
	view := m.View()
	assert.Contains(t, view, "of 1500")
	assert.NotContains(t, view, "on server")
}

func TestFetch_StopsAtMaxRecords(t *testing.T) {
	loader := &fakeLoader{patients: manyPatients(MaxRecords + 500)}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())

	assert.Len(t, loader.pagesOf(TabPatients), MaxRecords/FetchLimit)
	assert.Contains(t, m.View(), fmt.Sprintf("(first %d of %d on server)", MaxRecords, MaxRecords+500))
}

func TestFetch_ShortBackendShowsServerTotal(t *testing.T) {
	// The backend reports more records than it returns pages for.
	loader := &fakeLoader{patients: manyPatients(30), total: 5000}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())

	assert.Equal(t, []int{1, 2}, loader.pagesOf(TabPatients), "an empty page ends the walk")
	assert.Contains(t, m.View(), "(first 30 of 5000 on server)")
}

// =============================================================================
// FILTERS
// =============================================================================

func TestCompleteOnly(t *testing.T) {
	loader := &fakeLoader{patients: []api.PatientIntake{
		{PatientName: "Jane Roe", DMEItems: "Walker", DateOfService: "2025-01-02", TrackingNumber: "1Z9"},
		{PatientName: "John Doe"},
	}}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	assert.Contains(t, m.View(), "John Doe")

	m, _ = press(m, "c")
	assert.True(t, m.CompleteOnly())
	view := m.View()
	assert.Contains(t, view, "Jane Roe")
	assert.NotContains(t, view, "John Doe")
	assert.Contains(t, view, "(c to show all)")

	m, _ = press(m, "c")
	assert.Contains(t, m.View(), "John Doe")
}

func TestAuditFilter_SentToBackendAndAppliedLocally(t *testing.T) {
	loader := &fakeLoader{audit: []api.AuditRecord{
		{PatientName: "Jane Roe", DateOfService: "2025-01-15T00:00:00Z", OverallBillingStatus: "Paid"},
		{PatientName: "John Doe", DateOfService: "2025-01-20", OverallBillingStatus: "Denied"},
		{PatientName: "Ann Lee", DateOfService: "2025-03-01", OverallBillingStatus: "Paid"},
	}}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "3")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "f")
	require.True(t, m.Editing())
	m.form.SetValue("date_from", "2025-01-01")
	m.form.SetValue("date_to", "2025-01-31")
	m.form.SetValue("status", "paid")
	m, cmd = press(m, "ctrl+s")
	m = drive(t, m, cmd)

	assert.False(t, m.Editing())
	assert.Equal(t, AuditFilter{From: "2025-01-01", To: "2025-01-31", Status: "Paid"}, m.AuditFilter())
	assert.Equal(t, "2025-01-01", loader.params.DateFrom)
	assert.Equal(t, "2025-01-31", loader.params.DateTo)
	assert.Equal(t, "Paid", loader.params.Status)

	view := m.View()
	assert.Contains(t, view, "Jane Roe")
	assert.NotContains(t, view, "John Doe")
	assert.NotContains(t, view, "Ann Lee")
	assert.Contains(t, view, "DOS 2025-01-01 to 2025-01-31, status Paid")
}

func TestAuditFilter_RejectsReversedRange(t *testing.T) {
	m := newModel(t, &fakeLoader{})
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "3")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "f")
	m.form.SetValue("date_from", "2025-02-01")
	m.form.SetValue("date_to", "2025-01-01")
	m, cmd = press(m, "ctrl+s")
	assert.Nil(t, cmd)
	assert.True(t, m.Editing())
	assert.Contains(t, m.View(), "DOS from must not be after DOS to")
}

func TestAuditFilter_Match(t *testing.T) {
	rec := api.AuditRecord{DateOfService: "2025-01-15", OverallBillingStatus: "In Process"}
	assert.True(t, AuditFilter{}.Match(rec))
	assert.True(t, AuditFilter{From: "2025-01-15", To: "2025-01-15"}.Match(rec))
	assert.False(t, AuditFilter{From: "2025-01-16"}.Match(rec))
	assert.True(t, AuditFilter{Status: "in process"}.Match(rec))
	assert.False(t, AuditFilter{To: "2025-12-31"}.Match(api.AuditRecord{}), "no date fails a date bound")
}

// =============================================================================
// FORMS
// =============================================================================

func fillIntake(m *Model) {
	for k, v := range map[string]string{
		"insurance":       "Medicare",
		"vendor":          "Acme DME",
		"patient_name":    "Jane Roe",
		"dob":             "1950-06-01",
		"gender":          "female",
		"member_id":       "M-1",
		"phone":           "555-0100",
		"address":         "1 Main St",
		"date_of_service": "2025-01-15",
		"dme_items":       "Walker",
		"number_of_items": "2",
		"hcpcs_codes":     "E0143, E0156 ,",
		"prior_auth":      "y",
	} {
		m.form.SetValue(k, v)
	}
}

func TestCreateIntake(t *testing.T) {
	loader := &fakeLoader{nextID: "FM2001"}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())

	m, cmd := press(m, "n")
	m = drive(t, m, cmd)
	require.True(t, m.Editing())
	assert.Equal(t, "FM2001", m.Form().Value("enrollment_id"))

	// q and tab are form input now.
	m, _ = press(m, "q")
	assert.Equal(t, TabPatients, m.Tab())
	m.form.SetValue("enrollment_id", "FM2001")

	fillIntake(&m)
	m, cmd = press(m, "ctrl+s")
	m = drive(t, m, cmd)

	assert.False(t, m.Editing())
	assert.Equal(t, []string{"create-intake"}, loader.writeLog())
	assert.Equal(t, "Intake FM2001 created", m.Notice())
	assert.Equal(t, 2, loader.count(TabPatients), "the tab reloads after a save")

	req := loader.lastIntake
	assert.Equal(t, "FM2001", req.EnrollmentID)
	assert.Equal(t, "Female", req.Patient.Gender)
	assert.Equal(t, "Medicare", req.Selection.Insurance)
	assert.Equal(t, 2, req.Clinical.NumberOfItems)
	assert.Equal(t, []string{"E0143", "E0156"}, req.Clinical.HCPCSCodes)
	assert.True(t, req.Clinical.PriorAuth)
	assert.False(t, req.Clinical.MedicalNecessity)
}

func TestCreateIntake_FallbackEnrollmentID(t *testing.T) {
	loader := &fakeLoader{nextIDErr: fmt.Errorf("not found")}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())

	m, cmd := press(m, "n")
	m = drive(t, m, cmd)
	id := m.Form().Value("enrollment_id")
	assert.Regexp(t, `^FM[1-9][0-9]{3}$`, id)
}

func TestCreateIntake_RequiresHCPCSCode(t *testing.T) {
	loader := &fakeLoader{nextID: "FM2001"}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "n")
	m = drive(t, m, cmd)

	fillIntake(&m)
	m.form.SetValue("hcpcs_codes", " , ")
	m, cmd = press(m, "ctrl+s")
	assert.Nil(t, cmd)
	assert.Equal(t, "At least one HCPCS code is required", m.Form().Err())
	assert.Empty(t, loader.writeLog())
}

func TestEditIntake_PrefillsSelected(t *testing.T) {
	loader := &fakeLoader{patients: []api.PatientIntake{{
		ID: "41", EnrollmentID: "FM1001", PatientName: "Jane Roe", DOB: "1950-06-01T00:00:00Z",
		HCPCSCodes: []string{"E0143", "E0156"}, NumberOfItems: "3", PriorAuth: true,
	}}}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())

	m, _ = press(m, "e")
	require.True(t, m.Editing())
	f := m.Form()
	assert.Equal(t, "1950-06-01", f.Value("dob"))
	assert.Equal(t, "E0143, E0156", f.Value("hcpcs_codes"))
	assert.Equal(t, "3", f.Value("number_of_items"))
	assert.Equal(t, "Yes", f.Value("prior_auth"))

	fillIntake(&m)
	m, cmd := press(m, "ctrl+s")
	m = drive(t, m, cmd)
	assert.Equal(t, []string{"update-intake 41"}, loader.writeLog())
	assert.Equal(t, "FM1001", loader.lastIntake.EnrollmentID)
}

func fillBilling(m *Model) {
	for k, v := range map[string]string{
		"enrollment_id":      "FM1001",
		"patient_name":       "Jane Roe",
		"member_id":          "M-1",
		"dme_item":           "Walker",
		"hcpcs":              "E0143",
		"payer":              "Medicare",
		"date_paid":          "2025-02-01",
		"total_claim_amount": "150",
		"allowed_amount":     "120",
		"insurance_paid":     "100",
		"patient_paid":       "20",
	} {
		m.form.SetValue(k, v)
	}
}

func TestCreateBilling_DerivesFigures(t *testing.T) {
	loader := &fakeLoader{}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "2")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "n")
	require.True(t, m.Editing())
	fillBilling(&m)

	view := m.View()
	assert.Contains(t, view, "Patient resp. $20.00")
	assert.Contains(t, view, "Total paid $120.00")
	assert.Contains(t, view, "Balance due $30.00")
	assert.Contains(t, view, "Paid No")

	m, cmd = press(m, "ctrl+s")
	m = drive(t, m, cmd)
	require.Equal(t, []string{"create-billing"}, loader.writeLog())

	req := loader.lastBilling
	assert.Equal(t, "150.00", req.TotalClaimAmount)
	assert.Equal(t, "20.00", req.PatientResponsibility)
	assert.Equal(t, "120.00", req.TotalPaidBalance)
	assert.Equal(t, "No", req.IsPaid)
	assert.Equal(t, "Pending", req.BillingStatus)
	assert.Equal(t, "No", req.AuthorizationYN)
}

func TestCreateBilling_PaidWhenBalanceCleared(t *testing.T) {
	loader := &fakeLoader{}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "2")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "n")
	fillBilling(&m)
	m.form.SetValue("patient_paid", "50")
	assert.Contains(t, m.View(), "Balance due $0.00   Paid Yes")

	m, cmd = press(m, "ctrl+s")
	m = drive(t, m, cmd)
	assert.Equal(t, "Yes", loader.lastBilling.IsPaid)
	assert.Equal(t, "150.00", loader.lastBilling.TotalPaidBalance)
}

func TestCreateBilling_RejectsNameWithDigits(t *testing.T) {
	loader := &fakeLoader{}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "2")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "n")
	fillBilling(&m)
	m.form.SetValue("patient_name", "Jane Roe 2")
	m, cmd = press(m, "ctrl+s")
	assert.Nil(t, cmd)
	assert.Equal(t, "Patient name may contain only letters and spaces", m.Form().Err())
}

func TestEditBilling_PrefillsPatientPaid(t *testing.T) {
	loader := &fakeLoader{payments: []api.BillingPayment{{
		ID: "9", PatientName: "Jane Roe", TotalClaimAmount: "150", AllowedAmount: "120",
		InsurancePaid: "100", TotalPaidBalance: "120", BillingStatus: "Submitted",
	}}}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "2")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "e")
	require.True(t, m.Editing())
	assert.Equal(t, "20.00", m.Form().Value("patient_paid"))
	assert.Equal(t, "Submitted", m.Form().Value("billing_status"))

	fillBilling(&m)
	m, cmd = press(m, "ctrl+s")
	m = drive(t, m, cmd)
	assert.Equal(t, []string{"update-billing 9"}, loader.writeLog())
}

func TestSaveError_KeepsFormOpen(t *testing.T) {
	loader := &fakeLoader{writeErr: &api.APIError{Status: http.StatusUnprocessableEntity, Message: "The payer field is required."}}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "2")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "n")
	fillBilling(&m)
	m, cmd = press(m, "ctrl+s")
	m = drive(t, m, cmd)

	require.True(t, m.Editing())
	assert.False(t, m.Form().Busy())
	assert.Equal(t, "The payer field is required.", m.Form().Err())
}

func TestSaveUnauthorized_EmitsUnauthorizedMsg(t *testing.T) {
	loader := &fakeLoader{writeErr: &api.APIError{Status: http.StatusUnauthorized, Message: "Unauthenticated."}}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "2")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "n")
	fillBilling(&m)
	m, cmd = press(m, "ctrl+s")
	m, cmd = m.Update(cmd())
	m, cmd = m.Update(cmd())
	require.NotNil(t, cmd)
	assert.IsType(t, UnauthorizedMsg{}, cmd())
}

func TestFormEscCancels(t *testing.T) {
	m := newModel(t, &fakeLoader{})
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "2")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "n")
	require.True(t, m.CapturesInput())
	m, cmd = press(m, "esc")
	m = drive(t, m, cmd)
	assert.False(t, m.Editing())
	assert.False(t, m.CapturesInput())
}

func TestAuditEdit_UpdatesStatus(t *testing.T) {
	loader := &fakeLoader{audit: []api.AuditRecord{{PatientIntakeID: "12", PatientName: "Jane Roe", OverallBillingStatus: "Pending"}}}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "3")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "e")
	require.True(t, m.Editing())
	assert.Equal(t, "Pending", m.Form().Value("overall_billing_status"))

	m.form.SetValue("overall_billing_status", "in process")
	m, cmd = press(m, "ctrl+s")
	m = drive(t, m, cmd)
	assert.Equal(t, []string{"update-audit 12"}, loader.writeLog())
	assert.Equal(t, api.AuditUpdate{OverallBillingStatus: "In Process"}, loader.lastAudit)
	assert.Equal(t, 2, loader.count(TabAudit))
}

// =============================================================================
// DELETE
// =============================================================================

func TestDelete_ConfirmAndCancel(t *testing.T) {
	loader := &fakeLoader{patients: []api.PatientIntake{{ID: "41", PatientName: "Jane Roe", EnrollmentID: "FM1001"}}}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())

	m, _ = press(m, "x")
	assert.True(t, m.CapturesInput())
	assert.Contains(t, m.View(), "Delete Jane Roe (FM1001)?")

	m, cmd := press(m, "n")
	assert.Nil(t, cmd)
	assert.Equal(t, "Delete cancelled", m.Notice())
	assert.Empty(t, loader.writeLog())

	m, _ = press(m, "x")
	m, cmd = press(m, "y")
	m = drive(t, m, cmd)
	assert.Equal(t, []string{"delete-intake 41"}, loader.writeLog())
	assert.Equal(t, "Deleted Jane Roe (FM1001)", m.Notice())
	assert.Equal(t, 2, loader.count(TabPatients))
}

func TestDelete_FailureShowsNotice(t *testing.T) {
	loader := &fakeLoader{
		payments: []api.BillingPayment{{ID: "9", PatientName: "Jane Roe", ClaimNumber: "CLM-1"}},
		writeErr: fmt.Errorf("connection refused"),
	}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "2")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "x")
	m, cmd = press(m, "y")
	m = drive(t, m, cmd)
	assert.Equal(t, []string{"delete-billing 9"}, loader.writeLog())
	assert.Equal(t, "Delete failed: connection refused", m.Notice())
}

func TestSaveAfterReset_IsDropped(t *testing.T) {
	loader := &fakeLoader{}
	m := newModel(t, loader)
	m, _ = run(t, m, m.Start())
	m, cmd := press(m, "2")
	m, _ = run(t, m, cmd)

	m, _ = press(m, "n")
	fillBilling(&m)
	m, cmd = press(m, "ctrl+s")
	m, cmd = m.Update(cmd())
	saved := cmd()
	require.IsType(t, SavedMsg{}, saved)

	m.Reset()
	m, cmd = m.Update(saved)
	assert.Nil(t, cmd)
	assert.Empty(t, m.Notice())
}
