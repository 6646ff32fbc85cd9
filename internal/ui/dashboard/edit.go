// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/billing"
	"github.com/jeranaias/medcare-tui/internal/ui/components"
	"github.com/jeranaias/medcare-tui/internal/util"
)

// BillingStatuses are the claim states a biller can set, in menu order.
var BillingStatuses = []string{"Submitted", "Pending", "Denied", "Paid", "In Process"}

// formKind identifies the open form.
type formKind int

const (
	formNone formKind = iota
	formIntake
	formBilling
	formAuditEdit
	formAuditFilter
)

// deletion is a delete waiting for the user to confirm.
type deletion struct {
	tab   Tab
	id    string
	label string
}

// =============================================================================
// AUDIT FILTER
// =============================================================================

// AuditFilter narrows the audit trail by date of service and overall
// billing status. The backend applies it too; matching again locally keeps
// the view right when it does not.
type AuditFilter struct {
	From   string
	To     string
	Status string
}

// Active reports whether any filter is set.
func (f AuditFilter) Active() bool {
	return f.From != "" || f.To != "" || f.Status != ""
}

// Match reports whether r passes the filter. Records without a date of
// service fail any date bound.
func (f AuditFilter) Match(r api.AuditRecord) bool {
	dos := dateOnly(r.DateOfService)
	if f.From != "" && (dos == "" || dos < f.From) {
		return false
	}
	if f.To != "" && (dos == "" || dos > f.To) {
		return false
	}
	if f.Status != "" && !strings.EqualFold(strings.TrimSpace(r.OverallBillingStatus), f.Status) {
		return false
	}
	return true
}

// String describes the filter for the filter line.
func (f AuditFilter) String() string {
	var parts []string
	switch {
	case f.From != "" && f.To != "":
		parts = append(parts, "DOS "+f.From+" to "+f.To)
	case f.From != "":
		parts = append(parts, "DOS from "+f.From)
	case f.To != "":
		parts = append(parts, "DOS to "+f.To)
	}
	if f.Status != "" {
		parts = append(parts, "status "+f.Status)
	}
	return strings.Join(parts, ", ")
}

// dateOnly drops any time part from a backend date.
func dateOnly(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(components.DateLayout) {
		return s[:len(components.DateLayout)]
	}
	return s
}

// =============================================================================
// FIELDS
// =============================================================================

var intakeFields = []components.Field{
	{Key: "enrollment_id", Label: "Enrollment ID", Required: true},
	{Key: "insurance", Label: "Insurance", Required: true},
	{Key: "vendor", Label: "Vendor", Required: true},
	{Key: "patient_name", Label: "Patient name", Required: true},
	{Key: "dob", Label: "Date of birth", Kind: components.FieldDate, Required: true},
	{Key: "gender", Label: "Gender", Kind: components.FieldChoice, Required: true, Options: []string{"Male", "Female", "Other"}},
	{Key: "member_id", Label: "Member ID", Required: true},
	{Key: "phone", Label: "Phone", Required: true},
	{Key: "address", Label: "Address", Required: true},
	{Key: "date_of_service", Label: "Date of service", Kind: components.FieldDate, Required: true},
	{Key: "primary_physician", Label: "Primary physician"},
	{Key: "physician_npi", Label: "Physician NPI"},
	{Key: "prescribing_provider", Label: "Prescribing provider"},
	{Key: "diagnosis_icd10", Label: "Diagnosis (ICD-10)"},
	{Key: "date_of_prescription", Label: "Date of prescription", Kind: components.FieldDate},
	{Key: "dme_items", Label: "DME items", Required: true},
	{Key: "number_of_items", Label: "Number of items", Kind: components.FieldCount, Required: true},
	{Key: "hcpcs_codes", Label: "HCPCS codes", Required: true, Placeholder: "E0143, E0156"},
	{Key: "medical_necessity", Label: "Medical necessity", Kind: components.FieldYesNo},
	{Key: "prior_auth", Label: "Prior auth", Kind: components.FieldYesNo},
	{Key: "auth_number", Label: "Auth number"},
	{Key: "date_of_shipment", Label: "Shipment date", Kind: components.FieldDate},
	{Key: "estimated_delivery", Label: "Estimated delivery", Kind: components.FieldDate},
	{Key: "carrier_service", Label: "Carrier"},
	{Key: "tracking_number", Label: "Tracking number"},
	{Key: "proof_of_delivery", Label: "Proof of delivery"},
	{Key: "additional_notes", Label: "Notes"},
}

var billingFields = []components.Field{
	{Key: "enrollment_id", Label: "Enrollment ID", Required: true},
	{Key: "patient_name", Label: "Patient name", Required: true},
	{Key: "member_id", Label: "Member ID", Required: true},
	{Key: "dme_item", Label: "DME item", Required: true},
	{Key: "hcpcs", Label: "HCPCS", Required: true},
	{Key: "payer", Label: "Payer", Required: true},
	{Key: "date_of_service", Label: "Date of service", Kind: components.FieldDate},
	{Key: "claim_number", Label: "Claim number"},
	{Key: "date_claim_submission", Label: "Claim submitted", Kind: components.FieldDate},
	{Key: "billing_status", Label: "Billing status", Kind: components.FieldChoice, Options: BillingStatuses},
	{Key: "authorization", Label: "Authorization", Kind: components.FieldYesNo},
	{Key: "total_claim_amount", Label: "Total claim", Kind: components.FieldMoney},
	{Key: "allowed_amount", Label: "Allowed amount", Kind: components.FieldMoney},
	{Key: "insurance_paid", Label: "Insurance paid", Kind: components.FieldMoney},
	{Key: "patient_paid", Label: "Patient paid", Kind: components.FieldMoney},
	{Key: "date_paid", Label: "Date paid", Kind: components.FieldDate, Required: true},
	{Key: "notes", Label: "Notes"},
}

var auditEditFields = []components.Field{
	{Key: "overall_billing_status", Label: "Billing status", Kind: components.FieldChoice, Required: true, Options: BillingStatuses},
	{Key: "auth_number", Label: "Auth number"},
}

var auditFilterFields = []components.Field{
	{Key: "date_from", Label: "DOS from", Kind: components.FieldDate},
	{Key: "date_to", Label: "DOS to", Kind: components.FieldDate},
	{Key: "status", Label: "Billing status", Kind: components.FieldChoice, Options: BillingStatuses},
}

var patientNamePattern = regexp.MustCompile(`^[A-Za-z ]+$`)

// =============================================================================
// OPENING FORMS
// =============================================================================

func (m *Model) closeForm() {
	m.editing = formNone
	m.editID = ""
	m.form = components.Form{}
}

func (m Model) openForm(kind formKind, id string, f components.Form) (Model, tea.Cmd) {
	m.form = f
	m.editing = kind
	m.editID = id
	m.notice = ""
	return m, nil
}

// startCreate opens the create form of the current tab. A new intake
// first asks the backend for its enrollment ID.
func (m Model) startCreate() (Model, tea.Cmd) {
	switch m.tab {
	case TabPatients:
		return m, nextEnrollmentID(m.backend, m.timeout)
	case TabBilling:
		return m.openBillingForm(nil)
	}
	return m, nil
}

// startEdit opens the edit form for the record under the cursor.
func (m Model) startEdit() (Model, tea.Cmd) {
	i, ok := m.selected()
	if !ok {
		return m, nil
	}
	switch m.tab {
	case TabPatients:
		rec := m.filteredPatients()[i]
		return m.openIntakeForm("", &rec)
	case TabBilling:
		rec := m.filteredPayments()[i]
		return m.openBillingForm(&rec)
	case TabAudit:
		return m.openAuditEdit(m.filteredAudit()[i])
	}
	return m, nil
}

// startDelete asks to confirm deleting the record under the cursor. Audit
// records are derived and cannot be deleted.
func (m *Model) startDelete() {
	i, ok := m.selected()
	if !ok {
		return
	}
	var d deletion
	switch m.tab {
	case TabPatients:
		rec := m.filteredPatients()[i]
		d = deletion{tab: TabPatients, id: rec.ID.String(), label: rec.PatientName + " (" + rec.EnrollmentID + ")"}
	case TabBilling:
		rec := m.filteredPayments()[i]
		d = deletion{tab: TabBilling, id: rec.ID.String(), label: rec.PatientName + " claim " + orDash(rec.ClaimNumber)}
	default:
		return
	}
	if d.id == "" {
		m.notice = "This record has no ID and cannot be deleted"
		return
	}
	m.notice = ""
	m.confirm = &d
}

func (m Model) openIntakeForm(enrollmentID string, rec *api.PatientIntake) (Model, tea.Cmd) {
	title := "New patient intake"
	id := ""
	if rec != nil {
		title = "Edit patient intake"
		id = rec.ID.String()
	}
	f := components.NewForm(m.theme, "intake", title, intakeFields)
	f.SetCheck(checkIntake)
	if rec == nil {
		f.SetValue("enrollment_id", enrollmentID)
		f.SetValue("number_of_items", "1")
		f.SetValue("medical_necessity", "No")
		f.SetValue("prior_auth", "No")
	} else {
		for k, v := range map[string]string{
			"enrollment_id":        rec.EnrollmentID,
			"insurance":            rec.Insurance,
			"vendor":               rec.Vendor,
			"patient_name":         rec.PatientName,
			"dob":                  dateOnly(rec.DOB),
			"gender":               rec.Gender,
			"member_id":            rec.MemberID,
			"phone":                rec.Phone,
			"address":              rec.Address,
			"date_of_service":      dateOnly(rec.DateOfService),
			"primary_physician":    rec.PrimaryPhysician,
			"physician_npi":        rec.PhysicianNPI,
			"prescribing_provider": rec.PrescribingProvider,
			"diagnosis_icd10":      rec.DiagnosisICD10,
			"date_of_prescription": dateOnly(rec.DateOfPrescription),
			"dme_items":            rec.DMEItems,
			"number_of_items":      rec.NumberOfItems.String(),
			"hcpcs_codes":          strings.Join(rec.HCPCSCodes, ", "),
			"medical_necessity":    yesNo(rec.MedicalNecessity),
			"prior_auth":           yesNo(rec.PriorAuth),
			"auth_number":          rec.AuthNumber,
			"date_of_shipment":     dateOnly(rec.DateOfShipment),
			"estimated_delivery":   dateOnly(rec.EstimatedDelivery),
			"carrier_service":      rec.CarrierService,
			"tracking_number":      rec.TrackingNumber,
			"proof_of_delivery":    rec.ProofOfDelivery,
			"additional_notes":     rec.AdditionalNotes,
		} {
			f.SetValue(k, v)
		}
	}
	return m.openForm(formIntake, id, f)
}

func (m Model) openBillingForm(rec *api.BillingPayment) (Model, tea.Cmd) {
	title := "New billing record"
	id := ""
	if rec != nil {
		title = "Edit billing record"
		id = rec.ID.String()
	}
	f := components.NewForm(m.theme, "billing", title, billingFields)
	f.SetCheck(checkBilling)
	f.SetSummary(billingSummary)
	if rec == nil {
		f.SetValue("billing_status", "Pending")
		f.SetValue("authorization", "No")
	} else {
		c := billing.ClaimOf(*rec)
		// Patient payments are not stored on their own.
		patientPaid := billing.Cents(0)
		if d := c.TotalPaidBalance - c.InsurancePaid; d > 0 {
			patientPaid = d
		}
		for k, v := range map[string]string{
			"enrollment_id":         rec.EnrollmentID,
			"patient_name":          rec.PatientName,
			"member_id":             rec.MemberID,
			"dme_item":              rec.DMEItem,
			"hcpcs":                 rec.HCPCS,
			"payer":                 rec.Payer,
			"date_of_service":       dateOnly(rec.DateOfService),
			"claim_number":          rec.ClaimNumber,
			"date_claim_submission": dateOnly(rec.DateClaimSubmission),
			"billing_status":        rec.BillingStatus,
			"authorization":         rec.AuthorizationYN,
			"total_claim_amount":    billing.FormatDecimal(c.TotalClaim),
			"allowed_amount":        billing.FormatDecimal(c.Allowed),
			"insurance_paid":        billing.FormatDecimal(c.InsurancePaid),
			"patient_paid":          billing.FormatDecimal(patientPaid),
			"date_paid":             dateOnly(rec.DatePaid),
			"notes":                 rec.Notes,
		} {
			f.SetValue(k, v)
		}
	}
	return m.openForm(formBilling, id, f)
}

func (m Model) openAuditEdit(rec api.AuditRecord) (Model, tea.Cmd) {
	f := components.NewForm(m.theme, "audit", "Update "+rec.PatientName, auditEditFields)
	f.SetValue("overall_billing_status", rec.OverallBillingStatus)
	f.SetValue("auth_number", rec.AuthNumber)
	return m.openForm(formAuditEdit, rec.PatientIntakeID.String(), f)
}

func (m Model) openAuditFilter() (Model, tea.Cmd) {
	f := components.NewForm(m.theme, "audit-filter", "Filter audit trail", auditFilterFields)
	f.SetCheck(func(v map[string]string) error {
		if v["date_from"] != "" && v["date_to"] != "" && v["date_from"] > v["date_to"] {
			return errors.New("DOS from must not be after DOS to")
		}
		return nil
	})
	f.SetValue("date_from", m.auditFilter.From)
	f.SetValue("date_to", m.auditFilter.To)
	f.SetValue("status", m.auditFilter.Status)
	return m.openForm(formAuditFilter, "", f)
}

// =============================================================================
// CHECKS & REQUESTS
// =============================================================================

func checkIntake(v map[string]string) error {
	if len(splitCodes(v["hcpcs_codes"])) == 0 {
		return errors.New("At least one HCPCS code is required")
	}
	return nil
}

func checkBilling(v map[string]string) error {
	if !patientNamePattern.MatchString(v["patient_name"]) {
		return errors.New("Patient name may contain only letters and spaces")
	}
	return nil
}

func splitCodes(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func intakeRequest(v map[string]string) api.IntakeRequest {
	count, _ := strconv.Atoi(v["number_of_items"])
	return api.IntakeRequest{
		EnrollmentID: v["enrollment_id"],
		Patient: api.IntakePatient{
			PatientName:   v["patient_name"],
			DOB:           v["dob"],
			Gender:        v["gender"],
			MemberID:      v["member_id"],
			Phone:         v["phone"],
			Address:       v["address"],
			DateOfService: v["date_of_service"],
		},
		Selection: api.IntakeSelection{
			Insurance: v["insurance"],
			Vendor:    v["vendor"],
		},
		Physician: api.IntakePhysician{
			PrimaryPhysician:    v["primary_physician"],
			PhysicianNPI:        v["physician_npi"],
			PrescribingProvider: v["prescribing_provider"],
		},
		Clinical: api.IntakeClinical{
			DiagnosisICD10:     v["diagnosis_icd10"],
			DateOfPrescription: v["date_of_prescription"],
			DMEItems:           v["dme_items"],
			NumberOfItems:      count,
			HCPCSCodes:         splitCodes(v["hcpcs_codes"]),
			MedicalNecessity:   v["medical_necessity"] == "Yes",
			PriorAuth:          v["prior_auth"] == "Yes",
			AuthNumber:         v["auth_number"],
		},
		Delivery: api.IntakeDelivery{
			DateOfShipment:    v["date_of_shipment"],
			EstimatedDelivery: v["estimated_delivery"],
			CarrierService:    v["carrier_service"],
			TrackingNumber:    v["tracking_number"],
			ProofOfDelivery:   v["proof_of_delivery"],
			AdditionalNotes:   v["additional_notes"],
		},
	}
}

// billingFigures derives the computed money fields from form values.
// Unparsable amounts count as zero until the form is submitted.
type billingFigures struct {
	total, allowed, insurancePaid, patientPaid billing.Cents
}

func figuresOf(v map[string]string) billingFigures {
	amt := func(k string) billing.Cents {
		c, err := billing.ParseAmount(v[k])
		if err != nil {
			return 0
		}
		return c
	}
	return billingFigures{
		total:         amt("total_claim_amount"),
		allowed:       amt("allowed_amount"),
		insurancePaid: amt("insurance_paid"),
		patientPaid:   amt("patient_paid"),
	}
}

func (b billingFigures) responsibility() billing.Cents {
	return billing.PatientResponsibility(b.allowed, b.insurancePaid)
}

func (b billingFigures) totalPaid() billing.Cents {
	return billing.TotalPaid(b.insurancePaid, b.patientPaid)
}

func (b billingFigures) balance() billing.Cents {
	return billing.BalanceDue(b.total, b.insurancePaid, b.patientPaid)
}

func billingSummary(v map[string]string) []string {
	b := figuresOf(v)
	return []string{
		fmt.Sprintf("Patient resp. %s   Total paid %s", billing.FormatUSD(b.responsibility()), billing.FormatUSD(b.totalPaid())),
		fmt.Sprintf("Balance due %s   Paid %s", billing.FormatUSD(b.balance()), yesNo(b.balance() <= 0)),
	}
}

func billingRequest(v map[string]string) api.BillingRequest {
	b := figuresOf(v)
	return api.BillingRequest{
		PatientName:           v["patient_name"],
		EnrollmentID:          v["enrollment_id"],
		MemberID:              v["member_id"],
		DMEItem:               v["dme_item"],
		HCPCS:                 v["hcpcs"],
		Payer:                 v["payer"],
		TotalClaimAmount:      billing.FormatDecimal(b.total),
		AllowedAmount:         billing.FormatDecimal(b.allowed),
		InsurancePaid:         billing.FormatDecimal(b.insurancePaid),
		DatePaid:              v["date_paid"],
		IsPaid:                yesNo(b.balance() <= 0),
		Notes:                 v["notes"],
		AuthorizationYN:       v["authorization"],
		BillingStatus:         v["billing_status"],
		DateOfService:         v["date_of_service"],
		DateClaimSubmission:   v["date_claim_submission"],
		ClaimNumber:           v["claim_number"],
		PatientResponsibility: billing.FormatDecimal(b.responsibility()),
		TotalPaidBalance:      billing.FormatDecimal(b.totalPaid()),
	}
}

// =============================================================================
// SAVING
// =============================================================================

func (m Model) handleSubmit(msg components.FormSubmitMsg) (Model, tea.Cmd) {
	if m.editing == formNone || msg.ID != m.form.ID() {
		return m, nil
	}
	v := msg.Values
	w := m.backend
	id := m.editID

	switch m.editing {
	case formAuditFilter:
		m.auditFilter = AuditFilter{From: v["date_from"], To: v["date_to"], Status: v["status"]}
		m.closeForm()
		m.page[TabAudit] = 1
		m.refresh(TabAudit)
		return m, m.Load(TabAudit)

	case formIntake:
		req := intakeRequest(v)
		if id == "" {
			return m, m.save(TabPatients, "Intake "+req.EnrollmentID+" created", func(ctx context.Context) error {
				_, err := w.CreatePatientIntake(ctx, req)
				return err
			})
		}
		return m, m.save(TabPatients, "Intake "+req.EnrollmentID+" updated", func(ctx context.Context) error {
			_, err := w.UpdatePatientIntake(ctx, id, req)
			return err
		})

	case formBilling:
		req := billingRequest(v)
		if id == "" {
			return m, m.save(TabBilling, "Billing record for "+req.PatientName+" created", func(ctx context.Context) error {
				_, err := w.CreateBillingPayment(ctx, req)
				return err
			})
		}
		return m, m.save(TabBilling, "Billing record for "+req.PatientName+" updated", func(ctx context.Context) error {
			_, err := w.UpdateBillingPayment(ctx, id, req)
			return err
		})

	case formAuditEdit:
		upd := api.AuditUpdate{OverallBillingStatus: v["overall_billing_status"], AuthNumber: v["auth_number"]}
		return m, m.save(TabAudit, "Audit record updated", func(ctx context.Context) error {
			_, err := w.UpdateAuditRecord(ctx, id, upd)
			return err
		})
	}
	return m, nil
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	d := *m.confirm
	m.confirm = nil
	if !key.Matches(msg, m.keys.Confirm) {
		m.notice = "Delete cancelled"
		return m, nil
	}

	w := m.backend
	m.notice = "Deleting " + d.label + "..."
	switch d.tab {
	case TabPatients:
		return m, m.remove(TabPatients, "Deleted "+d.label, func(ctx context.Context) error {
			return w.DeletePatientIntake(ctx, d.id)
		})
	case TabBilling:
		return m, m.remove(TabBilling, "Deleted "+d.label, func(ctx context.Context) error {
			return w.DeleteBillingPayment(ctx, d.id)
		})
	}
	return m, nil
}

// save runs op and reports it as a SavedMsg stamped with the current
// session generation so a result that lands after a sign-out is dropped.
func (m Model) save(tab Tab, notice string, op func(ctx context.Context) error) tea.Cmd {
	return m.run(SavedMsg{Tab: tab, Notice: notice}, op)
}

// remove is save for a delete, which has no form to report an error on.
func (m Model) remove(tab Tab, notice string, op func(ctx context.Context) error) tea.Cmd {
	return m.run(SavedMsg{Tab: tab, Notice: notice, Deleted: true}, op)
}

func (m Model) run(msg SavedMsg, op func(ctx context.Context) error) tea.Cmd {
	timeout := m.timeout
	msg.gen = m.gen
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		msg.Err = op(ctx)
		return msg
	}
}

// handleSaved closes the form and reloads the current tab. Other loaded
// tabs are marked stale because an intake or payment change shows up in
// the audit trail. A failed save keeps the form open with the error.
func (m Model) handleSaved(msg SavedMsg) (Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}

	if msg.Err != nil {
		text := util.SingleLine(msg.Err.Error())
		if msg.Deleted {
			m.notice = "Delete failed: " + text
		} else if m.editing != formNone {
			m.form.SetBusy(false)
			m.form.SetError(text)
		}
		if api.IsStatus(msg.Err, http.StatusUnauthorized) {
			err := msg.Err
			return m, func() tea.Msg { return UnauthorizedMsg{Err: err} }
		}
		return m, nil
	}

	if !msg.Deleted {
		m.closeForm()
	}
	m.notice = msg.Notice
	for tab := Tab(0); tab < tabCount; tab++ {
		if tab == m.tab {
			continue
		}
		m.seq[tab]++
		m.loaded[tab] = false
		m.loading[tab] = false
	}
	return m, m.Load(m.tab)
}

// nextEnrollmentID asks the backend for the next enrollment ID. When it
// cannot answer, a local FM number is used.
func nextEnrollmentID(w Writer, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		id, err := w.NextEnrollmentID(ctx)
		if err != nil || id == "" {
			log.Printf("ENROLLMENT_ID_FALLBACK | error=%v", err)
			id = fmt.Sprintf("FM%d", 1000+rand.IntN(9000))
		}
		return enrollmentIDMsg{id: id}
	}
}
