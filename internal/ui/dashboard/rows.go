// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"strconv"
	"strings"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/billing"
	"github.com/jeranaias/medcare-tui/internal/ui/components"
)

// =============================================================================
// COLUMNS
// =============================================================================

var patientColumns = []components.Column{
	{Title: "Patient", MinWidth: 16, Weight: 3},
	{Title: "Enrollment", MinWidth: 10, Weight: 1},
	{Title: "Member ID", MinWidth: 10, Weight: 1, Optional: true},
	{Title: "DOS", MinWidth: 10},
	{Title: "Insurance", MinWidth: 10, Weight: 2, Optional: true},
	{Title: "DME Items", MinWidth: 12, Weight: 3, Optional: true},
	{Title: "Status", MinWidth: 10},
}

var billingColumns = []components.Column{
	{Title: "Patient", MinWidth: 16, Weight: 3},
	{Title: "Claim #", MinWidth: 10, Weight: 1},
	{Title: "Payer", MinWidth: 10, Weight: 2, Optional: true},
	{Title: "Billed", MinWidth: 11},
	{Title: "Ins. Paid", MinWidth: 11, Optional: true},
	{Title: "Pt. Resp.", MinWidth: 11, Optional: true},
	{Title: "Status", MinWidth: 10, Weight: 1},
}

var auditColumns = []components.Column{
	{Title: "Patient", MinWidth: 16, Weight: 3},
	{Title: "Enrollment", MinWidth: 10, Weight: 1, Optional: true},
	{Title: "Claims", MinWidth: 12, Weight: 2},
	{Title: "Billed", MinWidth: 11},
	{Title: "Balance Due", MinWidth: 11, Optional: true},
	{Title: "Status", MinWidth: 10, Weight: 1},
}

// =============================================================================
// ROWS
// =============================================================================

func patientRows(items []api.PatientIntake) [][]string {
	rows := make([][]string, len(items))
	for i, p := range items {
		status := "Incomplete"
		if p.Complete() {
			status = "Complete"
		}
		rows[i] = []string{
			p.PatientName,
			p.EnrollmentID,
			p.MemberID,
			p.DateOfService,
			p.Insurance,
			p.DMEItems,
			status,
		}
	}
	return rows
}

func billingRows(items []api.BillingPayment) [][]string {
	rows := make([][]string, len(items))
	for i, b := range items {
		c := billing.ClaimOf(b)
		rows[i] = []string{
			b.PatientName,
			orDash(b.ClaimNumber),
			b.Payer,
			billing.FormatUSD(c.TotalClaim),
			billing.FormatUSD(c.InsurancePaid),
			billing.FormatUSD(c.PatientResponsibility),
			orDash(b.BillingStatus),
		}
	}
	return rows
}

func auditRows(items []api.AuditRecord) [][]string {
	rows := make([][]string, len(items))
	for i, r := range items {
		t := billing.PaymentTotals(r.BillingPayments)
		billed := t.TotalClaim
		if r.TotalBilledAmount != "" {
			billed = billing.MustAmount(r.TotalBilledAmount)
		}
		rows[i] = []string{
			r.PatientName,
			r.EnrollmentID,
			claimSummary(r.ClaimNumbers()),
			billing.FormatUSD(billed),
			billing.FormatUSD(billing.MustAmount(r.TotalBalanceDue)),
			orDash(r.OverallBillingStatus),
		}
	}
	return rows
}

// claimSummary shows the first claim number and how many follow.
func claimSummary(claims []string) string {
	switch len(claims) {
	case 0:
		return "-"
	case 1:
		return claims[0]
	default:
		return claims[0] + " +" + strconv.Itoa(len(claims)-1)
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
