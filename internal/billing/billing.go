// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package billing derives the financial fields shown beside claims.
//
// Money is carried as integer cents. The backend sends decimal strings
// ("123.45") or bare numbers; ParseAmount turns either into Cents.
package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jeranaias/medcare-tui/internal/api"
)

// Cents is an amount of US currency in cents.
type Cents int64

// ErrInvalidAmount is returned for text that is not a decimal amount.
var ErrInvalidAmount = errors.New("invalid amount")

// printer groups thousands the way US statements do.
var printer = message.NewPrinter(language.AmericanEnglish)

// =============================================================================
// PARSING & FORMATTING
// =============================================================================

// ParseAmount parses a decimal amount. Blank input is zero. A leading "$"
// and thousands separators are accepted. Digits past the cent are rounded
// half away from zero.
func ParseAmount(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	cents := int64(0)
	switch {
	case len(frac) == 1:
		cents = int64(frac[0]-'0') * 10
	case len(frac) >= 2:
		cents = int64(frac[0]-'0')*10 + int64(frac[1]-'0')
		if len(frac) > 2 && frac[2] >= '5' {
			cents++
		}
	}

	total := dollars*100 + cents
	if neg {
		total = -total
	}
	return Cents(total), nil
}

// MustAmount parses s and treats malformed input as zero. Listing views
// use it so one bad cell does not hide a whole page.
func MustAmount(t api.Text) Cents {
	c, err := ParseAmount(t.String())
	if err != nil {
		return 0
	}
	return c
}

// FormatUSD renders c as "$1,234.50", with a leading "-" when negative.
func FormatUSD(c Cents) string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%s.%02d", sign, printer.Sprintf("%d", v/100), v%100)
}

// FormatDecimal renders c as "1234.50", the form the backend accepts.
func FormatDecimal(c Cents) string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// String implements fmt.Stringer.
func (c Cents) String() string {
	return FormatUSD(c)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// =============================================================================
// DERIVED FIELDS
// =============================================================================

// PatientResponsibility is what the patient owes after the payer:
// allowed minus insurance paid, never below zero.
func PatientResponsibility(allowed, insurancePaid Cents) Cents {
	if d := allowed - insurancePaid; d > 0 {
		return d
	}
	return 0
}

// TotalPaid is the sum of insurance and patient payments.
func TotalPaid(insurancePaid, patientPaid Cents) Cents {
	return insurancePaid + patientPaid
}

// BalanceDue is the total charge less everything paid. It goes negative
// on overpayment.
func BalanceDue(totalCharge, insurancePaid, patientPaid Cents) Cents {
	return totalCharge - TotalPaid(insurancePaid, patientPaid)
}

// Claim holds the parsed money fields of one billing payment.
type Claim struct {
	TotalClaim            Cents
	Allowed               Cents
	InsurancePaid         Cents
	PatientResponsibility Cents
	TotalPaidBalance      Cents
}

// ClaimOf parses the money fields of p. A blank patient responsibility is
// derived from allowed and insurance paid.
func ClaimOf(p api.BillingPayment) Claim {
	c := Claim{
		TotalClaim:       MustAmount(p.TotalClaimAmount),
		Allowed:          MustAmount(p.AllowedAmount),
		InsurancePaid:    MustAmount(p.InsurancePaid),
		TotalPaidBalance: MustAmount(p.TotalPaidBalance),
	}
	if p.PatientResponsibility == "" {
		c.PatientResponsibility = PatientResponsibility(c.Allowed, c.InsurancePaid)
	} else {
		c.PatientResponsibility = MustAmount(p.PatientResponsibility)
	}
	return c
}

// =============================================================================
// TOTALS
// =============================================================================

// Totals is the overall summary shown under the audit trail.
type Totals struct {
	TotalClaim            Cents
	Allowed               Cents
	InsurancePaid         Cents
	PatientResponsibility Cents
	Payments              int
}

// Add folds one claim into the totals.
func (t *Totals) Add(c Claim) {
	t.TotalClaim += c.TotalClaim
	t.Allowed += c.Allowed
	t.InsurancePaid += c.InsurancePaid
	t.PatientResponsibility += c.PatientResponsibility
	t.Payments++
}

// AuditTotals sums every billing payment of every record.
func AuditTotals(records []api.AuditRecord) Totals {
	var t Totals
	for _, r := range records {
		for _, p := range r.BillingPayments {
			t.Add(ClaimOf(p))
		}
	}
	return t
}

// PaymentTotals sums a flat list of billing payments.
func PaymentTotals(payments []api.BillingPayment) Totals {
	var t Totals
	for _, p := range payments {
		t.Add(ClaimOf(p))
	}
	return t
}
