// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package records filters and pages record lists held in memory.
//
// Matching is a case-insensitive substring test. Accents are folded so
// "Jose" finds "José".
package records

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/medcare-tui/internal/api"
)

// Field extracts the searchable values of an item.
type Field[T any] func(item T) []string

// Filter returns the items whose fields contain term. An empty or blank
// term returns items unchanged.
func Filter[T any](items []T, term string, fields Field[T]) []T {
	needle := fold(strings.TrimSpace(term))
	if needle == "" {
		return items
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		for _, v := range fields(item) {
			if strings.Contains(fold(v), needle) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// fold lowercases s and strips combining marks.
func fold(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// =============================================================================
// PAGINATION
// =============================================================================

// Page is one page of a list.
type Page[T any] struct {
	Items       []T
	CurrentPage int
	PerPage     int
	Total       int
	LastPage    int
}

// Paginate slices items into pages of perPage and returns the requested
// page. The page number is clamped into [1, LastPage]; LastPage is at
// least 1 even when items is empty. A perPage below 1 means 1.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if perPage < 1 {
		perPage = 1
	}
	total := len(items)
	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	if page < 1 {
		page = 1
	}
	if page > lastPage {
		page = lastPage
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > total {
		end = total
	}

	return Page[T]{
		Items:       items[start:end],
		CurrentPage: page,
		PerPage:     perPage,
		Total:       total,
		LastPage:    lastPage,
	}
}

// HasPrev reports whether a previous page exists.
func (p Page[T]) HasPrev() bool {
	return p.CurrentPage > 1
}

// HasNext reports whether a following page exists.
func (p Page[T]) HasNext() bool {
	return p.CurrentPage < p.LastPage
}

// Range returns the 1-based positions of the first and last item shown,
// or 0, 0 for an empty page.
func (p Page[T]) Range() (from, to int) {
	if len(p.Items) == 0 {
		return 0, 0
	}
	from = (p.CurrentPage-1)*p.PerPage + 1
	return from, from + len(p.Items) - 1
}

// =============================================================================
// SEARCH FIELDS
// =============================================================================

// PatientFields searches name, enrollment ID and member ID.
func PatientFields(p api.PatientIntake) []string {
	return []string{p.PatientName, p.EnrollmentID, p.MemberID}
}

// BillingFields searches patient name, enrollment ID and claim number.
func BillingFields(b api.BillingPayment) []string {
	return []string{b.PatientName, b.EnrollmentID, b.ClaimNumber}
}

// AuditFields searches patient name, enrollment ID, member ID and every
// claim number on the record.
func AuditFields(r api.AuditRecord) []string {
	return append([]string{r.PatientName, r.EnrollmentID, r.MemberID}, r.ClaimNumbers()...)
}
