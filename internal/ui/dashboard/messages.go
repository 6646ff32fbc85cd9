// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"github.com/jeranaias/medcare-tui/internal/api"
)

// LoadedMsg carries the records fetched for one tab. Only the slice that
// matches Tab is set. Total is the count the backend reported, which is
// larger than the slice when the load stopped at MaxRecords.
type LoadedMsg struct {
	Tab      Tab
	Seq      int
	Patients []api.PatientIntake
	Payments []api.BillingPayment
	Audit    []api.AuditRecord
	Total    int
	Err      error
}

// SavedMsg reports the outcome of a create, update or delete on Tab.
type SavedMsg struct {
	Tab     Tab
	Notice  string
	Deleted bool
	Err     error

	gen int
}

// enrollmentIDMsg carries the enrollment ID for a new intake.
type enrollmentIDMsg struct {
	id string
}

// UnauthorizedMsg is emitted when the backend rejects the session token.
// The root model ends the session.
type UnauthorizedMsg struct {
	Err error
}
