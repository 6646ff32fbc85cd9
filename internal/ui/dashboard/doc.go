// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dashboard provides the records view shown after sign-in.
//
// The dashboard has three tabs: patient intake, billing and payments, and
// the audit trail that merges the two. Each tab loads its records once,
// walking the backend's pages, then filters and pages them locally:
//
//	tab / shift+tab   switch tab (1, 2, 3 jump directly)
//	/                 filter by name, enrollment ID, member ID or claim
//	[ ]               previous / next page
//	r                 reload the current tab
//	n                 new intake or billing record
//	e / enter         edit the selected record (audit: status and auth #)
//	x                 delete the selected intake or billing record
//	c                 patient tab: show complete intakes only
//	f                 audit tab: date of service and status filter
//
// Forms are built from components.Form. Saves reload the current tab and
// mark the others stale.
//
// Signing out and quitting are handled by the root model.
package dashboard
