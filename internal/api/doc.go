// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the REST client for the FMmedCare billing backend.
//
// The backend exposes JSON endpoints under a single base URL (by default
// http://localhost:8000/api). Authenticated calls carry a bearer token
// supplied by the caller; the client never stores credentials itself.
//
// # Key Types
//
//   - Client: HTTP client with request pacing and request IDs
//   - APIError: Non-2xx response from the backend
//   - ListParams / Pagination: Paged list queries
//   - PatientIntake, BillingPayment, AuditRecord: Record types
//   - IntakeRequest, BillingRequest, AuditUpdate: Write bodies
//
// # Usage
//
//	client := api.NewClient(api.DefaultBaseURL).
//	    WithTokenFunc(store.Token)
//
//	page, err := client.ListBillingPayments(ctx, api.ListParams{Page: 1, PerPage: 25})
//	if err != nil {
//	    var apiErr *api.APIError
//	    if errors.As(err, &apiErr) && apiErr.Status == 401 {
//	        // Token rejected
//	    }
//	}
package api
