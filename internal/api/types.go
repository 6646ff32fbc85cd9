// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// =============================================================================
// SCALARS
// =============================================================================

// Text is a scalar the backend may send as a JSON string or a JSON number.
// IDs and money values both arrive this way. null decodes to "".
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*t = Text(n.String())
	return nil
}

// String returns the raw value.
func (t Text) String() string {
	return string(t)
}

// =============================================================================
// AUTH
// =============================================================================

// User is an authenticated back-office user.
type User struct {
	ID    Text   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// meResponse is returned by GET /auth/me.
type meResponse struct {
	User User `json:"user"`
}

// =============================================================================
// LISTS
// =============================================================================

// ListParams are the query parameters shared by every list endpoint.
// Zero values are omitted, except Page and PerPage which default to 1 and 10.
type ListParams struct {
	Page     int
	PerPage  int
	Search   string
	Status   string
	DateFrom string
	DateTo   string
}

// Pagination describes one page of a list response.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// ListResponse is the envelope of every list endpoint.
type ListResponse[T any] struct {
	Success    bool       `json:"success"`
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
	Message    string     `json:"message"`
}

// =============================================================================
// RECORDS
// =============================================================================

// PatientIntake is one patient intake record.
type PatientIntake struct {
	ID                  Text     `json:"id"`
	EnrollmentID        string   `json:"enrollment_id"`
	PatientName         string   `json:"patient_name"`
	DOB                 string   `json:"dob"`
	Gender              string   `json:"gender"`
	MemberID            string   `json:"member_id"`
	Phone               string   `json:"phone"`
	Address             string   `json:"address"`
	DateOfService       string   `json:"date_of_service"`
	Insurance           string   `json:"insurance"`
	Vendor              string   `json:"vendor"`
	PrimaryPhysician    string   `json:"primary_physician"`
	PhysicianNPI        string   `json:"physician_npi"`
	PrescribingProvider string   `json:"prescribing_provider"`
	DiagnosisICD10      string   `json:"diagnosis_icd10"`
	DateOfPrescription  string   `json:"date_of_prescription"`
	DMEItems            string   `json:"dme_items"`
	HCPCSCodes          []string `json:"hcpcs_codes"`
	NumberOfItems       Text     `json:"number_of_items"`
	MedicalNecessity    bool     `json:"medical_necessity_yn"`
	PriorAuth           bool     `json:"prior_auth_yn"`
	AuthNumber          string   `json:"auth_number"`
	CarrierService      string   `json:"carrier_service"`
	TrackingNumber      string   `json:"tracking_number"`
	EstimatedDelivery   string   `json:"estimated_delivery_date"`
	DateOfShipment      string   `json:"date_of_shipment"`
	ProofOfDelivery     string   `json:"proof_of_delivery"`
	AdditionalNotes     string   `json:"additional_notes"`
}

// Complete reports whether the intake has every field required before
// billing: patient, item, service date and shipment tracking.
func (p PatientIntake) Complete() bool {
	return p.PatientName != "" && p.DMEItems != "" && p.DateOfService != "" && p.TrackingNumber != ""
}

// BillingPayment is one claim and its payments.
type BillingPayment struct {
	ID                    Text   `json:"id"`
	PatientName           string `json:"patient_name"`
	EnrollmentID          string `json:"enrollment_id"`
	MemberID              string `json:"member_id"`
	DMEItem               string `json:"dme_item"`
	HCPCS                 string `json:"hcpcs"`
	Payer                 string `json:"payer"`
	TotalClaimAmount      Text   `json:"total_claim_amount"`
	AllowedAmount         Text   `json:"allowed_amount"`
	InsurancePaid         Text   `json:"insurance_paid"`
	DatePaid              string `json:"date_paid"`
	IsPaid                string `json:"is_paid"`
	PatientResponsibility Text   `json:"patient_responsibility"`
	TotalPaidBalance      Text   `json:"total_paid_balance"`
	Notes                 string `json:"notes"`
	BillingStatus         string `json:"billing_status"`
	ClaimNumber           string `json:"claim_number"`
	DateClaimSubmission   string `json:"date_claim_submission"`
	DateOfService         string `json:"date_of_service"`
	AuthorizationYN       string `json:"authorization_yn"`
	PatientIntakeID       Text   `json:"patient_intake_id"`
}

// AuditRecord merges a patient intake with all of its billing payments.
type AuditRecord struct {
	PatientIntakeID            Text             `json:"patient_intake_id"`
	EnrollmentID               string           `json:"enrollment_id"`
	PatientName                string           `json:"patient_name"`
	DOB                        string           `json:"dob"`
	MemberID                   string           `json:"member_id"`
	DateOfService              string           `json:"date_of_service"`
	Insurance                  string           `json:"insurance"`
	DiagnosisICD10             string           `json:"diagnosis_icd10"`
	DMEItems                   string           `json:"dme_items"`
	HCPCSCodes                 []string         `json:"hcpcs_codes"`
	PriorAuth                  bool             `json:"prior_auth_yn"`
	AuthNumber                 string           `json:"auth_number"`
	BillingPayments            []BillingPayment `json:"billing_payments"`
	TotalBilledAmount          Text             `json:"total_billed_amount"`
	TotalInsurancePaid         Text             `json:"total_insurance_paid"`
	TotalPatientResponsibility Text             `json:"total_patient_responsibility"`
	TotalBalanceDue            Text             `json:"total_balance_due"`
	OverallBillingStatus       string           `json:"overall_billing_status"`
}

// ClaimNumbers returns the claim numbers of every payment on the record.
func (r AuditRecord) ClaimNumbers() []string {
	out := make([]string, 0, len(r.BillingPayments))
	for _, p := range r.BillingPayments {
		if p.ClaimNumber != "" {
			out = append(out, p.ClaimNumber)
		}
	}
	return out
}

// =============================================================================
// WRITES
// =============================================================================

// IntakeRequest is the body of POST /patient-intake and PUT
// /patient-intake/{id}. The backend groups the fields by form section.
type IntakeRequest struct {
	EnrollmentID string          `json:"enrollment_id"`
	Patient      IntakePatient   `json:"patient_info"`
	Selection    IntakeSelection `json:"selection_info"`
	Physician    IntakePhysician `json:"physician_info"`
	Clinical     IntakeClinical  `json:"clinical_info"`
	Delivery     IntakeDelivery  `json:"delivery_tracking"`
}

// IntakePatient holds patient demographics.
type IntakePatient struct {
	PatientName   string `json:"patient_name"`
	DOB           string `json:"dob"`
	Gender        string `json:"gender"`
	MemberID      string `json:"member_id"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	DateOfService string `json:"date_of_service"`
}

// IntakeSelection holds the payer and supplier.
type IntakeSelection struct {
	Insurance string `json:"insurance"`
	Vendor    string `json:"vendor"`
}

// IntakePhysician holds the ordering physician.
type IntakePhysician struct {
	PrimaryPhysician    string `json:"primary_physician"`
	PhysicianNPI        string `json:"physician_npi"`
	PrescribingProvider string `json:"prescribing_provider"`
}

// IntakeClinical holds the order itself.
type IntakeClinical struct {
	DiagnosisICD10     string   `json:"diagnosis_icd10"`
	DateOfPrescription string   `json:"date_of_prescription"`
	DMEItems           string   `json:"dme_items"`
	NumberOfItems      int      `json:"number_of_items"`
	HCPCSCodes         []string `json:"hcpcs_codes"`
	MedicalNecessity   bool     `json:"medical_necessity_yn"`
	PriorAuth          bool     `json:"prior_auth_yn"`
	AuthNumber         string   `json:"auth_number"`
}

// IntakeDelivery holds shipment tracking.
type IntakeDelivery struct {
	DateOfShipment    string `json:"date_of_shipment"`
	EstimatedDelivery string `json:"estimated_delivery_date"`
	CarrierService    string `json:"carrier_service"`
	TrackingNumber    string `json:"tracking_number"`
	ProofOfDelivery   string `json:"proof_of_delivery"`
	AdditionalNotes   string `json:"additional_notes"`
}

// BillingRequest is the body of POST /billing-payments and PUT
// /billing-payments/{id}. Money values are decimal strings.
type BillingRequest struct {
	PatientName           string `json:"patient_name"`
	EnrollmentID          string `json:"enrollment_id"`
	MemberID              string `json:"member_id"`
	DMEItem               string `json:"dme_item"`
	HCPCS                 string `json:"hcpcs"`
	Payer                 string `json:"payer"`
	TotalClaimAmount      string `json:"total_claim_amount"`
	AllowedAmount         string `json:"allowed_amount"`
	InsurancePaid         string `json:"insurance_paid"`
	DatePaid              string `json:"date_paid"`
	IsPaid                string `json:"is_paid"`
	Notes                 string `json:"notes"`
	AuthorizationYN       string `json:"authorization_yn"`
	BillingStatus         string `json:"billing_status"`
	DateOfService         string `json:"date_of_service"`
	DateClaimSubmission   string `json:"date_claim_submission"`
	ClaimNumber           string `json:"claim_number"`
	PatientResponsibility string `json:"patient_responsibility"`
	TotalPaidBalance      string `json:"total_paid_balance"`
}

// AuditUpdate is the body of PUT /audit-trail/{id}. Empty fields are left
// unchanged by the backend.
type AuditUpdate struct {
	OverallBillingStatus string `json:"overall_billing_status,omitempty"`
	AuthNumber           string `json:"auth_number,omitempty"`
}

// enrollmentIDResponse is returned by GET /patient-intake/next-enrollment-id.
type enrollmentIDResponse struct {
	EnrollmentID string `json:"enrollment_id"`
	Data         struct {
		EnrollmentID string `json:"enrollment_id"`
	} `json:"data"`
}

// recordResponse unwraps a write response. The backend answers either
// with the record itself or with {"success", "data", "message"}.
type recordResponse[T any] struct {
	Data *T `json:"data"`
}

// Health is returned by GET /health.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
