// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Configuration constants for the billing backend.
const (
	// DefaultBaseURL is the base URL of a locally running backend.
	DefaultBaseURL = "http://localhost:8000/api"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond is the default sustained request rate.
	DefaultRequestsPerSecond = 10

	// DefaultBurst is the default request burst size.
	DefaultBurst = 20

	// DefaultPerPage is the page size sent when ListParams.PerPage is zero.
	DefaultPerPage = 10

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024

	// RequestIDHeader carries a per-request UUID for backend log correlation.
	RequestIDHeader = "X-Request-ID"
)

// =============================================================================
// ERRORS
// =============================================================================

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// IsStatus reports whether err is an *APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// errorBody is the shape of an error response.
type errorBody struct {
	Message string `json:"message"`
}

// newAPIError builds an APIError from a failed response body. A body that
// is not JSON yields "Network error"; JSON without a message yields the
// generic status text.
func newAPIError(status int, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return &APIError{Status: status, Message: "Network error"}
	}
	if eb.Message == "" {
		return &APIError{Status: status, Message: fmt.Sprintf("HTTP error! status: %d", status)}
	}
	return &APIError{Status: status, Message: eb.Message}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the billing backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokenFunc  func() string
	userAgent  string
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultBurst),
		userAgent:  "medcare/0.1.0",
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithRateLimit sets the sustained request rate and burst. A non-positive
// rate disables pacing.
func (c *Client) WithRateLimit(perSecond float64, burst int) *Client {
	if perSecond <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// WithTokenFunc sets the source of the bearer token. It is consulted on
// every request so a logout takes effect immediately.
func (c *Client) WithTokenFunc(fn func() string) *Client {
	c.tokenFunc = fn
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Health checks backend availability.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a user and token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	req := LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates token on the backend. The token is passed explicitly
// so callers can clear their own copy before the request completes.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.send(ctx, token, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out meResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListPatientIntakes returns one page of patient intake records.
func (c *Client) ListPatientIntakes(ctx context.Context, p ListParams) (*ListResponse[PatientIntake], error) {
	var out ListResponse[PatientIntake]
	if err := c.do(ctx, http.MethodGet, "/patient-intake", p.query(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBillingPayments returns one page of billing and payment records.
func (c *Client) ListBillingPayments(ctx context.Context, p ListParams) (*ListResponse[BillingPayment], error) {
	var out ListResponse[BillingPayment]
	if err := c.do(ctx, http.MethodGet, "/billing-payments", p.query(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAuditTrail returns one page of merged audit records.
func (c *Client) ListAuditTrail(ctx context.Context, p ListParams) (*ListResponse[AuditRecord], error) {
	var out ListResponse[AuditRecord]
	if err := c.do(ctx, http.MethodGet, "/audit-trail", p.query(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NextEnrollmentID asks the backend for the next free enrollment ID.
func (c *Client) NextEnrollmentID(ctx context.Context) (string, error) {
	var out enrollmentIDResponse
	if err := c.do(ctx, http.MethodGet, "/patient-intake/next-enrollment-id", nil, nil, &out); err != nil {
		return "", err
	}
	id := out.EnrollmentID
	if id == "" {
		id = out.Data.EnrollmentID
	}
	if id == "" {
		return "", errors.New("next-enrollment-id: empty response")
	}
	return id, nil
}

// CreatePatientIntake stores a new intake and returns it.
func (c *Client) CreatePatientIntake(ctx context.Context, req IntakeRequest) (*PatientIntake, error) {
	return writeRecord[PatientIntake](ctx, c, http.MethodPost, "/patient-intake", req)
}

// UpdatePatientIntake replaces the intake with the given ID.
func (c *Client) UpdatePatientIntake(ctx context.Context, id string, req IntakeRequest) (*PatientIntake, error) {
	return writeRecord[PatientIntake](ctx, c, http.MethodPut, "/patient-intake/"+url.PathEscape(id), req)
}

// DeletePatientIntake removes the intake with the given ID.
func (c *Client) DeletePatientIntake(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/patient-intake/"+url.PathEscape(id), nil, nil, nil)
}

// CreateBillingPayment stores a new billing record and returns it.
func (c *Client) CreateBillingPayment(ctx context.Context, req BillingRequest) (*BillingPayment, error) {
	return writeRecord[BillingPayment](ctx, c, http.MethodPost, "/billing-payments", req)
}

// UpdateBillingPayment replaces the billing record with the given ID.
func (c *Client) UpdateBillingPayment(ctx context.Context, id string, req BillingRequest) (*BillingPayment, error) {
	return writeRecord[BillingPayment](ctx, c, http.MethodPut, "/billing-payments/"+url.PathEscape(id), req)
}

// DeleteBillingPayment removes the billing record with the given ID.
func (c *Client) DeleteBillingPayment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/billing-payments/"+url.PathEscape(id), nil, nil, nil)
}

// UpdateAuditRecord changes the status fields of a merged audit record.
// id is the patient intake ID.
func (c *Client) UpdateAuditRecord(ctx context.Context, id string, upd AuditUpdate) (*AuditRecord, error) {
	return writeRecord[AuditRecord](ctx, c, http.MethodPut, "/audit-trail/"+url.PathEscape(id), upd)
}

// writeRecord sends body and decodes the returned record. An empty
// response yields a zero record.
func writeRecord[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	var raw json.RawMessage
	if err := c.do(ctx, method, path, nil, body, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return new(T), nil
	}
	var env recordResponse[T]
	if err := json.Unmarshal(raw, &env); err == nil && env.Data != nil {
		return env.Data, nil
	}
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return &rec, nil
}

// query encodes the parameters. Page and per_page are always sent.
func (p ListParams) query() url.Values {
	q := url.Values{}
	page := p.Page
	if page < 1 {
		page = 1
	}
	perPage := p.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.DateFrom != "" {
		q.Set("date_from", p.DateFrom)
	}
	if p.DateTo != "" {
		q.Set("date_to", p.DateTo)
	}
	return q
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do performs one request with the current token.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token := ""
	if c.tokenFunc != nil {
		token = c.tokenFunc()
	}
	return c.send(ctx, token, method, path, query, body, out)
}

// send performs one request. A nil out discards the response body.
func (c *Client) send(ctx context.Context, token, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Headers may carry the token and bodies may carry passwords; log neither.
	log.Printf("API Request: %s %s id=%s", method, path, requestID)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Printf("API Response: %d %s id=%s (%v)", resp.StatusCode, path, requestID, time.Since(start))

	data, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// readResponse reads the body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}
