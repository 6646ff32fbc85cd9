// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.WatchdogReset()
	m.WatchdogReset()
	m.WatchdogWarned()
	m.WatchdogExpired()
	m.CountdownExpired()
	m.LoginAttempt(LoginSuccess)
	m.LoginAttempt(LoginFailure)
	m.LoginAttempt(LoginFailure)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.watchdogResets))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.watchdogWarnings))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.watchdogExpiries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.countdownEnds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(LoginSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(LoginFailure)))
}

func TestMetrics_SessionGauge(t *testing.T) {
	m := NewMetrics()

	m.SessionStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsActive))

	m.SessionEnded(EndTimeout)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsEnded.WithLabelValues(EndTimeout)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sessionsEnded.WithLabelValues(EndLogout)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.WatchdogReset()
	m.WatchdogWarned()
	m.WatchdogExpired()
	m.CountdownExpired()
	m.SessionStarted()
	m.SessionEnded(EndQuit)
	m.LoginAttempt(LoginError)

	assert.Nil(t, m.Registry())
	assert.Equal(t, http.DefaultTransport, m.InstrumentRoundTripper(nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_InstrumentRoundTripper(t *testing.T) {
	m := NewMetrics()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer backend.Close()

	client := &http.Client{Transport: m.InstrumentRoundTripper(nil)}
	resp, err := client.Get(backend.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("418", "get")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.WatchdogExpired()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "medcare_watchdog_expiries_total 1"))
	assert.Contains(t, string(body), "go_goroutines")
}
