// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "medcare"

// Session end reasons used as the "reason" label.
const (
	EndLogout  = "logout"
	EndTimeout = "timeout"
	EndQuit    = "quit"
)

// Login results used as the "result" label.
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
	LoginLocked  = "locked"
	LoginError   = "error"
)

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds every collector medcare exports.
type Metrics struct {
	registry *prometheus.Registry

	watchdogResets   prometheus.Counter
	watchdogWarnings prometheus.Counter
	watchdogExpiries prometheus.Counter
	countdownEnds    prometheus.Counter
	sessionsActive   prometheus.Gauge
	sessionsEnded    *prometheus.CounterVec
	logins           *prometheus.CounterVec
	apiRequests      *prometheus.CounterVec
	apiDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on a fresh registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		watchdogResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "watchdog",
			Name:      "resets_total",
			Help:      "Activity events that pushed the inactivity deadlines back.",
		}),
		watchdogWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "watchdog",
			Name:      "warnings_total",
			Help:      "Inactivity warnings shown.",
		}),
		watchdogExpiries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "watchdog",
			Name:      "expiries_total",
			Help:      "Sessions ended by inactivity.",
		}),
		countdownEnds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "countdown_expiries_total",
			Help:      "Sessions ended by the warning countdown before the watchdog fired.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "1 while a user is signed in.",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "ended_total",
			Help:      "Sessions ended, by reason.",
		}, []string{"reason"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts, by result.",
		}, []string{"result"}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Backend requests, by status code and method.",
		}, []string{"code", "method"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.watchdogResets,
		m.watchdogWarnings,
		m.watchdogExpiries,
		m.countdownEnds,
		m.sessionsActive,
		m.sessionsEnded,
		m.logins,
		m.apiRequests,
		m.apiDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// =============================================================================
// RECORDING
// =============================================================================

// WatchdogReset counts one activity reset.
func (m *Metrics) WatchdogReset() {
	if m != nil {
		m.watchdogResets.Inc()
	}
}

// WatchdogWarned counts one inactivity warning.
func (m *Metrics) WatchdogWarned() {
	if m != nil {
		m.watchdogWarnings.Inc()
	}
}

// WatchdogExpired counts one inactivity expiry.
func (m *Metrics) WatchdogExpired() {
	if m != nil {
		m.watchdogExpiries.Inc()
	}
}

// CountdownExpired counts one session ended by the warning countdown.
func (m *Metrics) CountdownExpired() {
	if m != nil {
		m.countdownEnds.Inc()
	}
}

// SessionStarted marks a user as signed in.
func (m *Metrics) SessionStarted() {
	if m != nil {
		m.sessionsActive.Set(1)
	}
}

// SessionEnded marks the user as signed out for reason.
func (m *Metrics) SessionEnded(reason string) {
	if m != nil {
		m.sessionsActive.Set(0)
		m.sessionsEnded.WithLabelValues(reason).Inc()
	}
}

// LoginAttempt counts one login with the given result.
func (m *Metrics) LoginAttempt(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

// InstrumentRoundTripper wraps next so every backend request is counted
// and timed. A nil next wraps http.DefaultTransport.
func (m *Metrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if m == nil {
		return next
	}
	return promhttp.InstrumentRoundTripperCounter(m.apiRequests,
		promhttp.InstrumentRoundTripperDuration(m.apiDuration, next))
}
