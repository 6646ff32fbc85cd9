// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides Prometheus metrics for medcare.
//
// Metrics are registered on a private registry rather than the global
// default so tests can build as many independent instances as they need.
//
// # Key Types
//
//   - Metrics: counters and histograms for the watchdog, sessions, logins
//     and backend requests
//
// # Usage
//
//	m := telemetry.NewMetrics()
//	client.WithHTTPClient(&http.Client{Transport: m.InstrumentRoundTripper(nil)})
//	m.WatchdogExpired()
//	http.Handle("/metrics", m.Handler())
//
// Every method is safe to call on a nil *Metrics, which records nothing.
//
// # Privacy
//
// Metrics carry counts and latencies only. No user names, emails or record
// contents are ever used as label values.
package telemetry
