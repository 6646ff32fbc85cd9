// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the operational HTTP endpoint of a running terminal.
//
// The server is off unless [metrics] listen_addr is set. It never serves
// patient or billing data.
//
// # Endpoints
//
//   - GET /metrics - Prometheus scrape endpoint
//   - GET /healthz - Liveness with version and uptime
//   - GET /session - Phase and remaining time of the current session
//
// # Security
//
//   - Optional bearer token, compared in constant time
//   - Optional IP allowlist
//   - Per-IP sliding window rate limit
//   - Security headers and panic recovery on every route
//
// # Usage
//
//	srv := server.New(cfg.Metrics.ListenAddr,
//		server.WithMetrics(metrics.Handler()),
//		server.WithSessionStatus(ctrl.Status),
//		server.WithAuth(&server.AuthConfig{Enabled: true, BearerToken: token}),
//	)
//	go srv.Serve(ctx)
package server
