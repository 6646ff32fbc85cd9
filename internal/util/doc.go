// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across medcare.
//
// # Key Functions
//
// Text layout (display-width aware, via go-runewidth):
//   - Truncate: Fit a string into a column with an ellipsis
//   - SingleLine: Collapse whitespace so free text fits in one row
//
// Durations:
//   - FormatDuration: "14m 30s" style durations for the status bar
//   - FormatClock: "M:SS" countdowns for the timeout prompt
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	cell := util.Truncate(util.SingleLine(patient.PatientName), 20)
//	left := util.FormatClock(59) // "0:59"
//	err := util.AtomicWriteFile(path, data, 0600)
package util
