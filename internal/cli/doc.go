// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses the medcare command line and implements the
// non-interactive commands.
//
// Commands:
//
//	medcare                     Start the dashboard (default)
//	medcare login               Sign in from the terminal
//	medcare logout              Sign out and revoke the stored token
//	medcare whoami              Show the signed-in user
//	medcare status              Show backend, session and storage status
//	medcare config [sub]        Show, get or set configuration
//	medcare version             Show version information
//
// Every command accepts --json for machine-readable output.
package cli
