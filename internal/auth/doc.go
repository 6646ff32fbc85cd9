// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth signs users in and out of the billing backend.
//
// Manager owns the current user. Credentials survive restarts in the
// credential store, and Restore revalidates them against the backend on
// startup. A built-in demo account works without a backend.
//
// Login order:
//
//  1. Refuse while the email is locked out after repeated failures.
//  2. Accept the demo account if the password matches its PBKDF2 hash.
//  3. Otherwise ask the backend.
//
// Logout always clears local credentials, even when the backend cannot be
// reached.
package auth
