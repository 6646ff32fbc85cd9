// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides client-held credential persistence for medcare.
//
// A signed-in session keeps two values between runs: the bearer token and
// the user it belongs to. They live in a single SQLite table so a logout
// can remove both in one statement.
//
// # Key Types
//
//   - CredentialStore: Key/value store backed by SQLite
//
// # Usage
//
//	store, err := storage.OpenCredentialStore("")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Set(ctx, storage.KeyAuthToken, token)
//	token := store.Token()
//
// # Storage Location
//
// Credentials are stored in ~/.medcare/credentials.db with 0600 permissions.
package storage
