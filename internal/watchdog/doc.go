// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watchdog implements the activity-driven session-timeout watchdog.
//
// The watchdog is two cooperating pieces:
//
//   - Scheduler owns the warning and expiry deadlines, both anchored to the
//     most recent activity, and invokes the caller's callbacks when a
//     deadline elapses with no intervening Reset.
//   - Monitor listens to a document-level Source for user-interaction events
//     and resets the Scheduler on every one of them while enabled.
//
// # States
//
//	Idle --enable/reset--> Armed
//	Armed --activity--> Armed
//	Armed --warning deadline--> Warned
//	Warned --activity--> Armed
//	Warned --expiry deadline--> Expired
//	Armed --expiry deadline (no warning scheduled)--> Expired
//	Expired --reset (re-login)--> Armed
//
// # Ordering
//
// Timer expirations are handed to a Dispatcher before any watchdog state is
// touched. A TUI passes a dispatcher that posts into its event loop so that
// firings never interleave with Reset or Clear. Every Reset and Clear bumps
// a generation counter, and a firing from an older generation is dropped
// when it is finally run, so a timer armed before a reset or before teardown
// can never reach a callback.
//
// # Usage
//
//	src := watchdog.NewBroadcaster()
//	mon := watchdog.Watch(src, watchdog.Config{
//	    Timeout:     15 * time.Minute,
//	    WarningTime: time.Minute,
//	    Enabled:     true,
//	    OnWarning:   showPrompt,
//	    OnTimeout:   logout,
//	})
//	defer mon.Close()
//
//	src.Emit(watchdog.EventKeyDown) // any activity pushes both deadlines
package watchdog
