// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watchdog

import "time"

const (
	// DefaultTimeout is the inactivity period before a forced logout.
	DefaultTimeout = 15 * time.Minute

	// DefaultWarningTime is the lead time before expiry for the warning.
	DefaultWarningTime = time.Minute
)

// Config is fixed for one activation of the watchdog.
type Config struct {
	// Timeout is the inactivity duration before OnTimeout, measured from
	// the last activity.
	Timeout time.Duration

	// WarningTime is how long before expiry OnWarning fires. When it is not
	// shorter than Timeout the warning is never scheduled.
	WarningTime time.Duration

	// Enabled is the master switch. It is only consulted by Watch; after
	// that, Monitor.SetEnabled drives the watchdog.
	Enabled bool

	// OnTimeout is invoked once when the expiry deadline elapses.
	OnTimeout func()

	// OnWarning is invoked once when the warning deadline elapses. Optional.
	OnWarning func()
}

// WarningScheduled reports whether a Reset under this config arms the
// warning timer. A lead time that is not shorter than the timeout silently
// drops the warning stage; only the hard expiry remains.
func (c Config) WarningScheduled() bool {
	return c.OnWarning != nil && c.WarningTime < c.Timeout
}

// WarningDelay is the time from a reset to the warning deadline.
func (c Config) WarningDelay() time.Duration {
	return c.Timeout - c.WarningTime
}
