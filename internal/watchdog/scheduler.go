// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watchdog

import (
	"sync"
	"time"
)

// =============================================================================
// STATE
// =============================================================================

// State is the scheduler's position in the timeout state machine.
type State int

const (
	// StateIdle means no timers are pending (disabled or cleared).
	StateIdle State = iota
	// StateArmed means the expiry timer, and possibly the warning timer, is pending.
	StateArmed
	// StateWarned means the warning fired and the expiry timer is still pending.
	StateWarned
	// StateExpired means the expiry fired. Only a Reset leaves this state.
	StateExpired
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateArmed:
		return "ARMED"
	case StateWarned:
		return "WARNED"
	case StateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Pending returns true if an expiry deadline is outstanding.
func (s State) Pending() bool {
	return s == StateArmed || s == StateWarned
}

type timerKind int

const (
	warningTimer timerKind = iota
	expiryTimer
)

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler maintains the warning and expiry deadlines relative to the last
// activity and invokes the configured callbacks when they elapse.
type Scheduler struct {
	mu sync.Mutex

	clock    Clock
	dispatch Dispatcher
	onReset  func()

	// Fixed for the life of the scheduler.
	timeout     time.Duration
	warningTime time.Duration
	onTimeout   func()
	onWarning   func()

	// Watchdog state
	generation   uint64
	state        State
	lastActivity time.Time
	warningAt    time.Time
	expiryAt     time.Time
	warning      Timer
	expiry       Timer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDispatcher routes timer expirations through d.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Scheduler) {
		if d != nil {
			s.dispatch = d
		}
	}
}

// WithResetHook registers fn to run after every Reset, outside the lock.
func WithResetHook(fn func()) Option {
	return func(s *Scheduler) {
		s.onReset = fn
	}
}

// NewScheduler creates an idle scheduler for cfg. Nothing is scheduled
// until the first Reset.
func NewScheduler(cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:       SystemClock,
		dispatch:    DirectDispatch,
		timeout:     cfg.Timeout,
		warningTime: cfg.WarningTime,
		onTimeout:   cfg.OnTimeout,
		onWarning:   cfg.OnWarning,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset cancels any pending timers, records now as the last activity and
// schedules both deadlines again. The warning is only scheduled when a
// warning callback exists and its lead time is shorter than the timeout.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.stopTimersLocked()
	s.generation++
	gen := s.generation

	now := s.clock.Now()
	s.lastActivity = now
	s.state = StateArmed
	s.warningAt = time.Time{}

	if s.onWarning != nil && s.warningTime < s.timeout {
		delay := s.timeout - s.warningTime
		s.warningAt = now.Add(delay)
		s.warning = s.clock.AfterFunc(delay, func() {
			s.deliver(gen, warningTimer)
		})
	}

	s.expiryAt = now.Add(s.timeout)
	s.expiry = s.clock.AfterFunc(s.timeout, func() {
		s.deliver(gen, expiryTimer)
	})

	hook := s.onReset
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Clear cancels both pending timers without rescheduling. Safe to call at
// any time, including when nothing is pending.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimersLocked()
	s.generation++
	s.state = StateIdle
	s.warningAt = time.Time{}
	s.expiryAt = time.Time{}
}

// stopTimersLocked cancels outstanding timers. Caller holds s.mu.
func (s *Scheduler) stopTimersLocked() {
	if s.warning != nil {
		s.warning.Stop()
		s.warning = nil
	}
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
}

// deliver hands an expiration to the dispatcher.
func (s *Scheduler) deliver(gen uint64, kind timerKind) {
	s.dispatch(func() {
		s.fire(gen, kind)
	})
}

// fire applies an expiration and runs its callback. Bookkeeping completes
// before the callback is invoked.
func (s *Scheduler) fire(gen uint64, kind timerKind) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}

	var callback func()
	switch kind {
	case warningTimer:
		if s.state != StateArmed {
			s.mu.Unlock()
			return
		}
		s.state = StateWarned
		s.warning = nil
		callback = s.onWarning

	case expiryTimer:
		if !s.state.Pending() {
			s.mu.Unlock()
			return
		}
		s.state = StateExpired
		s.expiry = nil
		if s.warning != nil {
			s.warning.Stop()
			s.warning = nil
		}
		callback = s.onTimeout
	}
	s.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// =============================================================================
// INTROSPECTION
// =============================================================================

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivity returns the time of the most recent Reset.
func (s *Scheduler) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Deadlines returns the pending warning and expiry deadlines. A zero
// warning time means no warning is pending.
func (s *Scheduler) Deadlines() (warning, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateArmed {
		warning = s.warningAt
	}
	if s.state.Pending() {
		expiry = s.expiryAt
	}
	return warning, expiry
}

// Remaining returns the time until expiry, or 0 when nothing is pending.
func (s *Scheduler) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Pending() {
		return 0
	}
	remaining := s.expiryAt.Sub(s.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Timeout returns the configured total timeout.
func (s *Scheduler) Timeout() time.Duration {
	return s.timeout
}

// WarningTime returns the configured warning lead time.
func (s *Scheduler) WarningTime() time.Duration {
	return s.warningTime
}
