// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watchdog

import "sync"

// =============================================================================
// ACTIVITY EVENTS
// =============================================================================

// EventKind is a kind of user interaction.
type EventKind int

const (
	EventPointerDown EventKind = iota
	EventPointerMove
	EventKeyPress
	EventScroll
	EventTouchStart
	EventClick
	EventKeyDown
)

// ActivityEvents is the fixed set of interactions that count as activity.
var ActivityEvents = []EventKind{
	EventPointerDown,
	EventPointerMove,
	EventKeyPress,
	EventScroll,
	EventTouchStart,
	EventClick,
	EventKeyDown,
}

// String returns a string representation of the EventKind.
func (k EventKind) String() string {
	switch k {
	case EventPointerDown:
		return "pointerdown"
	case EventPointerMove:
		return "pointermove"
	case EventKeyPress:
		return "keypress"
	case EventScroll:
		return "scroll"
	case EventTouchStart:
		return "touchstart"
	case EventClick:
		return "click"
	case EventKeyDown:
		return "keydown"
	default:
		return "unknown"
	}
}

// Handler receives one event occurrence.
type Handler func(kind EventKind)

// Source delivers interaction events for a whole document scope.
type Source interface {
	// Subscribe registers h for the given kinds. The returned function
	// removes the registration. After it returns no new delivery to h
	// starts, but one already in progress on another goroutine may still
	// finish.
	Subscribe(kinds []EventKind, h Handler) (unsubscribe func())
}

// =============================================================================
// MONITOR
// =============================================================================

// Monitor resets a Scheduler on every qualifying event while enabled.
type Monitor struct {
	mu sync.Mutex

	src   Source
	sched *Scheduler

	enabled     bool
	unsubscribe func()
}

// NewMonitor creates a disabled monitor.
func NewMonitor(src Source, sched *Scheduler) *Monitor {
	return &Monitor{
		src:   src,
		sched: sched,
	}
}

// Watch builds a scheduler and monitor for cfg and applies cfg.Enabled.
func Watch(src Source, cfg Config, opts ...Option) *Monitor {
	m := NewMonitor(src, NewScheduler(cfg, opts...))
	m.SetEnabled(cfg.Enabled)
	return m
}

// SetEnabled starts or stops the watchdog. Enabling subscribes to the
// source and arms the timers as if activity just occurred. Disabling
// unsubscribes and cancels both timers before returning. Setting the
// current value again is a no-op.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	if m.enabled == enabled {
		m.mu.Unlock()
		return
	}
	m.enabled = enabled

	if !enabled {
		unsubscribe := m.unsubscribe
		m.unsubscribe = nil
		m.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		m.sched.Clear()
		return
	}
	m.mu.Unlock()

	unsubscribe := m.src.Subscribe(ActivityEvents, m.handle)

	m.mu.Lock()
	if !m.enabled {
		// Disabled while subscribing.
		m.mu.Unlock()
		unsubscribe()
		return
	}
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	m.sched.Reset()
}

// Enabled reports whether the monitor is listening.
func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Scheduler returns the scheduler this monitor drives.
func (m *Monitor) Scheduler() *Scheduler {
	return m.sched
}

// Close tears the watchdog down: listeners removed, timers cancelled.
func (m *Monitor) Close() {
	m.SetEnabled(false)
}

// handle holds the lock across Reset so a delivery that races with
// SetEnabled(false) either resets before the disable or not at all.
func (m *Monitor) handle(kind EventKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enabled {
		m.sched.Reset()
	}
}

// =============================================================================
// BROADCASTER
// =============================================================================

// Broadcaster is an in-process Source. Emit fans an event out to every
// subscriber registered for its kind.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	kinds   map[EventKind]bool
	handler Handler
}

// NewBroadcaster creates an empty event source.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[int]subscription),
	}
}

// Subscribe implements Source.
func (b *Broadcaster) Subscribe(kinds []EventKind, h Handler) func() {
	set := make(map[EventKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{kinds: set, handler: h}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Emit delivers one occurrence of kind to its subscribers.
func (b *Broadcaster) Emit(kind EventKind) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.kinds[kind] {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(kind)
	}
}
