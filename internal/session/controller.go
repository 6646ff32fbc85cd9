// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/config"
	"github.com/jeranaias/medcare-tui/internal/security"
	"github.com/jeranaias/medcare-tui/internal/telemetry"
	"github.com/jeranaias/medcare-tui/internal/watchdog"
)

// ErrNoUser is returned by Start when nobody is signed in.
var ErrNoUser = errors.New("no authenticated user")

// DefaultRevokeTimeout bounds the backend logout issued after a session ends.
const DefaultRevokeTimeout = 10 * time.Second

// What ended an expired session.
const (
	// TriggerInactivity means the watchdog deadline passed.
	TriggerInactivity = "inactivity"

	// TriggerCountdown means the warning prompt counted down to zero first.
	TriggerCountdown = "countdown"
)

// LogoutNowKey ends the session from the warning prompt.
var LogoutNowKey = key.NewBinding(
	key.WithKeys("L"),
	key.WithHelp("L", "log out now"),
)

// =============================================================================
// PHASE
// =============================================================================

// Phase is the user-visible session state.
type Phase int

const (
	PhaseSignedOut Phase = iota
	PhaseActive
	PhaseWarning
	PhaseExpired
)

func (p Phase) String() string {
	switch p {
	case PhaseSignedOut:
		return "signed-out"
	case PhaseActive:
		return "active"
	case PhaseWarning:
		return "warning"
	case PhaseExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// =============================================================================
// CONFIG
// =============================================================================

// Config is captured at Start and fixed for that session.
type Config struct {
	Enabled     bool
	Timeout     time.Duration
	WarningTime time.Duration
	Countdown   time.Duration
}

// DefaultConfig returns a 15 minute timeout with a one minute warning.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Timeout:     watchdog.DefaultTimeout,
		WarningTime: watchdog.DefaultWarningTime,
		Countdown:   60 * time.Second,
	}
}

// ConfigFrom converts the [session] config section.
func ConfigFrom(s config.SessionConfig) Config {
	return Config{
		Enabled:     s.Enabled,
		Timeout:     s.Timeout(),
		WarningTime: s.WarningTime(),
		Countdown:   s.Countdown(),
	}
}

func (c Config) countdownSecs() int {
	secs := int(c.Countdown / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// =============================================================================
// MESSAGES
// =============================================================================

// WarningMsg is emitted when the warning prompt opens.
type WarningMsg struct {
	SessionID string
	Countdown int
}

// ExpiredMsg is emitted when inactivity ends a session.
type ExpiredMsg struct {
	SessionID string
}

// EndedMsg is emitted when the user logs out.
type EndedMsg struct {
	SessionID string
	Reason    string
}

// CountdownTickMsg advances the warning prompt by one second.
type CountdownTickMsg struct {
	gen uint64
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Authenticator is the subset of auth.Manager the controller needs.
type Authenticator interface {
	Current() *api.User
	Token(ctx context.Context) string
	ClearLocal(ctx context.Context) error
	Revoke(ctx context.Context, token string)
}

// Controller owns the session lifecycle for one terminal.
type Controller struct {
	mu sync.Mutex

	auth          Authenticator
	source        *watchdog.TeaSource
	clock         watchdog.Clock
	dispatch      watchdog.Dispatcher
	audit         *security.AuditLogger
	metrics       *telemetry.Metrics
	revokeTimeout time.Duration

	// Applied at the next Start.
	cfg Config

	// Current session
	active    Config
	monitor   *watchdog.Monitor
	sessionID string
	user      *api.User
	phase     Phase
	startedAt time.Time
	countdown int
	tickGen   uint64

	pending []tea.Cmd
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the system clock.
func WithClock(clock watchdog.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithDispatcher routes timer expirations through d.
func WithDispatcher(d watchdog.Dispatcher) Option {
	return func(c *Controller) {
		c.dispatch = d
	}
}

// WithAudit records session transitions.
func WithAudit(logger *security.AuditLogger) Option {
	return func(c *Controller) {
		c.audit = logger
	}
}

// WithMetrics counts resets, warnings and expiries.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithRevokeTimeout bounds the backend logout after a session ends.
func WithRevokeTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.revokeTimeout = d
		}
	}
}

// NewController creates a controller with nobody signed in.
func NewController(auth Authenticator, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		auth:          auth,
		source:        watchdog.NewTeaSource(),
		clock:         watchdog.SystemClock,
		dispatch:      watchdog.DirectDispatch,
		revokeTimeout: DefaultRevokeTimeout,
		cfg:           cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns the activity source fed by Update.
func (c *Controller) Source() *watchdog.TeaSource {
	return c.source
}

// SetDispatcher replaces the dispatcher for sessions started afterwards.
// A TUI calls it with watchdog.ProgramDispatcher once the program exists.
func (c *Controller) SetDispatcher(d watchdog.Dispatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d != nil {
		c.dispatch = d
	}
}

// SetConfig replaces the config used by the next Start. A running session
// keeps the config it started with.
func (c *Controller) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start begins a session for the authenticated user and arms the watchdog.
// A session already in progress is replaced.
func (c *Controller) Start() error {
	user := c.auth.Current()
	if user == nil {
		return ErrNoUser
	}

	c.mu.Lock()
	old := c.monitor
	c.monitor = nil
	cfg := c.cfg
	c.active = cfg
	c.sessionID = uuid.NewString()
	c.user = user
	c.phase = PhaseActive
	c.startedAt = c.clock.Now()
	c.countdown = 0
	c.tickGen++
	id := c.sessionID
	clock, dispatch := c.clock, c.dispatch
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	mon := watchdog.Watch(c.source, watchdog.Config{
		Timeout:     cfg.Timeout,
		WarningTime: cfg.WarningTime,
		Enabled:     cfg.Enabled,
		OnWarning:   c.onWarning,
		OnTimeout:   c.onTimeout,
	},
		watchdog.WithClock(clock),
		watchdog.WithDispatcher(dispatch),
		watchdog.WithResetHook(c.onReset),
	)

	c.mu.Lock()
	c.monitor = mon
	c.mu.Unlock()

	c.metrics.SessionStarted()
	c.logEvent(id, "SESSION_STARTED", user.Email, map[string]string{
		"timeout":  cfg.Timeout.String(),
		"warning":  cfg.WarningTime.String(),
		"watchdog": strconv.FormatBool(cfg.Enabled),
	})
	log.Printf("SESSION_STARTED | id=%s timeout=%s enabled=%t", id, cfg.Timeout, cfg.Enabled)
	return nil
}

// Logout ends the session at the user's request and clears credentials.
func (c *Controller) Logout() tea.Cmd {
	c.end(PhaseSignedOut, telemetry.EndLogout, "", true)
	return c.drain()
}

// Close ends the session when the program exits. Credentials are kept so
// the next run can restore the session.
func (c *Controller) Close() {
	c.end(PhaseSignedOut, telemetry.EndQuit, "", false)
	c.drain()
}

// Acknowledge returns an expired session to the signed-out phase.
func (c *Controller) Acknowledge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseExpired {
		c.phase = PhaseSignedOut
	}
}

// end tears the session down. It is a no-op unless a session is running.
func (c *Controller) end(phase Phase, reason, trigger string, clear bool) {
	c.mu.Lock()
	if c.phase != PhaseActive && c.phase != PhaseWarning {
		c.mu.Unlock()
		return
	}
	mon := c.monitor
	c.monitor = nil
	id, user, started := c.sessionID, c.user, c.startedAt
	c.phase = phase
	c.countdown = 0
	c.tickGen++
	c.mu.Unlock()

	if mon != nil {
		mon.Close()
	}

	if clear {
		ctx := context.Background()
		token := c.auth.Token(ctx)
		if err := c.auth.ClearLocal(ctx); err != nil {
			log.Printf("SESSION_CLEAR_FAILED | id=%s error=%v", id, err)
		}
		c.push(c.revokeCmd(token))
	}

	meta := map[string]string{
		"reason":   reason,
		"duration": c.clock.Now().Sub(started).Round(time.Second).String(),
	}
	if trigger != "" {
		meta["trigger"] = trigger
	}
	email := ""
	if user != nil {
		email = user.Email
	}

	if reason == telemetry.EndTimeout {
		if trigger == TriggerCountdown {
			c.metrics.CountdownExpired()
			c.logEvent(id, "SESSION_COUNTDOWN_EXPIRED", email, meta)
		} else {
			c.metrics.WatchdogExpired()
			c.logEvent(id, "SESSION_TIMEOUT", email, meta)
		}
		c.push(msgCmd(ExpiredMsg{SessionID: id}))
	} else {
		c.push(msgCmd(EndedMsg{SessionID: id, Reason: reason}))
	}
	c.metrics.SessionEnded(reason)
	c.logEvent(id, "SESSION_ENDED", email, meta)
	log.Printf("SESSION_ENDED | id=%s reason=%s", id, reason)
}

func (c *Controller) revokeCmd(token string) tea.Cmd {
	if token == "" {
		return nil
	}
	auth, timeout := c.auth, c.revokeTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		auth.Revoke(ctx, token)
		return nil
	}
}

// =============================================================================
// WATCHDOG CALLBACKS
// =============================================================================

func (c *Controller) onReset() {
	c.metrics.WatchdogReset()

	c.mu.Lock()
	if c.phase != PhaseWarning {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseActive
	c.countdown = 0
	c.tickGen++
	id, user := c.sessionID, c.user
	c.mu.Unlock()

	c.logEvent(id, "SESSION_EXTENDED", user.Email, nil)
}

func (c *Controller) onWarning() {
	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseWarning
	c.countdown = c.active.countdownSecs()
	c.tickGen++
	gen, id, user, secs := c.tickGen, c.sessionID, c.user, c.countdown
	c.mu.Unlock()

	c.metrics.WatchdogWarned()
	c.logEvent(id, "SESSION_WARNING", user.Email, map[string]string{
		"countdown": strconv.Itoa(secs) + "s",
	})
	c.push(msgCmd(WarningMsg{SessionID: id, Countdown: secs}))
	c.push(tickCmd(gen))
}

func (c *Controller) onTimeout() {
	c.end(PhaseExpired, telemetry.EndTimeout, TriggerInactivity, true)
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

func tickCmd(gen uint64) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return CountdownTickMsg{gen: gen}
	})
}

func msgCmd(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// Update must see every message before any child model does. It reports
// activity to the watchdog, runs timer expirations and advances the
// warning countdown. The returned command carries any resulting
// notifications.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	if k, ok := msg.(tea.KeyMsg); ok && c.Phase() == PhaseWarning && key.Matches(k, LogoutNowKey) {
		return c.Logout()
	}

	c.source.Observe(msg)

	switch msg := msg.(type) {
	case watchdog.FireMsg:
		msg.Run()
	case CountdownTickMsg:
		c.tick(msg.gen)
	}
	return c.drain()
}

// tick counts the prompt down one second. Reaching the last second signs
// the user out even if the watchdog has not fired yet.
func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.tickGen || c.phase != PhaseWarning {
		c.mu.Unlock()
		return
	}
	if c.countdown <= 1 {
		c.countdown = 0
		c.mu.Unlock()
		c.end(PhaseExpired, telemetry.EndTimeout, TriggerCountdown, true)
		return
	}
	c.countdown--
	c.mu.Unlock()

	c.push(tickCmd(gen))
}

func (c *Controller) push(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	c.mu.Lock()
	c.pending = append(c.pending, cmd)
	c.mu.Unlock()
}

func (c *Controller) drain() tea.Cmd {
	c.mu.Lock()
	cmds := c.pending
	c.pending = nil
	c.mu.Unlock()

	switch len(cmds) {
	case 0:
		return nil
	case 1:
		return cmds[0]
	default:
		return tea.Batch(cmds...)
	}
}

// =============================================================================
// STATUS
// =============================================================================

// Status is a snapshot of the current session.
type Status struct {
	SessionID string
	User      *api.User
	Phase     Phase
	Watchdog  bool
	State     watchdog.State
	Remaining time.Duration
	Countdown int
	StartedAt time.Time
	Config    Config
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Status returns a snapshot of the current session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	s := Status{
		SessionID: c.sessionID,
		Phase:     c.phase,
		Countdown: c.countdown,
		StartedAt: c.startedAt,
		Config:    c.active,
	}
	if c.user != nil && (c.phase == PhaseActive || c.phase == PhaseWarning) {
		u := *c.user
		s.User = &u
	}
	mon := c.monitor
	c.mu.Unlock()

	if mon != nil {
		s.Watchdog = mon.Enabled()
		s.State = mon.Scheduler().State()
		s.Remaining = mon.Scheduler().Remaining()
	}
	return s
}

func (c *Controller) logEvent(id, eventType, user string, meta map[string]string) {
	if c.audit != nil {
		c.audit.LogEvent(id, eventType, user, meta)
	}
}
