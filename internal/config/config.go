// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for medcare.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.medcare/config.toml
//   - ~/.medcare/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/medcare-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete medcare configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Billing backend
	API APIConfig `toml:"api" json:"api"`

	// Inactivity watchdog
	Session SessionConfig `toml:"session" json:"session"`

	// Login behaviour
	Auth AuthConfig `toml:"auth" json:"auth"`

	// Terminal UI
	UI UIConfig `toml:"ui" json:"ui"`

	// Credential store
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Audit log
	Audit AuditConfig `toml:"audit" json:"audit"`

	// Prometheus endpoint
	Metrics MetricsConfig `toml:"metrics" json:"metrics"`
}

// APIConfig configures the backend client.
type APIConfig struct {
	BaseURL           string  `toml:"base_url" json:"base_url"`
	TimeoutSecs       int     `toml:"timeout_secs" json:"timeout_secs"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
	PerPage           int     `toml:"per_page" json:"per_page"`
}

// SessionConfig configures the inactivity watchdog. It is read once per
// activation; edits apply to the next login.
type SessionConfig struct {
	// Enabled is the master switch for inactivity logout.
	Enabled bool `toml:"enabled" json:"enabled"`

	// TimeoutSecs is the inactivity period before a forced logout.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// WarningSecs is how long before the logout the warning appears. A
	// value not shorter than TimeoutSecs disables the warning.
	WarningSecs int `toml:"warning_secs" json:"warning_secs"`

	// CountdownSecs is the countdown shown in the warning prompt.
	CountdownSecs int `toml:"countdown_secs" json:"countdown_secs"`
}

// AuthConfig configures login.
type AuthConfig struct {
	DemoAccount      bool `toml:"demo_account" json:"demo_account"`
	MaxLoginAttempts int  `toml:"max_login_attempts" json:"max_login_attempts"` // 0 disables lockout
	LockoutMinutes   int  `toml:"lockout_minutes" json:"lockout_minutes"`
}

// UIConfig configures the terminal UI.
type UIConfig struct {
	Theme         string `toml:"theme" json:"theme"`
	Mouse         bool   `toml:"mouse" json:"mouse"`
	ShowRemaining bool   `toml:"show_remaining" json:"show_remaining"`
}

// StorageConfig locates the credential store. An empty path uses
// ~/.medcare/credentials.db.
type StorageConfig struct {
	CredentialsPath string `toml:"credentials_path" json:"credentials_path"`
}

// AuditConfig configures the audit log. An empty path uses
// ~/.medcare/audit.log.
type AuditConfig struct {
	Enabled   bool   `toml:"enabled" json:"enabled"`
	Path      string `toml:"path" json:"path"`
	MaxSizeMB int    `toml:"max_size_mb" json:"max_size_mb"`
}

// MetricsConfig configures the Prometheus endpoint. An empty ListenAddr
// disables it.
type MetricsConfig struct {
	ListenAddr  string `toml:"listen_addr" json:"listen_addr"`
	BearerToken string `toml:"bearer_token" json:"bearer_token"`
}

// Timeout returns the inactivity timeout.
func (s SessionConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// WarningTime returns the warning lead time.
func (s SessionConfig) WarningTime() time.Duration {
	return time.Duration(s.WarningSecs) * time.Second
}

// Countdown returns the prompt countdown.
func (s SessionConfig) Countdown() time.Duration {
	return time.Duration(s.CountdownSecs) * time.Second
}

// Timeout returns the request timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// LockoutDuration returns how long a locked email stays locked.
func (a AuthConfig) LockoutDuration() time.Duration {
	return time.Duration(a.LockoutMinutes) * time.Minute
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		API: APIConfig{
			BaseURL:           "http://localhost:8000/api",
			TimeoutSecs:       30,
			RequestsPerSecond: 10,
			Burst:             20,
			PerPage:           10,
		},

		Session: SessionConfig{
			Enabled:       true,
			TimeoutSecs:   900, // 15 minutes
			WarningSecs:   60,
			CountdownSecs: 60,
		},

		Auth: AuthConfig{
			DemoAccount:      true,
			MaxLoginAttempts: 5,
			LockoutMinutes:   15,
		},

		UI: UIConfig{
			Theme:         "dark",
			Mouse:         true,
			ShowRemaining: true,
		},

		Audit: AuditConfig{
			Enabled:   true,
			MaxSizeMB: 10,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the medcare configuration directory path. MEDCARE_HOME
// overrides the default ~/.medcare.
func ConfigDir() (string, error) {
	if dir := os.Getenv("MEDCARE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".medcare"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ActivePath returns the file Load would read: the TOML file if it exists,
// else the JSON file if it exists, else the TOML path.
func ActivePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// CredentialsPath resolves the credential store location.
func (c *Config) CredentialsPath() (string, error) {
	if c.Storage.CredentialsPath != "" {
		return expandHome(c.Storage.CredentialsPath)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.db"), nil
}

// AuditPath resolves the audit log location.
func (c *Config) AuditPath() (string, error) {
	if c.Audit.Path != "" {
		return expandHome(c.Audit.Path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audit.log"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// Config files may carry the metrics bearer token, so they stay 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ActivePath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return LoadFromPath(path)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. The format follows the file extension; anything other than
// .json is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# medcare configuration file\n")
	buf.WriteString("# Generated by medcare - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg atomically with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// ==========================================================================
	// API
	// ==========================================================================

	if u, err := url.Parse(c.API.BaseURL); err != nil {
		add("api.base_url", "invalid URL: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("api.base_url", "scheme must be http or https, got %q", u.Scheme)
	} else if u.Host == "" {
		add("api.base_url", "missing host")
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 600 {
		add("api.timeout_secs", "must be 1-600, got %d", c.API.TimeoutSecs)
	}
	if c.API.RequestsPerSecond < 0 {
		add("api.requests_per_second", "cannot be negative")
	}
	if c.API.Burst < 0 {
		add("api.burst", "cannot be negative")
	}
	if c.API.PerPage < 1 || c.API.PerPage > 100 {
		add("api.per_page", "must be 1-100, got %d", c.API.PerPage)
	}

	// ==========================================================================
	// Session
	// ==========================================================================

	// A warning lead time at or above the timeout is allowed: it simply
	// means no warning is shown.
	if c.Session.TimeoutSecs < 1 {
		add("session.timeout_secs", "must be positive, got %d", c.Session.TimeoutSecs)
	}
	if c.Session.WarningSecs < 0 {
		add("session.warning_secs", "cannot be negative, got %d", c.Session.WarningSecs)
	}
	if c.Session.CountdownSecs < 1 || c.Session.CountdownSecs > 3600 {
		add("session.countdown_secs", "must be 1-3600, got %d", c.Session.CountdownSecs)
	}

	// ==========================================================================
	// Auth
	// ==========================================================================

	if c.Auth.MaxLoginAttempts < 0 || c.Auth.MaxLoginAttempts > 20 {
		add("auth.max_login_attempts", "must be 0-20, got %d", c.Auth.MaxLoginAttempts)
	}
	if c.Auth.LockoutMinutes < 1 || c.Auth.LockoutMinutes > 1440 {
		add("auth.lockout_minutes", "must be 1-1440, got %d", c.Auth.LockoutMinutes)
	}

	// ==========================================================================
	// UI, audit, metrics
	// ==========================================================================

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}
	if c.Audit.MaxSizeMB < 0 {
		add("audit.max_size_mb", "cannot be negative")
	}
	if c.Metrics.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.ListenAddr); err != nil {
			add("metrics.listen_addr", "must be host:port: %v", err)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills fields whose zero value is never meaningful.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	c.API.BaseURL = strings.TrimSuffix(c.API.BaseURL, "/")
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = defaults.API.TimeoutSecs
	}
	if c.API.PerPage == 0 {
		c.API.PerPage = defaults.API.PerPage
	}
	if c.Session.TimeoutSecs == 0 {
		c.Session.TimeoutSecs = defaults.Session.TimeoutSecs
	}
	if c.Session.CountdownSecs == 0 {
		c.Session.CountdownSecs = defaults.Session.CountdownSecs
	}
	if c.Auth.LockoutMinutes == 0 {
		c.Auth.LockoutMinutes = defaults.Auth.LockoutMinutes
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies MEDCARE_* environment variables. Malformed
// numbers are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MEDCARE_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v, ok := envInt("MEDCARE_SESSION_TIMEOUT"); ok {
		c.Session.TimeoutSecs = v
	}
	if v, ok := envInt("MEDCARE_SESSION_WARNING"); ok {
		c.Session.WarningSecs = v
	}
	if v := os.Getenv("MEDCARE_SESSION_ENABLED"); v != "" {
		c.Session.Enabled = parseBool(v)
	}
	if v := os.Getenv("MEDCARE_DEMO_ACCOUNT"); v != "" {
		c.Auth.DemoAccount = parseBool(v)
	}
	if v := os.Getenv("MEDCARE_AUDIT_PATH"); v != "" {
		c.Audit.Path = v
	}
	if v := os.Getenv("MEDCARE_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
	}
	if v := os.Getenv("MEDCARE_METRICS_TOKEN"); v != "" {
		c.Metrics.BearerToken = v
	}
	if v := os.Getenv("MEDCARE_THEME"); v != "" {
		c.UI.Theme = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

// =============================================================================
// KEY ACCESS
// =============================================================================

// Get returns the value at a dotted key such as "session.timeout_secs".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns the value at a dotted key. String values are parsed to the
// field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the struct field whose toml tag is name.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns every settable key.
func GetAllKeys() []string {
	return []string{
		"version",
		"api.base_url",
		"api.timeout_secs",
		"api.requests_per_second",
		"api.burst",
		"api.per_page",
		"session.enabled",
		"session.timeout_secs",
		"session.warning_secs",
		"session.countdown_secs",
		"auth.demo_account",
		"auth.max_login_attempts",
		"auth.lockout_minutes",
		"ui.theme",
		"ui.mouse",
		"ui.show_remaining",
		"storage.credentials_path",
		"audit.enabled",
		"audit.path",
		"audit.max_size_mb",
		"metrics.listen_addr",
		"metrics.bearer_token",
	}
}

// Clone returns a copy of c.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders c as JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Metrics.BearerToken != "" {
		safe.Metrics.BearerToken = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
