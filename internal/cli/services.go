// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jeranaias/medcare-tui/internal/api"
	"github.com/jeranaias/medcare-tui/internal/auth"
	"github.com/jeranaias/medcare-tui/internal/config"
	"github.com/jeranaias/medcare-tui/internal/security"
	"github.com/jeranaias/medcare-tui/internal/storage"
	"github.com/jeranaias/medcare-tui/internal/telemetry"
)

// LoadConfig reads the file named by --config, or the default location.
func LoadConfig(args Args) (*config.Config, error) {
	if args.ConfigFile != "" {
		return config.LoadFromPath(args.ConfigFile)
	}
	return config.Load()
}

// ConfigPath returns the file config commands read and write.
func ConfigPath(args Args) (string, error) {
	if args.ConfigFile != "" {
		return args.ConfigFile, nil
	}
	return config.ActivePath()
}

// =============================================================================
// SERVICES
// =============================================================================

// Services is everything a signed-in command needs, built from one config.
type Services struct {
	Config  *config.Config
	Store   *storage.CredentialStore
	Client  *api.Client
	Auth    *auth.Manager
	Audit   *security.AuditLogger
	Metrics *telemetry.Metrics
}

// Open builds the services for cfg. Close releases them.
func Open(cfg *config.Config) (*Services, error) {
	s := &Services{
		Config:  cfg,
		Metrics: telemetry.NewMetrics(),
	}

	credPath, err := cfg.CredentialsPath()
	if err != nil {
		return nil, err
	}
	s.Store, err = storage.OpenCredentialStore(credPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	if cfg.Audit.Enabled {
		auditPath, err := cfg.AuditPath()
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Audit, err = security.NewAuditLogger(auditPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Audit.SetMaxSize(int64(cfg.Audit.MaxSizeMB) * 1024 * 1024)
	}

	s.Client = api.NewClient(cfg.API.BaseURL).
		WithHTTPClient(&http.Client{
			Timeout:   cfg.API.Timeout(),
			Transport: s.Metrics.InstrumentRoundTripper(nil),
		}).
		WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst).
		WithTokenFunc(s.Store.Token)

	lockout := security.NewLockoutManager(
		security.WithMaxAttempts(cfg.Auth.MaxLoginAttempts),
		security.WithLockoutDuration(cfg.Auth.LockoutDuration()),
		security.WithAuditLogger(s.Audit),
		security.WithAttemptStore(s.Store),
	)
	s.Auth = auth.NewManager(s.Client, s.Store,
		auth.WithLockout(lockout),
		auth.WithAudit(s.Audit),
		auth.WithMetrics(s.Metrics),
		auth.WithDemoAccount(cfg.Auth.DemoAccount),
	)
	return s, nil
}

// Close releases the credential store and audit log.
func (s *Services) Close() error {
	var errs []error
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if s.Audit != nil {
		errs = append(errs, s.Audit.Close())
	}
	return errors.Join(errs...)
}
