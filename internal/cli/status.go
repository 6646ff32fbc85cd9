// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/medcare-tui/internal/util"
)

// StatusCheckTimeout bounds the backend health check.
const StatusCheckTimeout = 5 * time.Second

// StatusData is the JSON form of the status command.
type StatusData struct {
	Version     string            `json:"version"`
	ConfigPath  string            `json:"config_path"`
	Backend     StatusBackendInfo `json:"backend"`
	User        UserData          `json:"user"`
	Session     StatusSessionInfo `json:"session"`
	Credentials string            `json:"credentials_path"`
	AuditLog    string            `json:"audit_log,omitempty"`
	MetricsAddr string            `json:"metrics_addr,omitempty"`
}

// StatusBackendInfo describes the backend health check.
type StatusBackendInfo struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StatusSessionInfo describes the inactivity settings.
type StatusSessionInfo struct {
	Watchdog      bool `json:"watchdog"`
	TimeoutSecs   int  `json:"timeout_secs"`
	WarningSecs   int  `json:"warning_secs"`
	CountdownSecs int  `json:"countdown_secs"`
}

// HandleStatus reports backend reachability, the stored session and the
// inactivity settings.
func HandleStatus(ctx context.Context, w io.Writer, svc *Services, args Args) error {
	data := collectStatus(ctx, svc, args)
	if args.JSON {
		return NewJSONResponse("status", data).Print(w)
	}

	fmt.Fprintln(w, TitleStyle.Render("medcare "+data.Version))

	fmt.Fprintln(w, SectionStyle.Render("Backend"))
	fmt.Fprintln(w, RenderField("URL", data.Backend.URL))
	if data.Backend.Reachable {
		fmt.Fprintln(w, RenderField("Health", RenderStatus(true, data.Backend.Status)))
	} else {
		fmt.Fprintln(w, RenderField("Health", RenderStatus(false, data.Backend.Error)))
	}

	fmt.Fprintln(w, SectionStyle.Render("Session"))
	if data.User.SignedIn {
		fmt.Fprintln(w, RenderField("User", describeUser(data.User.User)))
	} else {
		fmt.Fprintln(w, RenderField("User", "signed out"))
	}
	s := data.Session
	if s.Watchdog {
		fmt.Fprintln(w, RenderField("Idle logout", util.FormatDuration(time.Duration(s.TimeoutSecs)*time.Second)))
		fmt.Fprintln(w, RenderField("Warning", util.FormatDuration(time.Duration(s.WarningSecs)*time.Second)+" before"))
		fmt.Fprintln(w, RenderField("Countdown", util.FormatClock(s.CountdownSecs)))
	} else {
		fmt.Fprintln(w, RenderField("Idle logout", WarningStyle.Render("disabled")))
	}

	fmt.Fprintln(w, SectionStyle.Render("Files"))
	fmt.Fprintln(w, RenderField("Config", data.ConfigPath))
	fmt.Fprintln(w, RenderField("Credentials", data.Credentials))
	if data.AuditLog != "" {
		fmt.Fprintln(w, RenderField("Audit log", data.AuditLog))
	}
	if data.MetricsAddr != "" {
		fmt.Fprintln(w, RenderField("Metrics", data.MetricsAddr))
	}
	return nil
}

func collectStatus(ctx context.Context, svc *Services, args Args) StatusData {
	cfg := svc.Config
	data := StatusData{
		Version:     Version,
		Backend:     StatusBackendInfo{URL: svc.Client.BaseURL()},
		Credentials: svc.Store.Path(),
		MetricsAddr: cfg.Metrics.ListenAddr,
		Session: StatusSessionInfo{
			Watchdog:      cfg.Session.Enabled,
			TimeoutSecs:   cfg.Session.TimeoutSecs,
			WarningSecs:   cfg.Session.WarningSecs,
			CountdownSecs: cfg.Session.CountdownSecs,
		},
	}
	data.ConfigPath, _ = ConfigPath(args)
	if svc.Audit != nil {
		data.AuditLog = svc.Audit.Path()
	}

	hctx, cancel := context.WithTimeout(ctx, StatusCheckTimeout)
	defer cancel()
	if h, err := svc.Client.Health(hctx); err != nil {
		data.Backend.Error = util.SingleLine(err.Error())
	} else {
		data.Backend.Reachable = true
		data.Backend.Status = h.Status
		if data.Backend.Status == "" {
			data.Backend.Status = "ok"
		}
	}

	if user, err := svc.Auth.Restore(hctx); err == nil {
		data.User = userData(ctx, svc, user)
	}
	return data
}
