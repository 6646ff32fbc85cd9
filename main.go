// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/medcare-tui/internal/auth"
	"github.com/jeranaias/medcare-tui/internal/cli"
	"github.com/jeranaias/medcare-tui/internal/config"
	"github.com/jeranaias/medcare-tui/internal/server"
	"github.com/jeranaias/medcare-tui/internal/session"
	"github.com/jeranaias/medcare-tui/internal/ui/styles"
	"github.com/jeranaias/medcare-tui/internal/watchdog"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const (
	// restoreTimeout bounds the token check made before the TUI opens.
	restoreTimeout = 10 * time.Second

	// configReloadDebounce coalesces editor writes to the config file.
	configReloadDebounce = 250 * time.Millisecond
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])
	if err := run(cmd, args, os.Stdout); err != nil {
		cli.DisplayError(os.Stderr, cmd.String(), err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}

// run dispatches one command. Commands that talk to the backend share a
// single set of services built from the loaded config.
func run(cmd cli.Command, args cli.Args, w io.Writer) error {
	switch cmd {
	case cli.CmdHelp:
		return cli.HandleHelp(w, args)
	case cli.CmdVersion:
		return cli.HandleVersion(w, args)
	case cli.CmdConfig:
		return cli.HandleConfig(w, args)
	}

	cfg, err := cli.LoadConfig(args)
	if err != nil {
		return cli.NewCommandError(cmd.String(), "load config", err)
	}
	svc, err := cli.Open(cfg)
	if err != nil {
		return cli.NewCommandError(cmd.String(), "open services", err)
	}
	defer svc.Close()

	ctx := context.Background()
	switch cmd {
	case cli.CmdLogin:
		var p cli.Prompter
		if cli.IsTTY() {
			p = cli.NewLinePrompter()
		}
		return cli.HandleLogin(ctx, w, svc, args, p)
	case cli.CmdLogout:
		return cli.HandleLogout(ctx, w, svc, args)
	case cli.CmdWhoami:
		return cli.HandleWhoami(ctx, w, svc, args)
	case cli.CmdStatus:
		return cli.HandleStatus(ctx, w, svc, args)
	default:
		return runTUI(svc, args)
	}
}

// =============================================================================
// TUI
// =============================================================================

// runTUI restores any saved session and runs the dashboard until the user
// quits.
func runTUI(svc *cli.Services, args cli.Args) error {
	if !cli.IsTTY() {
		return &cli.UsageError{
			Message: "the dashboard needs an interactive terminal",
			Example: "medcare status --json",
		}
	}
	cfg := svc.Config

	// Log lines would corrupt the alternate screen.
	if closeLog, err := setupLogging(); err == nil {
		defer closeLog()
	}

	restoreCtx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	if _, err := svc.Auth.Restore(restoreCtx); err != nil && !errors.Is(err, auth.ErrNoToken) {
		log.Printf("SESSION_RESTORE_FAILED | error=%v", err)
	}
	cancel()

	ctrl := session.NewController(svc.Auth, session.ConfigFrom(cfg.Session),
		session.WithAudit(svc.Audit),
		session.WithMetrics(svc.Metrics),
	)
	defer ctrl.Close()

	theme := styles.NewTheme(cfg.UI.Theme)
	m := NewModel(theme, svc.Auth, ctrl, svc.Client, cfg.API.PerPage)
	m.status.ShowRemaining = cfg.UI.ShowRemaining
	m.dash.SetRequestTimeout(cfg.API.Timeout())

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.UI.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(m, opts...)

	// Timer expirations run inside Update from here on.
	ctrl.SetDispatcher(watchdog.ProgramDispatcher(p))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.Metrics.ListenAddr != "" {
		srv := server.New(cfg.Metrics.ListenAddr,
			server.WithMetrics(svc.Metrics.Handler()),
			server.WithSessionStatus(ctrl.Status),
			server.WithAuth(server.AuthFromToken(cfg.Metrics.BearerToken)),
			server.WithVersion(Version),
		)
		go func() {
			if err := srv.Serve(ctx); err != nil {
				log.Printf("SERVER_ERROR | addr=%s error=%v", cfg.Metrics.ListenAddr, err)
			}
		}()
	}

	if w := watchConfig(args, ctrl); w != nil {
		defer w.Close()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running medcare: %w", err)
	}
	return nil
}

// watchConfig applies session settings from config edits to the next
// session. It returns nil when there is no file to watch.
func watchConfig(args cli.Args, ctrl *session.Controller) *config.Watcher {
	path, err := cli.ConfigPath(args)
	if err != nil {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	w, err := config.Watch(path, configReloadDebounce, func(cfg *config.Config, err error) {
		if err != nil {
			return
		}
		ctrl.SetConfig(session.ConfigFrom(cfg.Session))
		log.Printf("CONFIG_RELOADED | path=%s timeout=%s", path, cfg.Session.Timeout())
	})
	if err != nil {
		log.Printf("CONFIG_WATCH_FAILED | path=%s error=%v", path, err)
		return nil
	}
	return w
}

// setupLogging sends the standard logger to debug.log in the config
// directory when MEDCARE_DEBUG is set, and discards it otherwise.
func setupLogging() (func(), error) {
	if os.Getenv("MEDCARE_DEBUG") == "" {
		log.SetOutput(io.Discard)
		return func() {}, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		log.SetOutput(io.Discard)
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		log.SetOutput(io.Discard)
		return nil, err
	}
	f, err := tea.LogToFile(filepath.Join(dir, "debug.log"), "medcare")
	if err != nil {
		log.SetOutput(io.Discard)
		return nil, err
	}
	return func() { f.Close() }, nil
}
