// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdLogout
	CmdWhoami
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdLogin:
		return "login"
	case CmdLogout:
		return "logout"
	case CmdWhoami:
		return "whoami"
	case CmdStatus:
		return "status"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON       bool
	Quiet      bool
	ConfigFile string

	// Command-specific
	Subcommand string
	ConfigKey  string
	ConfigVal  string
	Email      string
	Force      bool

	// Unknown is set when the command word was not recognised.
	Unknown string
}

const helpMarkdown = `# medcare

Terminal dashboard for FMmedCare DME billing. Signed-in sessions end
automatically after a period of inactivity.

## Usage

    medcare                       Start the dashboard (default)
    medcare login [--email ADDR]  Sign in from the terminal
    medcare logout                Sign out and revoke the stored token
    medcare whoami                Show the signed-in user
    medcare status                Show backend, session and storage status
    medcare config show           Show the effective configuration
    medcare config path           Show the config file location
    medcare config init [--force] Write a default config file
    medcare config get KEY        Print one setting
    medcare config set KEY VALUE  Change one setting
    medcare version               Show version information

## Global flags

    --json           Machine-readable output
    --config FILE    Read configuration from FILE
    -q, --quiet      Only print errors

## Dashboard keys

    tab / 1 2 3      Switch between patient intake, billing and audit trail
    /                Filter the current tab
    [ ]              Previous / next page
    r                Reload the current tab
    ctrl+l           Sign out
    q, ctrl+c        Quit

When the inactivity warning is shown, any key keeps the session alive and
L signs out immediately.

## Environment

    MEDCARE_HOME             Configuration directory (default ~/.medcare)
    MEDCARE_API_URL          Backend base URL
    MEDCARE_SESSION_TIMEOUT  Inactivity timeout in seconds
`

// Parse parses argv (without the program name).
func Parse(argv []string) (Command, Args) {
	p := NewArgParser(argv)

	args := Args{
		JSON:       p.BoolFlag("json"),
		Quiet:      p.BoolFlag("quiet", "q"),
		ConfigFile: p.Flag("config"),
		Email:      p.Flag("email"),
		Force:      p.BoolFlag("force"),
	}

	if p.BoolFlag("help", "h") {
		return CmdHelp, args
	}
	if p.BoolFlag("version") {
		return CmdVersion, args
	}

	word := strings.ToLower(p.Positional(0))
	switch word {
	case "", "tui", "ui":
		return CmdTUI, args
	case "login", "signin":
		return CmdLogin, args
	case "logout", "signout":
		return CmdLogout, args
	case "whoami", "me":
		return CmdWhoami, args
	case "status", "s":
		return CmdStatus, args
	case "config", "cfg":
		args.Subcommand = strings.ToLower(p.Positional(1))
		args.ConfigKey = p.Positional(2)
		args.ConfigVal = strings.Join(p.PositionalFrom(3), " ")
		return CmdConfig, args
	case "version", "v":
		return CmdVersion, args
	case "help":
		return CmdHelp, args
	default:
		args.Unknown = word
		return CmdHelp, args
	}
}

// HandleHelp writes the usage text. On a terminal it is rendered as
// markdown.
func HandleHelp(w io.Writer, args Args) error {
	if args.Unknown != "" {
		fmt.Fprintf(w, "Unknown command: %s\n\n", args.Unknown)
	}
	if !IsStdoutTTY() || args.JSON {
		_, err := io.WriteString(w, helpMarkdown)
		return err
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()),
	)
	if err != nil {
		_, err = io.WriteString(w, helpMarkdown)
		return err
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		out = helpMarkdown
	}
	_, err = io.WriteString(w, out)
	return err
}

// VersionData is the JSON form of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// HandleVersion writes version information.
func HandleVersion(w io.Writer, args Args) error {
	data := VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if args.JSON {
		return NewJSONResponse("version", data).Print(w)
	}
	fmt.Fprintf(w, "medcare %s\n", data.Version)
	fmt.Fprintf(w, "  commit:   %s\n", data.GitCommit)
	fmt.Fprintf(w, "  built:    %s\n", data.BuildDate)
	fmt.Fprintf(w, "  go:       %s\n", data.GoVersion)
	fmt.Fprintf(w, "  platform: %s\n", data.Platform)
	return nil
}
