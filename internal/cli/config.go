// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jeranaias/medcare-tui/internal/config"
)

// secretKeys are masked in show and get output.
var secretKeys = map[string]bool{
	"metrics.bearer_token": true,
}

// HandleConfig implements "config show|path|init|get|set|keys".
func HandleConfig(w io.Writer, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return handleConfigShow(w, args)
	case "path":
		return handleConfigPath(w, args)
	case "init":
		return handleConfigInit(w, args)
	case "get":
		return handleConfigGet(w, args)
	case "set":
		return handleConfigSet(w, args)
	case "keys":
		return handleConfigKeys(w, args)
	default:
		return &UsageError{
			Message: "unknown config subcommand: " + args.Subcommand,
			Example: "medcare config set session.timeout_secs 600",
		}
	}
}

func handleConfigShow(w io.Writer, args Args) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	if args.JSON {
		values := make(map[string]any)
		for _, key := range config.GetAllKeys() {
			v, _ := cfg.Get(key)
			values[key] = maskIfSecret(key, v)
		}
		return NewJSONResponse("config show", values).Print(w)
	}

	path, _ := ConfigPath(args)
	fmt.Fprintln(w, TitleStyle.Render("medcare configuration"))
	fmt.Fprintln(w, MutedStyle.Render(path))

	section := ""
	for _, key := range config.GetAllKeys() {
		head, name, ok := strings.Cut(key, ".")
		if !ok {
			head, name = "general", key
		}
		if head != section {
			section = head
			fmt.Fprintln(w, SectionStyle.Render("["+section+"]"))
		}
		v, _ := cfg.Get(key)
		fmt.Fprintln(w, RenderField(name, fmt.Sprint(maskIfSecret(key, v))))
	}
	return nil
}

func handleConfigPath(w io.Writer, args Args) error {
	path, err := ConfigPath(args)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if args.JSON {
		return NewJSONResponse("config path", map[string]any{"path": path, "exists": exists}).Print(w)
	}
	fmt.Fprintln(w, path)
	if !exists && !args.Quiet {
		fmt.Fprintln(w, MutedStyle.Render("(not created yet; run medcare config init)"))
	}
	return nil
}

func handleConfigInit(w io.Writer, args Args) error {
	path, err := ConfigPath(args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !args.Force {
		return &UsageError{
			Message: "config file already exists: " + path,
			Example: "medcare config init --force",
		}
	}
	if err := save(config.Default(), path); err != nil {
		return NewCommandError("config", "init", err)
	}

	if args.JSON {
		return NewJSONResponse("config init", map[string]string{"path": path}).Print(w)
	}
	if !args.Quiet {
		fmt.Fprintln(w, RenderStatus(true, "Wrote "+path))
	}
	return nil
}

func handleConfigGet(w io.Writer, args Args) error {
	if args.ConfigKey == "" {
		return &UsageError{Message: "config get needs a key", Example: "medcare config get session.timeout_secs"}
	}
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	v, err := cfg.Get(args.ConfigKey)
	if err != nil {
		return &UsageError{Message: err.Error(), Example: "medcare config keys"}
	}
	v = maskIfSecret(args.ConfigKey, v)

	if args.JSON {
		return NewJSONResponse("config get", map[string]any{args.ConfigKey: v}).Print(w)
	}
	fmt.Fprintln(w, v)
	return nil
}

// handleConfigSet edits the config file. Only the file is read so
// environment overrides are never written back.
func handleConfigSet(w io.Writer, args Args) error {
	if args.ConfigKey == "" || args.ConfigVal == "" {
		return &UsageError{Message: "config set needs a key and a value", Example: "medcare config set session.timeout_secs 600"}
	}
	path, err := ConfigPath(args)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if strings.HasSuffix(path, ".json") {
			err = config.LoadJSON(cfg, path)
		} else {
			err = config.LoadTOML(cfg, path)
		}
		if err != nil {
			return NewCommandError("config", "set", err)
		}
	}

	if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
		return &UsageError{Message: err.Error(), Example: "medcare config keys"}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := save(cfg, path); err != nil {
		return NewCommandError("config", "set", err)
	}

	if args.JSON {
		return NewJSONResponse("config set", map[string]string{"key": args.ConfigKey, "path": path}).Print(w)
	}
	if !args.Quiet {
		fmt.Fprintln(w, RenderStatus(true, args.ConfigKey+" updated"))
	}
	return nil
}

func handleConfigKeys(w io.Writer, args Args) error {
	keys := config.GetAllKeys()
	sort.Strings(keys)
	if args.JSON {
		return NewJSONResponse("config keys", keys).Print(w)
	}
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
	return nil
}

func save(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

func maskIfSecret(key string, v any) any {
	s, ok := v.(string)
	if !ok || !secretKeys[key] || s == "" {
		return v
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
