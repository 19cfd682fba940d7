// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration inspection and editing.
//
// Command: config [show|get KEY|set KEY VALUE|reset|path|keys]

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/secondme-tui/internal/config"
)

// HandleConfig handles the "config" command. Changes are validated before
// they are written.
func HandleConfig(rt *Runtime, args Args) error {
	p := NewArgParser(args.Raw, "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	path, err := configFilePath(args)
	if err != nil {
		return err
	}

	switch sub := p.Subcommand(); sub {
	case "", "show":
		if jsonMode {
			return NewJSONResponse("config show", rt.Config).Print(rt.Out)
		}
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(rt.Config); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		fmt.Fprintln(rt.Out, DimStyle.Render("# "+path))
		_, err := rt.Out.Write(buf.Bytes())
		return err

	case "get":
		key, err := requireID(p, 1, "key", "secondme config get chat.temperature")
		if err != nil {
			return err
		}
		v, err := rt.Config.Get(key)
		if err != nil {
			return NewValidationError("key", key, err.Error())
		}
		if jsonMode {
			return NewJSONResponse("config get", map[string]interface{}{"key": key, "value": v}).Print(rt.Out)
		}
		fmt.Fprintln(rt.Out, v)
		return nil

	case "set":
		key, err := requireID(p, 1, "key", "secondme config set chat.temperature 0.7")
		if err != nil {
			return err
		}
		if p.PositionalCount() < 3 {
			return ErrMissingArgument("value", "secondme config set "+key+" VALUE")
		}
		value := p.Rest(2)

		next := rt.Config.Clone()
		if err := next.Set(key, value); err != nil {
			return NewValidationError(key, value, err.Error())
		}
		next.SetDefaults()
		if err := next.Validate(); err != nil {
			return err
		}
		if err := config.EnsureConfigDir(); err != nil {
			return err
		}
		if err := config.SaveTOML(next, path); err != nil {
			return err
		}
		*rt.Config = *next
		fmt.Fprintf(rt.Out, "%s %s = %v\n", SuccessStyle.Render("Set"), key, mustGet(next, key))
		return nil

	case "reset":
		if err := config.EnsureConfigDir(); err != nil {
			return err
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return err
		}
		fmt.Fprintln(rt.Out, SuccessStyle.Render("Configuration reset to defaults."))
		return nil

	case "path":
		_, statErr := os.Stat(path)
		exists := !errors.Is(statErr, os.ErrNotExist)
		if jsonMode {
			return NewJSONResponse("config path", map[string]interface{}{"path": path, "exists": exists}).Print(rt.Out)
		}
		fmt.Fprintln(rt.Out, path)
		if !exists {
			fmt.Fprintln(rt.Out, DimStyle.Render("(not created yet, defaults in use)"))
		}
		return nil

	case "keys":
		keys := config.GetAllKeys()
		if jsonMode {
			return NewJSONResponse("config keys", keys).Print(rt.Out)
		}
		fmt.Fprintln(rt.Out, strings.Join(keys, "\n"))
		return nil

	default:
		return ErrUnknownSubcommand("config", sub, []string{"show", "get", "set", "reset", "path", "keys"})
	}
}

func configFilePath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

func mustGet(c *config.Config, key string) interface{} {
	v, _ := c.Get(key)
	return v
}
