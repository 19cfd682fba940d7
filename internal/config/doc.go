// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for secondme.
//
// Configuration sources (in order of precedence):
//   - SECONDME_* environment variables (also read from .env files)
//   - ~/.secondme/config.toml
//   - Built-in defaults
//
// # Sections
//
//   - [server]: backend URL and JSON request timeout
//   - [chat]: defaults for chat requests and the stream pump cadence
//   - [training]: base model, poll cadence, log window, memory gate
//   - [storage]: file or sqlite persistence
//   - [broadcast]: file or redis channel for space updates
//   - [log], [metrics], [ui]
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := api.New(cfg.Server.BaseURL, api.WithTimeout(cfg.Server.RequestTimeout))
package config
