// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

// Package config loads and validates the application configuration.
//
// Configuration is layered with Koanf v2: built-in defaults first, then an
// optional YAML file (config.yaml, or the path in CONFIG_PATH), then
// PVRMIRROR_* environment variables. Later layers override earlier ones.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load config")
//	}
//	conn := htsp.NewConnection(htsp.Config{
//	    Host: cfg.Backend.Host,
//	    Port: cfg.Backend.Port,
//	}, nil)
package config
