// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateIcons(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBackend() error {
	if c.Backend.Host == "" {
		return fmt.Errorf("PVRMIRROR_BACKEND_HOST is required")
	}
	if c.Backend.Port < 1 || c.Backend.Port > 65535 {
		return fmt.Errorf("backend port %d is out of range 1-65535", c.Backend.Port)
	}
	if c.Backend.ConnectTimeout <= 0 {
		return fmt.Errorf("backend connect_timeout must be positive")
	}
	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("backend request_timeout must be positive")
	}
	if c.Backend.ReconnectBackoff <= 0 {
		return fmt.Errorf("backend reconnect_backoff must be positive")
	}
	if c.Backend.ReconnectBackoffMax < c.Backend.ReconnectBackoff {
		return fmt.Errorf("backend reconnect_backoff_max must be >= reconnect_backoff")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.GuideWindow <= 0 {
		return fmt.Errorf("sync guide_window must be positive")
	}
	if c.Sync.GuideRetention <= 0 {
		return fmt.Errorf("sync guide_retention must be positive")
	}
	if c.Sync.PurgeInterval <= 0 {
		return fmt.Errorf("sync purge_interval must be positive")
	}
	if c.Sync.StatusInterval <= 0 {
		return fmt.Errorf("sync status_interval must be positive")
	}
	return nil
}

func (c *Config) validateIcons() error {
	if !c.Icons.Enabled {
		return nil
	}
	if c.Icons.Dir == "" {
		return fmt.Errorf("icons dir is required when icons are enabled")
	}
	if c.Icons.MaxEdge < 0 {
		return fmt.Errorf("icons max_edge must not be negative")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range 1-65535", c.Server.Port)
	}
	if c.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("server requests_per_minute must not be negative")
	}
	return nil
}

var validLogLevels = []string{"trace", "debug", "info", "warn", "error"}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	ok := false
	for _, l := range validLogLevels {
		if level == l {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("log level %q is not one of %s", c.Logging.Level, strings.Join(validLogLevels, ", "))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("log format %q is not json or console", c.Logging.Format)
	}
}
