// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file, and environment variables, in that order of
// precedence (env wins). Immutable after Load and safe for concurrent
// reads.
type Config struct {
	Backend Backend `koanf:"backend"`
	Sync    Sync    `koanf:"sync"`
	Icons   Icons   `koanf:"icons"`
	Store   Store   `koanf:"store"`
	Server  Server  `koanf:"server"`
	Logging Logging `koanf:"logging"`
}

// Backend describes the TVHeadend server to mirror.
type Backend struct {
	// Host is the backend's hostname or IP. Required.
	Host string `koanf:"host"`
	// Port is the HTSP port. TVHeadend's default is 9982.
	Port int `koanf:"port"`
	// Username and Password authenticate the HTSP session. Empty values
	// rely on the backend allowing anonymous access.
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	// ConnectTimeout bounds the TCP dial.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	// RequestTimeout bounds one request/reply round trip.
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// ReconnectBackoff is the base delay between reconnect attempts; the
	// supervisor doubles it up to ReconnectBackoffMax.
	ReconnectBackoff    time.Duration `koanf:"reconnect_backoff"`
	ReconnectBackoffMax time.Duration `koanf:"reconnect_backoff_max"`
}

// Sync controls the metadata replay.
type Sync struct {
	// EPG enables guide data in the replay.
	EPG bool `koanf:"epg"`
	// GuideWindow is how far ahead guide data is requested.
	GuideWindow time.Duration `koanf:"guide_window"`
	// GuideRetention is how long finished guide events are kept.
	GuideRetention time.Duration `koanf:"guide_retention"`
	// PurgeInterval is how often expired guide events are removed.
	PurgeInterval time.Duration `koanf:"purge_interval"`
	// StatusInterval is how often the backend clock and disk space are
	// probed.
	StatusInterval time.Duration `koanf:"status_interval"`
}

// Icons controls the channel icon cache.
type Icons struct {
	// Enabled turns icon caching on.
	Enabled bool `koanf:"enabled"`
	// Dir is the on-disk cache directory.
	Dir string `koanf:"dir"`
	// MaxEdge is the longest allowed icon edge in pixels. Zero keeps
	// originals.
	MaxEdge int `koanf:"max_edge"`
	// FetchInterval spaces out icon downloads.
	FetchInterval time.Duration `koanf:"fetch_interval"`
}

// Store configures the local replica database.
type Store struct {
	// Path is the Badger database directory.
	Path string `koanf:"path"`
	// GCInterval is how often the value log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// Server configures the local HTTP API.
type Server struct {
	// Enabled turns the HTTP API on.
	Enabled bool `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	// RequestsPerMinute rate-limits API clients per IP. Zero disables
	// limiting.
	RequestsPerMinute int `koanf:"requests_per_minute"`
	// Timeout bounds one API request.
	Timeout time.Duration `koanf:"timeout"`
}

// Logging configures log output.
type Logging struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
}

// defaultConfig returns a Config with every optional setting filled in.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Backend: Backend{
			Host:                "",
			Port:                9982,
			ConnectTimeout:      5 * time.Second,
			RequestTimeout:      5 * time.Second,
			ReconnectBackoff:    time.Second,
			ReconnectBackoffMax: time.Minute,
		},
		Sync: Sync{
			EPG:            true,
			GuideWindow:    24 * time.Hour,
			GuideRetention: 7 * 24 * time.Hour,
			PurgeInterval:  time.Hour,
			StatusInterval: time.Minute,
		},
		Icons: Icons{
			Enabled:       true,
			Dir:           "/data/icons",
			MaxEdge:       256,
			FetchInterval: 200 * time.Millisecond,
		},
		Store: Store{
			Path:       "/data/pvrmirror",
			GCInterval: 10 * time.Minute,
		},
		Server: Server{
			Enabled:           true,
			Host:              "0.0.0.0",
			Port:              9983,
			RequestsPerMinute: 120,
			Timeout:           30 * time.Second,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}
