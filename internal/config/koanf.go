// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PVRMIRROR_"

// ConfigPathEnvVar points Load at an explicit config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths is searched in order when CONFIG_PATH is unset;
// the first file that exists wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pvrmirror/config.yaml",
	"/etc/pvrmirror/config.yml",
}

// Load assembles the configuration from three layers, later layers
// overriding earlier ones: built-in defaults, an optional YAML file,
// and PVRMIRROR_* environment variables. The env mapping drops the
// prefix and turns the first underscore into the section separator:
//
//	PVRMIRROR_BACKEND_HOST      -> backend.host
//	PVRMIRROR_SYNC_GUIDE_WINDOW -> sync.guide_window
//	PVRMIRROR_SERVER_PORT       -> server.port
//
// The merged result is validated before it is returned.
func Load() (*Config, error) {
	return loadFrom(locateFile())
}

func loadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	type layer struct {
		name     string
		provider koanf.Provider
		parser   koanf.Parser
	}
	layers := []layer{
		{"defaults", structs.Provider(defaultConfig(), "koanf"), nil},
	}
	if path != "" {
		layers = append(layers, layer{"file " + path, file.Provider(path), yaml.Parser()})
	}
	layers = append(layers, layer{"environment", env.Provider(envPrefix, ".", envTransformFunc), nil})

	for _, l := range layers {
		if err := k.Load(l.provider, l.parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", l.name, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func locateFile() string {
	candidates := DefaultConfigPaths
	if explicit := os.Getenv(ConfigPathEnvVar); explicit != "" {
		candidates = append([]string{explicit}, candidates...)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps PVRMIRROR_SECTION_SOME_KEY to section.some_key.
// Only the first underscore splits; the remainder keeps its underscores
// to match the koanf struct tags.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}
