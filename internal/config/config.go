/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package config is the daemon-wide settings read once at startup: log
// daemon id, log level, log file path, the management API socket path, and
// the upgrade manager's supervisor and persistence paths. Parsed from TOML,
// the teacher's own on-disk format.
package config

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/dragonflyoss/image-service/pkg/errdefs"
)

// DefaultLogLevel mirrors the teacher's own default.
const DefaultLogLevel = "info"

// LogConfig controls where and how verbosely the daemon logs, in the
// teacher's own log-section shape.
type LogConfig struct {
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
	Stdout bool   `toml:"stdout"`
}

// APIConfig locates the management API's Unix socket.
type APIConfig struct {
	SocketPath string `toml:"socket_path"`
}

// UpgradeConfig locates the upgrade manager's persisted mount-opaque file
// and the supervisor socket directory for a live-upgrade fd handoff.
type UpgradeConfig struct {
	SupervisorPath string `toml:"supervisor_path"`
	StatePath      string `toml:"state_path"`
}

// Config is the complete on-disk daemon configuration.
type Config struct {
	ID      string        `toml:"id"`
	Log     LogConfig     `toml:"log"`
	API     APIConfig     `toml:"api"`
	Upgrade UpgradeConfig `toml:"upgrade"`
}

// Default returns a Config with the teacher's own conservative defaults:
// info-level logging to stdout and no upgrade manager configured.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: DefaultLogLevel, Stdout: true},
		API: APIConfig{SocketPath: "/var/run/nydusd/api.sock"},
	}
}

// LoadFile parses a TOML config file at path, layering it over Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config file %s", path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errdefs.Wrap(errdefs.KindSerde, err, "decode config file "+path)
	}
	if cfg.ID == "" {
		return nil, errdefs.New(errdefs.KindInvalidConfig, "config id must not be empty")
	}
	return cfg, nil
}
