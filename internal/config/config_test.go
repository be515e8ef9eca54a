/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dragonflyoss/image-service/pkg/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
id = "nydusd-1"

[log]
level = "debug"
stdout = false
dir = "/var/log/nydusd"

[api]
socket_path = "/run/nydusd/api.sock"

[upgrade]
supervisor_path = "/run/nydusd/supervisor.sock"
state_path = "/run/nydusd/opaques.json"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "nydusd-1", cfg.ID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Stdout)
	assert.Equal(t, "/run/nydusd/api.sock", cfg.API.SocketPath)
	assert.Equal(t, "/run/nydusd/supervisor.sock", cfg.Upgrade.SupervisorPath)
}

func TestLoadFileRejectsMissingID(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"
`)

	_, err := LoadFile(path)
	assert.True(t, errdefs.Is(err, errdefs.KindInvalidConfig))
}

func TestLoadFileRejectsMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadFileRejectsInvalidTOML(t *testing.T) {
	path := writeConfig(t, "id = [this is not valid")
	_, err := LoadFile(path)
	assert.True(t, errdefs.Is(err, errdefs.KindSerde))
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.True(t, cfg.Log.Stdout)
	assert.NotEmpty(t, cfg.API.SocketPath)
}
