/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package rafs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dragonflyoss/image-service/pkg/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBootstrap(t *testing.T, dir, version string) string {
	t.Helper()
	p := filepath.Join(dir, "bootstrap.json")
	content := `{"superblock":{"fs_version":"` + version + `","inode_count":3,"root_inode":1}}`
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestOpenAndSuperblock(t *testing.T) {
	dir := t.TempDir()
	src := writeBootstrap(t, dir, "v6")

	cfg, err := ParseConfig(`{}`)
	require.NoError(t, err)

	b, err := Open(src, "/m", cfg)
	require.NoError(t, err)
	assert.Equal(t, "rafs", b.Kind())

	sb, ok := b.Superblock()
	require.True(t, ok)
	assert.Equal(t, Superblock{FsVersion: "v6", InodeCount: 3, RootInode: 1}, sb)
}

func TestUpdateRejectsVersionChange(t *testing.T) {
	dir := t.TempDir()
	src := writeBootstrap(t, dir, "v6")
	cfg, _ := ParseConfig(`{}`)
	b, err := Open(src, "/m", cfg)
	require.NoError(t, err)

	incompatible := writeBootstrap(t, dir, "v5")
	err = b.Update(incompatible, cfg)
	assert.True(t, errdefs.Is(err, errdefs.KindUnsupported))
}

func TestUpdateAcceptsSameVersion(t *testing.T) {
	dir := t.TempDir()
	src := writeBootstrap(t, dir, "v6")
	cfg, _ := ParseConfig(`{}`)
	b, err := Open(src, "/m", cfg)
	require.NoError(t, err)

	p := filepath.Join(dir, "bootstrap2.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"superblock":{"fs_version":"v6","inode_count":9,"root_inode":1}}`), 0o644))

	require.NoError(t, b.Update(p, cfg))
	sb, _ := b.Superblock()
	assert.Equal(t, uint64(9), sb.(Superblock).InodeCount)
}

func TestParseConfigRejectsInvalidJSON(t *testing.T) {
	_, err := ParseConfig("not json")
	assert.True(t, errdefs.Is(err, errdefs.KindSerde))
}
