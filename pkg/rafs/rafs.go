/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package rafs is a minimal stand-in for the real content-addressed,
// metadata-plus-blob image filesystem (RAFS). The real metadata reader,
// blob cache and digest validation are explicitly out of scope for the
// daemon lifecycle core (spec §1); this package gives the backend factory
// and daemon facade something concrete to construct, mount, import, update
// and downcast to, grounded on the shape of the teacher's
// pkg/rafs.RafsInstance (bootstrap path, snapshot id, annotations).
package rafs

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/dragonflyoss/image-service/pkg/errdefs"
	"github.com/pkg/errors"
)

// Superblock is the metadata exported by export_backend_info.
type Superblock struct {
	FsVersion  string `json:"fs_version"`
	InodeCount uint64 `json:"inode_count"`
	RootInode  uint64 `json:"root_inode"`
}

// bootstrap is the on-disk shape this stand-in reads from cmd.Source in
// place of the real RAFS bootstrap/metadata blob.
type bootstrap struct {
	Superblock Superblock `json:"superblock"`
}

// Config is the parsed form of a MountCommand's opaque JSON config for an
// Image backend.
type Config struct {
	Raw string
}

// ParseConfig validates that config is well formed JSON, mirroring
// RafsConfig::from_str in the original daemon.
func ParseConfig(config string) (Config, error) {
	if strings.TrimSpace(config) == "" {
		return Config{Raw: config}, nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(config), &v); err != nil {
		return Config{}, errdefs.Wrap(errdefs.KindSerde, err, "parse rafs config")
	}
	return Config{Raw: config}, nil
}

// Backend is the Image backend capability implementation.
type Backend struct {
	mu         sync.RWMutex
	mountpoint string
	config     Config
	superblock Superblock
}

// Open reads source as the bootstrap/metadata file (a stand-in for the real
// RAFS metadata reader) and constructs a Backend at mountpoint.
func Open(source, mountpoint string, config Config) (*Backend, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, errors.Wrapf(err, "open rafs source %s", source)
	}

	var b bootstrap
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrapf(err, "decode rafs bootstrap %s", source)
	}

	return &Backend{
		mountpoint: mountpoint,
		config:     config,
		superblock: b.Superblock,
	}, nil
}

// Import applies the validated prefetch file list. The real implementation
// would warm the blob cache; this stand-in ignores the list, records
// nothing and always succeeds, since blob/cache mechanics are out of scope.
func (b *Backend) Import(prefetchFiles []string) error {
	return nil
}

// Update replaces the backend's superblock and config from a new bootstrap,
// the rafs-specific half of Daemon.remount. Returns an Unsupported sentinel
// if the new bootstrap is structurally incompatible (version changed),
// mirroring RafsError::Unsupported in the original daemon.
func (b *Backend) Update(source string, config Config) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return errors.Wrapf(err, "open rafs source %s", source)
	}

	var next bootstrap
	if err := json.Unmarshal(data, &next); err != nil {
		return errors.Wrapf(err, "decode rafs bootstrap %s", source)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.superblock.FsVersion != "" && next.Superblock.FsVersion != b.superblock.FsVersion {
		return errdefs.New(errdefs.KindUnsupported, "rafs version change not supported")
	}

	b.config = config
	b.superblock = next.Superblock
	return nil
}

// Kind implements vfs.BackendFileSystem.
func (b *Backend) Kind() string { return "rafs" }

// Superblock implements vfs.BackendFileSystem's downcast accessor.
func (b *Backend) Superblock() (interface{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.superblock, true
}
