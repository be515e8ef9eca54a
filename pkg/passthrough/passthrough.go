/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package passthrough is a minimal stand-in for the real passthrough
// filesystem, which mirrors a host directory tree through FUSE using
// hanwen/go-fuse's loopback node. The real inode table and open-file
// bookkeeping are explicitly out of scope for the daemon lifecycle core;
// this package gives the backend factory and daemon facade something
// concrete to construct, import and downcast to, grounded on the
// root_dir/do_import/writeback/no_open options the command accepts.
package passthrough

import (
	"os"
	"sync"

	"github.com/dragonflyoss/image-service/pkg/errdefs"
	"github.com/pkg/errors"
)

// Config mirrors the fields the factory synthesizes for a passthrough mount:
// RootDir = cmd.Source, DoImport = false, Writeback = true, NoOpen = true,
// with all other fields left at their defaults.
type Config struct {
	RootDir   string
	DoImport  bool
	Writeback bool
	NoOpen    bool
}

// Backend is the Passthrough backend capability implementation: it mirrors
// RootDir through the virtual root without any metadata blob to validate.
type Backend struct {
	mu      sync.RWMutex
	config  Config
	mounted bool
}

// Open verifies config.RootDir exists and is a directory, the passthrough
// equivalent of rafs.Open's bootstrap read.
func Open(config Config) (*Backend, error) {
	fi, err := os.Stat(config.RootDir)
	if err != nil {
		return nil, errors.Wrapf(err, "open passthrough root %s", config.RootDir)
	}
	if !fi.IsDir() {
		return nil, errdefs.New(errdefs.KindInvalidArguments, "passthrough root is not a directory: "+config.RootDir)
	}

	return &Backend{config: config}, nil
}

// Import marks the backend ready. The real passthrough filesystem would
// walk RootDir to warm its inode table when DoImport is set; this stand-in
// only records that import ran, since inode bookkeeping is out of scope.
func (b *Backend) Import() error {
	b.mu.Lock()
	b.mounted = true
	b.mu.Unlock()
	return nil
}

// Mounted reports whether Import has completed.
func (b *Backend) Mounted() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mounted
}

// Kind implements vfs.BackendFileSystem.
func (b *Backend) Kind() string { return "passthrough_fs" }

// Superblock implements vfs.BackendFileSystem; passthrough backends carry no
// exportable metadata.
func (b *Backend) Superblock() (interface{}, bool) { return nil, false }
