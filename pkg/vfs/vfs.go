/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package vfs implements the virtual-root contract: a mux that joins
// multiple backend filesystem instances under a single kernel-facing
// mountpoint by dispatching on the mountpoint prefix. The kernel-facing FUSE
// session itself is out of scope; this package only tracks which backend
// answers for which mountpoint.
package vfs

import (
	"sync"

	"github.com/dragonflyoss/image-service/pkg/errdefs"
)

// BackendFileSystem is the capability contract a backend instance must
// satisfy to be mounted into the virtual root: safe for concurrent read
// access, and a narrow escape hatch for export_backend_info instead of the
// pointer-to-box-to-trait indirection the design notes call out as
// regrettable. It carries only Kind and Superblock; inode and handle
// identifiers are not part of it.
type BackendFileSystem interface {
	// Kind reports which concrete backend this is.
	Kind() string
	// Superblock returns the Image backend's metadata for
	// export_backend_info, or (nil, false) for any other kind.
	Superblock() (interface{}, bool)
}

type entry struct {
	index   uint64
	backend BackendFileSystem
}

// Root is the virtual-root contract from the external interfaces section:
// mount/umount/get keyed by mountpoint.
type Root struct {
	mu      sync.RWMutex
	entries map[string]entry
	nextIdx uint64
}

// NewRoot returns an empty virtual root.
func NewRoot() *Root {
	return &Root{entries: make(map[string]entry)}
}

// Mount inserts backend at mountpoint and returns an opaque index. It fails
// only if the mountpoint is already occupied.
func (r *Root) Mount(backend BackendFileSystem, mountpoint string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[mountpoint]; ok {
		return 0, errdefs.New(errdefs.KindAlreadyMounted, "mountpoint already mounted: "+mountpoint)
	}

	r.nextIdx++
	idx := r.nextIdx
	r.entries[mountpoint] = entry{index: idx, backend: backend}
	return idx, nil
}

// Umount removes the backend mounted at mountpoint. It fails if the
// mountpoint is absent.
func (r *Root) Umount(mountpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[mountpoint]; !ok {
		return errdefs.New(errdefs.KindNotFound, "mountpoint not mounted: "+mountpoint)
	}
	delete(r.entries, mountpoint)
	return nil
}

// Get returns the backend mounted at mountpoint. Absence is reported as a
// NotFound error, matching the virtual-root contract's "error means absent".
func (r *Root) Get(mountpoint string) (BackendFileSystem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[mountpoint]
	if !ok {
		return nil, errdefs.New(errdefs.KindNotFound, "mountpoint not mounted: "+mountpoint)
	}
	return e.backend, nil
}
