/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package backend

import (
	"sync"
	"time"

	"github.com/dragonflyoss/image-service/pkg/errdefs"
)

// Registry is the mapping from mountpoint to BackendDescriptor. Mutations
// are serialized with a single mutex; readers observe whole descriptors or
// nothing.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]BackendDescriptor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]BackendDescriptor)}
}

// Add builds and inserts the sanitized descriptor for cmd, keyed by
// cmd.Mountpoint. It fails only if cmd.Config is not parseable JSON for an
// Image backend (a config error); overwriting an existing key is allowed
// since the façade is responsible for the already-mounted precondition.
func (r *Registry) Add(cmd MountCommand, mountedAt time.Time) error {
	desc, err := Describe(cmd, mountedAt)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[cmd.Mountpoint] = desc
	return nil
}

// Del removes mountpoint's descriptor. It is a no-op on an absent key.
func (r *Registry) Del(mountpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, mountpoint)
}

// Get returns the descriptor for mountpoint, or a NotFound error if absent.
func (r *Registry) Get(mountpoint string) (BackendDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[mountpoint]
	if !ok {
		return BackendDescriptor{}, errdefs.New(errdefs.KindNotFound, "mountpoint not registered: "+mountpoint)
	}
	return d, nil
}

// Clone returns a point-in-time copy of the whole registry, keyed by
// mountpoint, for DaemonInfo's backend_collection.
func (r *Registry) Clone() map[string]BackendDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]BackendDescriptor, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}
