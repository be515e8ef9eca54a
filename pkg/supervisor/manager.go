/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package supervisor implements the Upgrade Manager Hook: the mount-opaque
// store a successor process consults to reconstruct the mount table after
// receiving the FUSE session fd across a live-upgrade handoff. The real
// supervisor-socket fd handoff protocol (see the teacher's own
// pkg/supervisor for the SCM_RIGHTS exchange) is out of scope here; this
// package only keeps the opaques the core is required to record.
package supervisor

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/dragonflyoss/image-service/pkg/backend"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// Opaque is the mount opaque the core hands the Upgrade Manager: the
// original mount command plus the virtual root's index for it.
type Opaque struct {
	Command backend.MountCommand `json:"command"`
	Index   uint64               `json:"index"`
}

// Manager is the in-process backing store for the Upgrade Manager Hook. A
// nil *Manager is a valid "no upgrade manager configured" value; all three
// hook verbs are no-ops on a nil receiver so the Façade can hold it
// unconditionally.
type Manager struct {
	mu      sync.Mutex
	opaques map[string]Opaque

	// handoff admits only one in-flight Persist at a time, the same
	// single-session-at-a-time discipline the teacher's Supervisor
	// enforces around its own state exchange with a semaphore.
	handoff *semaphore.Weighted
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{opaques: make(map[string]Opaque), handoff: semaphore.NewWeighted(1)}
}

// AddMount records the mount opaque for mountpoint.
func (m *Manager) AddMount(cmd backend.MountCommand, index uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opaques[cmd.Mountpoint] = Opaque{Command: cmd, Index: index}
}

// UpdateMount replaces the recorded command for an existing opaque's
// mountpoint, keeping its index. It is a no-op if the mountpoint was never
// recorded, mirroring the registry's own "del is a no-op on an absent key"
// tolerance.
func (m *Manager) UpdateMount(cmd backend.MountCommand) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.opaques[cmd.Mountpoint]
	if !ok {
		return
	}
	m.opaques[cmd.Mountpoint] = Opaque{Command: cmd, Index: existing.Index}
}

// RemoveMount erases the opaque for mountpoint, if any.
func (m *Manager) RemoveMount(mountpoint string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.opaques, mountpoint)
}

// Snapshot returns a copy of the currently recorded opaques, keyed by
// mountpoint.
func (m *Manager) Snapshot() map[string]Opaque {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Opaque, len(m.opaques))
	for k, v := range m.opaques {
		out[k] = v
	}
	return out
}

// Persist serializes the current opaque set to path as JSON, the simplified
// stand-in for handing the mount table across the fd-handoff boundary.
func (m *Manager) Persist(path string) error {
	if m == nil {
		return nil
	}
	if err := m.handoff.Acquire(context.Background(), 1); err != nil {
		return errors.Wrap(err, "acquire handoff slot")
	}
	defer m.handoff.Release(1)

	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		return errors.Wrap(err, "marshal mount opaques")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "persist mount opaques to %s", path)
	}
	return nil
}

// Restore reconstructs a Manager's opaque set from a file previously
// written by Persist, the successor-process half of the live-upgrade
// handoff.
func Restore(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read mount opaques from %s", path)
	}
	var opaques map[string]Opaque
	if err := json.Unmarshal(data, &opaques); err != nil {
		return nil, errors.Wrap(err, "decode mount opaques")
	}
	return &Manager{opaques: opaques, handoff: semaphore.NewWeighted(1)}, nil
}
