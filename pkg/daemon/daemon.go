/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package daemon implements the Daemon Façade: the capability surface the
// management API drives. It owns the virtual root, the mount registry and
// the (optional) upgrade manager hook, and it is the lifecycle.ActionRunner
// the event pump invokes on every transition.
package daemon

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dragonflyoss/image-service/pkg/backend"
	"github.com/dragonflyoss/image-service/pkg/errdefs"
	"github.com/dragonflyoss/image-service/pkg/lifecycle"
	"github.com/dragonflyoss/image-service/pkg/rafs"
	"github.com/dragonflyoss/image-service/pkg/supervisor"
	"github.com/dragonflyoss/image-service/pkg/vfs"
)

// Hooks are the daemon's out-of-scope external collaborators: the FUSE I/O
// service loop and session lifecycle (§1 explicitly keeps these out of the
// core). A nil hook is a no-op that always succeeds, so tests and bootstraps
// without a real FUSE session still exercise the full lifecycle.
type Hooks struct {
	// Start brings up the kernel FUSE service loop.
	Start func() error
	// Disconnect tears down the kernel connection.
	Disconnect func() error
	// Restore reconstructs session state handed off by a predecessor
	// process during a live upgrade.
	Restore func() error
	// Interrupt best-effort unblocks a service loop stuck on a kernel
	// read. Never returns an error.
	Interrupt func()
	// Wait blocks until the service loop has fully stopped, used by
	// TriggerExit.
	Wait func() error
}

// Info is the JSON shape exported by ExportInfo, DaemonInfo in the data
// model.
type Info struct {
	Version           string                               `json:"version"`
	ID                string                               `json:"id,omitempty"`
	Supervisor        string                               `json:"supervisor,omitempty"`
	State             string                               `json:"state"`
	BackendCollection map[string]backend.BackendDescriptor `json:"backend_collection"`
}

// Daemon is the façade: it serializes its own observable state under a
// mutex (kept in lock-step with the state machine by the event pump's
// SetState calls) and delegates mount-table mutation to the virtual root,
// the registry and the upgrade manager.
type Daemon struct {
	version        string
	id             string
	supervisorSock string

	vroot    *vfs.Root
	registry *backend.Registry
	factory  *backend.Factory
	upgrade  *supervisor.Manager

	hooks Hooks

	mu    sync.RWMutex
	state lifecycle.State

	pump *lifecycle.Pump
}

// New builds a Daemon wired to its collaborators and creates (but does not
// start) its event pump. Callers must run `go d.Pump().Run()` before
// submitting lifecycle events.
func New(version, id, supervisorSock string, factory *backend.Factory, upgrade *supervisor.Manager, hooks Hooks) *Daemon {
	d := &Daemon{
		version:        version,
		id:             id,
		supervisorSock: supervisorSock,
		vroot:          vfs.NewRoot(),
		registry:       backend.NewRegistry(),
		factory:        factory,
		upgrade:        upgrade,
		hooks:          hooks,
		state:          lifecycle.StateInit,
	}
	d.pump = lifecycle.NewPump(lifecycle.NewMachine(), d)
	return d
}

// Pump returns the daemon's event pump, for the bootstrap code to run and
// for callers (TriggerExit, TriggerTakeover, TriggerStop) to submit events on.
func (d *Daemon) Pump() *lifecycle.Pump {
	return d.pump
}

// State returns the daemon's externally observable lifecycle state.
func (d *Daemon) State() lifecycle.State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// SetState implements lifecycle.ActionRunner; only the event pump calls it.
func (d *Daemon) SetState(s lifecycle.State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Start implements lifecycle.ActionRunner's StartService action.
func (d *Daemon) Start() error {
	if d.hooks.Start == nil {
		return nil
	}
	return d.hooks.Start()
}

// Disconnect implements lifecycle.ActionRunner's Disconnect action.
func (d *Daemon) Disconnect() error {
	if d.hooks.Disconnect == nil {
		return nil
	}
	return d.hooks.Disconnect()
}

// Restore implements lifecycle.ActionRunner's Restore action.
func (d *Daemon) Restore() error {
	if d.hooks.Restore == nil {
		return nil
	}
	return d.hooks.Restore()
}

// Interrupt implements lifecycle.ActionRunner's best-effort interrupt.
func (d *Daemon) Interrupt() {
	if d.hooks.Interrupt != nil {
		d.hooks.Interrupt()
	}
}

func (d *Daemon) wait() error {
	if d.hooks.Wait == nil {
		return nil
	}
	return d.hooks.Wait()
}

// Mount implements §4.5's mount: reject an occupied mountpoint, build the
// backend, insert it into the virtual root, register its sanitized
// descriptor, and record the mount opaque with the upgrade manager if one
// is configured.
func (d *Daemon) Mount(cmd backend.MountCommand) error {
	if d.State() == lifecycle.StateStopped {
		return errdefs.New(errdefs.KindNotReady, "daemon is stopped")
	}

	if _, err := d.vroot.Get(cmd.Mountpoint); err == nil {
		return errdefs.New(errdefs.KindAlreadyMounted, "mountpoint already mounted: "+cmd.Mountpoint)
	}

	be, err := d.factory.Build(cmd)
	if err != nil {
		return err
	}

	index, err := d.vroot.Mount(be, cmd.Mountpoint)
	if err != nil {
		return err
	}

	if err := d.registry.Add(cmd, time.Now()); err != nil {
		return err
	}

	d.upgrade.AddMount(cmd, index)
	return nil
}

// Remount implements §4.5's remount: only Image backends support it.
func (d *Daemon) Remount(cmd backend.MountCommand) error {
	be, err := d.vroot.Get(cmd.Mountpoint)
	if err != nil {
		return err
	}

	rb, ok := be.(*rafs.Backend)
	if !ok {
		return errdefs.New(errdefs.KindFsTypeMismatch, "mountpoint is not an Image backend: "+cmd.Mountpoint)
	}

	cfg, err := rafs.ParseConfig(cmd.Config)
	if err != nil {
		return err
	}

	if err := rb.Update(cmd.Source, cfg); err != nil {
		return err
	}

	if err := d.registry.Add(cmd, time.Now()); err != nil {
		return err
	}

	d.upgrade.UpdateMount(cmd)
	return nil
}

// Umount implements §4.5's umount.
func (d *Daemon) Umount(cmd backend.UnmountCommand) error {
	if _, err := d.vroot.Get(cmd.Mountpoint); err != nil {
		return err
	}

	if err := d.vroot.Umount(cmd.Mountpoint); err != nil {
		return err
	}

	d.registry.Del(cmd.Mountpoint)
	d.upgrade.RemoveMount(cmd.Mountpoint)
	return nil
}

// ExportInfo returns the JSON serialization of a DaemonInfo snapshot.
func (d *Daemon) ExportInfo() ([]byte, error) {
	info := Info{
		Version:           d.version,
		ID:                d.id,
		Supervisor:        d.supervisorSock,
		State:             d.State().String(),
		BackendCollection: d.registry.Clone(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindSerde, err, "marshal daemon info")
	}
	return data, nil
}

// ExportBackendInfo returns the JSON serialization of the Image backend's
// superblock metadata at mountpoint.
func (d *Daemon) ExportBackendInfo(mountpoint string) ([]byte, error) {
	be, err := d.vroot.Get(mountpoint)
	if err != nil {
		return nil, err
	}

	sb, ok := be.Superblock()
	if !ok {
		return nil, errdefs.New(errdefs.KindFsTypeMismatch, "mountpoint is not an Image backend: "+mountpoint)
	}

	data, err := json.Marshal(sb)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindSerde, err, "marshal backend info")
	}
	return data, nil
}

// TriggerExit submits Exit and blocks on the external service loop's Wait
// hook, translating its failure to ServiceStop.
func (d *Daemon) TriggerExit() error {
	if err := d.pump.Submit(lifecycle.EventExit); err != nil {
		return err
	}
	if err := d.wait(); err != nil {
		return errdefs.Wrap(errdefs.KindServiceStop, err, "wait daemon")
	}
	return nil
}

// TriggerTakeover submits Takeover then Successful, synchronously through
// the event pump, completing the two-event Init→Upgrading→Running sequence.
func (d *Daemon) TriggerTakeover() error {
	if err := d.pump.Submit(lifecycle.EventTakeover); err != nil {
		return err
	}
	return d.pump.Submit(lifecycle.EventSuccessful)
}

// TriggerStop submits Stop, reachable from Init, Running and Interrupted per
// the transition table, mirroring the original daemon's NydusDaemon::stop.
func (d *Daemon) TriggerStop() error {
	return d.pump.Submit(lifecycle.EventStop)
}
