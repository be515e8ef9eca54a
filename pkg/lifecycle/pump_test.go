/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package lifecycle

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeDaemon struct {
	startErr      error
	disconnectErr error
	restoreErr    error
	interrupted   bool
	state         State
}

func (f *fakeDaemon) Start() error      { return f.startErr }
func (f *fakeDaemon) Disconnect() error { return f.disconnectErr }
func (f *fakeDaemon) Restore() error    { return f.restoreErr }
func (f *fakeDaemon) Interrupt()        { f.interrupted = true }
func (f *fakeDaemon) SetState(s State)  { f.state = s }

func TestPumpColdMountThenStop(t *testing.T) {
	d := &fakeDaemon{}
	p := NewPump(NewMachine(), d)
	go p.Run()
	defer p.Close()

	assert.NoError(t, p.Submit(EventMount))
	assert.Equal(t, StateRunning, d.state)

	assert.NoError(t, p.Submit(EventStop))
	assert.Equal(t, StateStopped, d.state)
	assert.True(t, d.interrupted)
}

func TestPumpTakeoverSequence(t *testing.T) {
	d := &fakeDaemon{}
	p := NewPump(NewMachine(), d)
	go p.Run()
	defer p.Close()

	assert.NoError(t, p.Submit(EventTakeover))
	assert.Equal(t, StateUpgrading, d.state)

	assert.NoError(t, p.Submit(EventSuccessful))
	assert.Equal(t, StateRunning, d.state)
}

func TestPumpActionFailureRollsBack(t *testing.T) {
	d := &fakeDaemon{}
	p := NewPump(NewMachine(), d)
	go p.Run()
	defer p.Close()

	assert.NoError(t, p.Submit(EventMount))
	assert.Equal(t, StateRunning, p.machine.State())

	d.disconnectErr = errors.New("disconnect failed")
	err := p.Submit(EventStop)
	assert.Error(t, err)

	// Observable state remains Running: Disconnect only interrupts and sets
	// Stopped when disconnect itself succeeds, and the machine rolls back.
	assert.Equal(t, StateRunning, d.state)
	assert.False(t, d.interrupted)
	assert.Equal(t, StateRunning, p.machine.State())
}

func TestPumpRestoreFailureRollsBackMachineButNotObservableState(t *testing.T) {
	d := &fakeDaemon{restoreErr: errors.New("restore failed")}
	p := NewPump(NewMachine(), d)
	go p.Run()
	defer p.Close()

	err := p.Submit(EventTakeover)
	assert.Error(t, err)
	assert.Equal(t, StateInit, p.machine.State())
	// Restore sets Upgrading before attempting the work; failure does not
	// revert the daemon's observable state, only the machine's state.
	assert.Equal(t, StateUpgrading, d.state)
}

func TestPumpRepliesInSubmissionOrder(t *testing.T) {
	d := &fakeDaemon{}
	p := NewPump(NewMachine(), d)
	go p.Run()
	defer p.Close()

	assert.NoError(t, p.Submit(EventMount))
	assert.NoError(t, p.Submit(EventExit))
	assert.NoError(t, p.Submit(EventStop))
	assert.Equal(t, StateStopped, d.state)
}
