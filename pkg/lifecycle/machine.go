/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package lifecycle

import "github.com/dragonflyoss/image-service/pkg/errdefs"

// transition is one row of the table below: From/Input determine To/Action.
type transition struct {
	from   State
	input  Event
	to     State
	action Action
}

// table is the complete transition table from the daemon lifecycle design.
// Any (state, input) pair not listed here is a protocol violation.
var table = []transition{
	{StateInit, EventMount, StateRunning, ActionStartService},
	{StateInit, EventTakeover, StateUpgrading, ActionRestore},
	{StateInit, EventStop, StateStopped, ActionDisconnect},
	{StateRunning, EventExit, StateInterrupted, ActionTerminateService},
	{StateRunning, EventStop, StateStopped, ActionDisconnect},
	{StateUpgrading, EventSuccessful, StateRunning, ActionStartService},
	{StateInterrupted, EventStop, StateStopped, ActionNone},
}

// Machine is the deterministic finite-state transducer described by the
// transition table. It is not safe for concurrent use; the event pump is
// its sole caller and serializes access to it.
type Machine struct {
	state State
}

// NewMachine returns a Machine starting in StateInit.
func NewMachine() *Machine {
	return &Machine{state: StateInit}
}

// State returns the machine's current state.
func (m *Machine) State() State {
	return m.state
}

// setState forcibly repositions the machine; used only for snapshot
// rollback by the event pump.
func (m *Machine) setState(s State) {
	m.state = s
}

// Consume looks up the transition for the machine's current state and the
// given input. On success it advances the machine to the transition's
// target state and returns the action to perform. An input with no matching
// row for the current state is a protocol violation: ok is false and the
// machine is left untouched.
func (m *Machine) Consume(input Event) (action Action, ok bool) {
	for _, t := range table {
		if t.from == m.state && t.input == input {
			m.state = t.to
			return t.action, true
		}
	}
	return ActionNone, false
}

// ErrProtocolViolation builds the error describing an (state, input) pair
// that Consume rejects. The event pump does not return it: on a rejected
// pair the pump logs the same state and input at fatal level instead.
func ErrProtocolViolation(state State, input Event) error {
	return errdefs.New(errdefs.KindCommon, "state machine protocol violation: state="+state.String()+" input="+input.String())
}
