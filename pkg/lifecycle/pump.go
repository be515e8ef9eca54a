/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package lifecycle

import (
	"os"

	"github.com/containerd/log"
	"github.com/pkg/errors"
)

// ActionRunner is the subset of the Daemon facade the event pump drives.
// Start/Disconnect/Restore may block and may fail; Interrupt is best-effort
// and cannot fail. SetState lets the pump keep the daemon's externally
// observable state in lock-step with the machine after every successful
// action (and, for ActionRestore, before it runs — see Pump.run).
type ActionRunner interface {
	Start() error
	Disconnect() error
	Restore() error
	Interrupt()
	SetState(State)
}

// request is one event submission together with the channel its single
// reply is delivered on.
type request struct {
	event Event
	reply chan error
}

// Pump is the single-consumer worker described in the daemon lifecycle
// design: it dequeues events one at a time, asks the Machine for the action
// and next state, runs the action against the daemon, and rolls the machine
// back atomically if the action fails.
type Pump struct {
	machine *Machine
	daemon  ActionRunner
	queue   chan request
	pid     int
}

// NewPump builds a Pump bound to machine and daemon. The queue is buffered
// only enough to avoid synchronous handoff stalls; submitters always block
// on their own reply channel regardless of buffering.
func NewPump(machine *Machine, daemon ActionRunner) *Pump {
	return &Pump{
		machine: machine,
		daemon:  daemon,
		queue:   make(chan request, 16),
		pid:     os.Getpid(),
	}
}

// Submit enqueues an event and blocks until the pump has processed it,
// returning the action's error (nil on success). It is safe to call from
// multiple goroutines; replies are always delivered in submission order
// because a single worker drains the queue.
func (p *Pump) Submit(event Event) error {
	req := request{event: event, reply: make(chan error, 1)}
	p.queue <- req
	return <-req.reply
}

// Run drains the queue until it is closed or a receive fails, which signals
// unrecoverable breakage of the pump; it terminates the worker goroutine in
// that case. Run is meant to be started in its own goroutine by the caller
// wiring the daemon together.
func (p *Pump) Run() {
	for req := range p.queue {
		req.reply <- p.handle(req.event)
	}
}

// Close stops accepting new events. Submitters already blocked on Submit
// receive their last reply before the worker goroutine exits.
func (p *Pump) Close() {
	close(p.queue)
}

func (p *Pump) handle(event Event) error {
	before := p.machine.State()

	action, ok := p.machine.Consume(event)
	if !ok {
		// Not a recoverable error: the daemon can no longer offer correct
		// lifecycle semantics once the machine and its caller disagree on
		// what inputs are legal, so this terminates the process.
		log.L.WithField("pid", p.pid).Fatalf("state machine protocol violation: state=%s input=%s", before, event)
	}

	after := p.machine.State()
	log.L.WithField("pid", p.pid).Infof(
		"state machine: from %s to %s, input [%s], action [%s]", before, after, event, action,
	)

	err := p.run(action)
	if err != nil {
		log.L.WithField("pid", p.pid).Errorf("action %s failed, rolling back to %s: %v", action, before, err)
		p.machine.setState(before)
		return errors.Wrapf(err, "action %s", action)
	}

	// Keep the daemon's externally observable state in lock-step with the
	// machine for every successful transition, including ActionNone rows
	// (e.g. Interrupted -> Stopped) that invoke no hook of their own.
	p.daemon.SetState(after)
	return nil
}

func (p *Pump) run(action Action) error {
	switch action {
	case ActionStartService:
		if err := p.daemon.Start(); err != nil {
			return err
		}
		p.daemon.SetState(StateRunning)
		return nil
	case ActionTerminateService:
		p.daemon.Interrupt()
		p.daemon.SetState(StateInterrupted)
		return nil
	case ActionDisconnect:
		if err := p.daemon.Disconnect(); err != nil {
			return err
		}
		// Interrupt the fuse service loop after shutting down the kernel
		// connection, in case the loop is stuck on a kernel read after the
		// fd is already closed.
		p.daemon.Interrupt()
		p.daemon.SetState(StateStopped)
		return nil
	case ActionRestore:
		// Set the observable state before attempting restore so a failure
		// still leaves it consistent with the machine's intent.
		p.daemon.SetState(StateUpgrading)
		return p.daemon.Restore()
	default:
		return nil
	}
}
