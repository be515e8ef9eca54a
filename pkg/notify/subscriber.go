/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package notify implements the Notification Fd / Shutdown Subscriber: a
// cross-thread wakeup primitive wrapping a single eventfd, watched with the
// teacher's epoll idiom (pkg/manager/monitor.go), dispatching readiness the
// way the original daemon's NydusDaemonSubscriber does: input means "stop",
// error is logged, hangup means self-deregister.
package notify

import (
	"sync"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Subscriber owns one eventfd registered with a private epoll instance. It
// is created at process start and destroyed at process exit.
type Subscriber struct {
	fd      int
	epollFd int

	once   sync.Once
	stopCh chan struct{}

	mu           sync.Mutex
	deregistered bool
}

// New creates the eventfd and its epoll instance, but does not yet register
// for readiness; call Register to do that.
func New() (*Subscriber, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, errors.Wrap(err, "create notification eventfd")
	}

	epollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "create notification epoll instance")
	}

	return &Subscriber{fd: fd, epollFd: epollFd, stopCh: make(chan struct{})}, nil
}

// CloneHandle duplicates the underlying eventfd, the handle the core hands
// out to the external event loop or a successor process during takeover.
func (s *Subscriber) CloneHandle() (int, error) {
	dup, err := unix.Dup(s.fd)
	if err != nil {
		return -1, errors.Wrap(err, "clone notification handle")
	}
	return dup, nil
}

// Register subscribes the eventfd for input readiness on the private epoll
// instance, per "initialization registers for input readiness".
func (s *Subscriber) Register() error {
	event := unix.EpollEvent{Fd: int32(s.fd), Events: unix.EPOLLIN | unix.EPOLLHUP | unix.EPOLLERR}
	if err := unix.EpollCtl(s.epollFd, unix.EPOLL_CTL_ADD, s.fd, &event); err != nil {
		return errors.Wrap(err, "register notification fd")
	}
	return nil
}

// ShutdownRequested is closed exactly once, the moment the subscriber
// observes input readiness. The external event loop selects on it to learn
// a stop was requested.
func (s *Subscriber) ShutdownRequested() <-chan struct{} {
	return s.stopCh
}

// Run starts the epoll wait loop in its own goroutine and returns at once.
// The loop ends once the fd hangs up (self-deregisters) or the epoll
// instance is closed.
func (s *Subscriber) Run() {
	go func() {
		var events [1]unix.EpollEvent
		for {
			n, err := unix.EpollWait(s.epollFd, events[:], -1)
			if err != nil {
				if err == unix.EINTR {
					continue
				}
				log.L.Errorf("notification subscriber: epoll wait failed, exiting: %v", err)
				return
			}
			if n == 0 {
				continue
			}

			ev := events[0]
			if ev.Events&unix.EPOLLIN != 0 {
				s.once.Do(func() { close(s.stopCh) })
			}
			if ev.Events&unix.EPOLLERR != 0 {
				log.L.Errorf("notification subscriber: fd reported error readiness")
			}
			if ev.Events&unix.EPOLLHUP != 0 {
				s.deregister()
				return
			}
		}
	}()
}

func (s *Subscriber) deregister() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deregistered {
		return
	}
	if err := unix.EpollCtl(s.epollFd, unix.EPOLL_CTL_DEL, s.fd, &unix.EpollEvent{}); err != nil {
		log.L.Warnf("notification subscriber: failed to deregister fd: %v", err)
	}
	s.deregistered = true
}

// Close releases the eventfd and epoll instance. It does not close the
// stop channel; it is closed only by a prior input event.
func (s *Subscriber) Close() {
	unix.Close(s.fd)
	unix.Close(s.epollFd)
}
