/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestInputReadinessPublishesShutdown(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Register())
	s.Run()

	var buf [8]byte
	buf[7] = 1
	_, err = unix.Write(s.fd, buf[:])
	require.NoError(t, err)

	select {
	case <-s.ShutdownRequested():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown was not published within the deadline")
	}
}

// Real eventfds never produce EPOLLHUP on their own (there is no peer to
// hang up), so self-deregistration is exercised directly rather than by
// trying to provoke a hangup through the kernel.
func TestDeregisterIsIdempotent(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Register())

	s.deregister()
	assert.True(t, s.deregistered)

	assert.NotPanics(t, func() { s.deregister() })
}

func TestCloneHandle(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	dup, err := s.CloneHandle()
	require.NoError(t, err)
	defer unix.Close(dup)
	assert.NotEqual(t, s.fd, dup)
}
