/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package errdefs defines the error taxonomy shared by the daemon lifecycle
// core: the state machine, the mount registry, the backend factory and the
// daemon facade all return errors built from this package so that the
// management API can translate a failure into a stable kind without string
// matching.
package errdefs

import "github.com/pkg/errors"

// Kind tags a DaemonError with the taxonomy from the daemon error handling
// design: it is preserved across the facade boundary and is what the
// management API maps to an HTTP status.
type Kind int

const (
	KindCommon Kind = iota
	KindInvalidArguments
	KindInvalidConfig
	KindNotFound
	KindAlreadyExists
	KindAlreadyMounted
	KindNotReady
	KindUnsupported
	KindFsTypeMismatch
	KindChannel
	KindStartService
	KindServiceStop
	KindWaitDaemon
	KindSessionShutdown
	KindUpgradeManager
	KindBackend
	KindSerde
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArguments:
		return "InvalidArguments"
	case KindInvalidConfig:
		return "InvalidConfig"
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindAlreadyMounted:
		return "AlreadyMounted"
	case KindNotReady:
		return "NotReady"
	case KindUnsupported:
		return "Unsupported"
	case KindFsTypeMismatch:
		return "FsTypeMismatch"
	case KindChannel:
		return "Channel"
	case KindStartService:
		return "StartService"
	case KindServiceStop:
		return "ServiceStop"
	case KindWaitDaemon:
		return "WaitDaemon"
	case KindSessionShutdown:
		return "SessionShutdown"
	case KindUpgradeManager:
		return "UpgradeManager"
	case KindBackend:
		return "Backend"
	case KindSerde:
		return "Serde"
	default:
		return "Common"
	}
}

// DaemonError is the concrete error type returned across the core's public
// surface. Message carries the human readable detail; Kind is what callers
// should switch on.
type DaemonError struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *DaemonError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *DaemonError) Unwrap() error {
	return e.cause
}

// New builds a DaemonError of the given kind with a formatted message.
func New(kind Kind, message string) *DaemonError {
	return &DaemonError{Kind: kind, Message: message}
}

// Wrap attaches a kind to an underlying error, keeping it unwrappable.
func Wrap(kind Kind, cause error, message string) *DaemonError {
	if cause == nil {
		return nil
	}
	if message == "" {
		message = cause.Error()
	} else {
		message = message + ": " + cause.Error()
	}
	return &DaemonError{Kind: kind, Message: message, cause: cause}
}

// Common builds the message-only fallback kind used by e.g. prefetch
// validation failures.
func Common(message string) *DaemonError {
	return New(KindCommon, message)
}

// Is reports whether err is a DaemonError of the given kind.
func Is(err error, kind Kind) bool {
	var de *DaemonError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// IsNotFound returns true if err is a NotFound DaemonError.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// IsAlreadyExists returns true if err is an AlreadyExists DaemonError.
func IsAlreadyExists(err error) bool { return Is(err, KindAlreadyExists) }

// IsAlreadyMounted returns true if err is an AlreadyMounted DaemonError.
func IsAlreadyMounted(err error) bool { return Is(err, KindAlreadyMounted) }

// IsNotReady returns true if err is a NotReady DaemonError.
func IsNotReady(err error) bool { return Is(err, KindNotReady) }
