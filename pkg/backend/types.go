/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package backend defines the backend type tag, the mount/unmount command
// shapes, the sanitized descriptor stored in the mount registry, and the
// factory that turns a mount command into a concrete backend instance.
package backend

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dragonflyoss/image-service/pkg/errdefs"
)

// Type tags which kind of backend a mount command targets.
type Type int

const (
	Image Type = iota
	Passthrough
)

// String renders the wire form used by the management API and by
// BackendDescriptor's JSON encoding.
func (t Type) String() string {
	switch t {
	case Image:
		return "rafs"
	case Passthrough:
		return "passthrough_fs"
	default:
		return "unknown"
	}
}

// MarshalJSON renders Type as its wire string.
func (t Type) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON parses Type from its wire string, the inverse of
// MarshalJSON.
func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType parses the lowercase wire strings "rafs" and "passthrough_fs".
// Any other value is an InvalidArguments error enumerating the accepted
// values.
func ParseType(s string) (Type, error) {
	switch s {
	case "rafs":
		return Image, nil
	case "passthrough_fs":
		return Passthrough, nil
	default:
		return 0, errdefs.New(errdefs.KindInvalidArguments,
			"fs backend type only accepts 'rafs' and 'passthrough_fs', but '"+s+"' was specified")
	}
}

// MountCommand describes a request to mount a backend at a mountpoint. The
// JSON field names are the stable wire names from the management command
// shapes.
type MountCommand struct {
	BackendType   Type     `json:"fs_type"`
	Source        string   `json:"source"`
	Config        string   `json:"config"`
	Mountpoint    string   `json:"mountpoint"`
	PrefetchFiles []string `json:"prefetch_files,omitempty"`
}

// UnmountCommand describes a request to unmount a mountpoint.
type UnmountCommand struct {
	Mountpoint string `json:"mountpoint"`
}

// BackendDescriptor is the sanitized public record kept by the mount
// registry and exported via DaemonInfo.
type BackendDescriptor struct {
	BackendType   Type        `json:"backend_type"`
	Mountpoint    string      `json:"mountpoint"`
	MountedAt     time.Time   `json:"mounted_at"`
	SanitizedConf interface{} `json:"sanitized_config"`
}

// ValidatePrefetch enforces the prefetch invariant: every entry, if
// present, must begin with "/".
func (c MountCommand) ValidatePrefetch() error {
	for _, f := range c.PrefetchFiles {
		if !strings.HasPrefix(f, "/") {
			return errdefs.Common("Illegal prefetch list")
		}
	}
	return nil
}
