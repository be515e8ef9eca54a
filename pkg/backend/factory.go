/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package backend

import (
	"github.com/dragonflyoss/image-service/pkg/errdefs"
	"github.com/dragonflyoss/image-service/pkg/vfs"
)

// ImageBuilder constructs and imports an Image backend. Out-of-scope per the
// daemon's purpose and scope (the real metadata reader/blob cache live
// elsewhere); see pkg/rafs for the in-tree stand-in that satisfies this.
type ImageBuilder func(cmd MountCommand, prefetch []string) (vfs.BackendFileSystem, error)

// PassthroughBuilder constructs and imports a Passthrough backend; see
// pkg/passthrough for the in-tree stand-in.
type PassthroughBuilder func(cmd MountCommand) (vfs.BackendFileSystem, error)

// Factory builds backend instances from mount commands, dispatching on
// backend type. It is deliberately ignorant of the concrete backend
// packages so that pkg/rafs and pkg/passthrough stay swappable.
type Factory struct {
	BuildImage       ImageBuilder
	BuildPassthrough PassthroughBuilder
}

// Build validates the prefetch list, then dispatches on cmd.BackendType,
// halting on the first failure, matching the factory contract's ordering.
func (f *Factory) Build(cmd MountCommand) (vfs.BackendFileSystem, error) {
	if err := cmd.ValidatePrefetch(); err != nil {
		return nil, err
	}

	switch cmd.BackendType {
	case Image:
		return f.BuildImage(cmd, cmd.PrefetchFiles)
	case Passthrough:
		return f.BuildPassthrough(cmd)
	default:
		return nil, errdefs.New(errdefs.KindInvalidArguments, "unknown backend type: "+cmd.BackendType.String())
	}
}
