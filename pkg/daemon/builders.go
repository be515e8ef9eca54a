/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package daemon

import (
	"github.com/dragonflyoss/image-service/pkg/backend"
	"github.com/dragonflyoss/image-service/pkg/errdefs"
	"github.com/dragonflyoss/image-service/pkg/passthrough"
	"github.com/dragonflyoss/image-service/pkg/rafs"
	"github.com/dragonflyoss/image-service/pkg/vfs"
)

// BuildImage is the backend.ImageBuilder grounded on §4.4's Image steps:
// parse the config, open the source as a metadata reader, instantiate at
// the mountpoint, import using the reader and the validated prefetch list.
func BuildImage(cmd backend.MountCommand, prefetch []string) (vfs.BackendFileSystem, error) {
	cfg, err := rafs.ParseConfig(cmd.Config)
	if err != nil {
		return nil, err
	}

	b, err := rafs.Open(cmd.Source, cmd.Mountpoint, cfg)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindBackend, err, "open rafs backend")
	}

	if err := b.Import(prefetch); err != nil {
		return nil, err
	}
	return b, nil
}

// BuildPassthrough is the backend.PassthroughBuilder grounded on §4.4's
// Passthrough steps: synthesize root_dir=cmd.Source, do_import=false,
// writeback=true, no_open=true, instantiate, import.
func BuildPassthrough(cmd backend.MountCommand) (vfs.BackendFileSystem, error) {
	cfg := passthrough.Config{
		RootDir:   cmd.Source,
		DoImport:  false,
		Writeback: true,
		NoOpen:    true,
	}

	b, err := passthrough.Open(cfg)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindBackend, err, "open passthrough backend")
	}

	if err := b.Import(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewFactory returns the backend.Factory wired to this module's concrete
// rafs/passthrough stand-ins.
func NewFactory() *backend.Factory {
	return &backend.Factory{BuildImage: BuildImage, BuildPassthrough: BuildPassthrough}
}
