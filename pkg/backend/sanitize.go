/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package backend

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dragonflyoss/image-service/pkg/errdefs"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Describe builds the sanitized BackendDescriptor stored in the mount
// registry for cmd. Passthrough backends carry no config at all; Image
// backends have their config washed of credentials before being kept.
func Describe(cmd MountCommand, mountedAt time.Time) (BackendDescriptor, error) {
	if cmd.BackendType != Image {
		return BackendDescriptor{
			BackendType:   cmd.BackendType,
			Mountpoint:    cmd.Mountpoint,
			MountedAt:     mountedAt,
			SanitizedConf: nil,
		}, nil
	}

	sanitized, err := sanitizeImageConfig(cmd.Config)
	if err != nil {
		return BackendDescriptor{}, err
	}

	return BackendDescriptor{
		BackendType:   cmd.BackendType,
		Mountpoint:    cmd.Mountpoint,
		MountedAt:     mountedAt,
		SanitizedConf: sanitized,
	}, nil
}

// sanitizeImageConfig erases credential fields from an Image backend's
// config per the sanitization rule: if device.backend.type is "oss", erase
// device.backend.config.access_key_id and .access_key_secret; if
// "registry", erase device.backend.config.auth and .registry_token. An
// empty config yields a nil sanitized config, as rafs.ParseConfig accepts it.
func sanitizeImageConfig(config string) (interface{}, error) {
	if strings.TrimSpace(config) == "" {
		return nil, nil
	}
	if !gjson.Valid(config) {
		return nil, errdefs.New(errdefs.KindSerde, "parse backend config: invalid json")
	}

	washed := config
	switch gjson.Get(washed, "device.backend.type").String() {
	case "oss":
		washed = eraseAll(washed,
			"device.backend.config.access_key_id",
			"device.backend.config.access_key_secret")
	case "registry":
		washed = eraseAll(washed,
			"device.backend.config.auth",
			"device.backend.config.registry_token")
	}

	var out interface{}
	if err := json.Unmarshal([]byte(washed), &out); err != nil {
		return nil, errdefs.Wrap(errdefs.KindSerde, err, "decode sanitized config")
	}
	return out, nil
}

func eraseAll(doc string, paths ...string) string {
	for _, p := range paths {
		if !gjson.Get(doc, p).Exists() {
			continue
		}
		updated, err := sjson.Delete(doc, p)
		if err != nil {
			continue
		}
		doc = updated
	}
	return doc
}
