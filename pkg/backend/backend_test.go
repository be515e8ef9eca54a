/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package backend

import (
	"testing"
	"time"

	"github.com/dragonflyoss/image-service/pkg/errdefs"
	"github.com/dragonflyoss/image-service/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	ty, err := ParseType("rafs")
	require.NoError(t, err)
	assert.Equal(t, Image, ty)

	ty, err = ParseType("passthrough_fs")
	require.NoError(t, err)
	assert.Equal(t, Passthrough, ty)

	_, err = ParseType("bogus")
	assert.True(t, errdefs.Is(err, errdefs.KindInvalidArguments))
	assert.Contains(t, err.Error(), "rafs")
	assert.Contains(t, err.Error(), "passthrough_fs")
}

func TestValidatePrefetch(t *testing.T) {
	ok := MountCommand{PrefetchFiles: []string{"/foo/bar"}}
	assert.NoError(t, ok.ValidatePrefetch())

	bad := MountCommand{PrefetchFiles: []string{"foo/bar"}}
	err := bad.ValidatePrefetch()
	require.Error(t, err)
	assert.Equal(t, "Illegal prefetch list", err.Error())

	empty := MountCommand{}
	assert.NoError(t, empty.ValidatePrefetch())
}

func TestDescribePassthroughHasNilConfig(t *testing.T) {
	desc, err := Describe(MountCommand{BackendType: Passthrough, Mountpoint: "/m"}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, desc.SanitizedConf)
}

func TestDescribeImageSanitizesOSSCredentials(t *testing.T) {
	cfg := `{"device":{"backend":{"type":"oss","config":{"access_key_id":"id","access_key_secret":"secret","endpoint":"x"}}}}`
	desc, err := Describe(MountCommand{BackendType: Image, Mountpoint: "/m", Config: cfg}, time.Now())
	require.NoError(t, err)

	m, ok := desc.SanitizedConf.(map[string]interface{})
	require.True(t, ok)
	inner := m["device"].(map[string]interface{})["backend"].(map[string]interface{})["config"].(map[string]interface{})
	_, hasID := inner["access_key_id"]
	_, hasSecret := inner["access_key_secret"]
	assert.False(t, hasID)
	assert.False(t, hasSecret)
	assert.Equal(t, "x", inner["endpoint"])
}

func TestDescribeImageSanitizesRegistryCredentials(t *testing.T) {
	cfg := `{"device":{"backend":{"type":"registry","config":{"auth":"secret","registry_token":"tok"}}}}`
	desc, err := Describe(MountCommand{BackendType: Image, Mountpoint: "/m", Config: cfg}, time.Now())
	require.NoError(t, err)

	m := desc.SanitizedConf.(map[string]interface{})
	inner := m["device"].(map[string]interface{})["backend"].(map[string]interface{})["config"].(map[string]interface{})
	_, hasAuth := inner["auth"]
	_, hasToken := inner["registry_token"]
	assert.False(t, hasAuth)
	assert.False(t, hasToken)
}

func TestDescribeImageRejectsInvalidJSON(t *testing.T) {
	_, err := Describe(MountCommand{BackendType: Image, Config: "not json"}, time.Now())
	assert.True(t, errdefs.Is(err, errdefs.KindSerde))
}

type fakeBackend struct{ kind Type }

func (f *fakeBackend) Kind() string                    { return f.kind.String() }
func (f *fakeBackend) Superblock() (interface{}, bool) { return nil, false }

func TestFactoryValidatesPrefetchBeforeDispatch(t *testing.T) {
	called := false
	f := &Factory{
		BuildPassthrough: func(cmd MountCommand) (vfs.BackendFileSystem, error) {
			called = true
			return &fakeBackend{kind: Passthrough}, nil
		},
	}

	_, err := f.Build(MountCommand{BackendType: Passthrough, PrefetchFiles: []string{"bad"}})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestFactoryDispatchesOnBackendType(t *testing.T) {
	f := &Factory{
		BuildImage: func(cmd MountCommand, prefetch []string) (vfs.BackendFileSystem, error) {
			return &fakeBackend{kind: Image}, nil
		},
		BuildPassthrough: func(cmd MountCommand) (vfs.BackendFileSystem, error) {
			return &fakeBackend{kind: Passthrough}, nil
		},
	}

	b, err := f.Build(MountCommand{BackendType: Image, PrefetchFiles: []string{"/ok"}})
	require.NoError(t, err)
	assert.Equal(t, "rafs", b.Kind())

	b, err = f.Build(MountCommand{BackendType: Passthrough})
	require.NoError(t, err)
	assert.Equal(t, "passthrough_fs", b.Kind())
}
