package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	initialized bool
	inits       int
	destroys    int
	initErr     error
}

func stubRuntime(t *testing.T, rt *fakeRuntime) {
	t.Helper()
	prevInit, prevIsInit, prevDestroy := ortInitialize, ortIsInitialized, ortDestroy
	t.Cleanup(func() {
		ortInitialize, ortIsInitialized, ortDestroy = prevInit, prevIsInit, prevDestroy
	})
	ortIsInitialized = func() bool { return rt.initialized }
	ortInitialize = func() error {
		if rt.initErr != nil {
			return rt.initErr
		}
		rt.inits++
		rt.initialized = true
		return nil
	}
	ortDestroy = func() error {
		rt.destroys++
		rt.initialized = false
		return nil
	}
}

func TestAcquireEnvironment_KeepsExistingEnvironment(t *testing.T) {
	rt := &fakeRuntime{initialized: true}
	stubRuntime(t, rt)

	release, err := acquireEnvironment()
	require.NoError(t, err)
	release()

	srv := &Server{releaseEnv: release}
	srv.Close()

	assert.Zero(t, rt.inits)
	assert.Zero(t, rt.destroys)
	assert.True(t, rt.initialized)
}

func TestAcquireEnvironment_ReleasesWhatItCreated(t *testing.T) {
	rt := &fakeRuntime{}
	stubRuntime(t, rt)

	release, err := acquireEnvironment()
	require.NoError(t, err)
	assert.Equal(t, 1, rt.inits)

	(&Server{releaseEnv: release}).Close()
	assert.Equal(t, 1, rt.destroys)
	assert.False(t, rt.initialized)
}

func TestAcquireEnvironment_InitFailure(t *testing.T) {
	rt := &fakeRuntime{initErr: errors.New("no shared library")}
	stubRuntime(t, rt)

	release, err := acquireEnvironment()
	require.Error(t, err)
	assert.Nil(t, release)
	assert.Zero(t, rt.destroys)
}
