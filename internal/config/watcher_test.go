// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirWatcher_TriggersOnCreate(t *testing.T) {
	dir := t.TempDir()

	w, err := NewDirWatcher(nil, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	var calls int32
	w.OnReload = func() { atomic.AddInt32(&calls, 1) }

	require.NoError(t, w.Watch(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.service"), []byte("[Service]\nExecStart=/bin/true\n"), 0o644))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestDirWatcher_CoalescesBurst(t *testing.T) {
	dir := t.TempDir()

	w, err := NewDirWatcher(nil, 100*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	var calls int32
	w.OnReload = func() { atomic.AddInt32(&calls, 1) }

	require.NoError(t, w.Watch(dir))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.service"), []byte("x"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 1
	}, time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDirWatcher_RefCounting(t *testing.T) {
	dir := t.TempDir()

	w, err := NewDirWatcher(nil, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(dir))
	require.NoError(t, w.Watch(dir))
	w.Unwatch(dir)

	var calls int32
	w.OnReload = func() { atomic.AddInt32(&calls, 1) }

	require.NoError(t, os.WriteFile(filepath.Join(dir, "still.service"), []byte("x"), 0o644))
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 1
	}, time.Second, 10*time.Millisecond)

	w.Unwatch(dir)
}
