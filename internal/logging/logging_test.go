// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_EmptyDirReturnsNopCloser(t *testing.T) {
	closer, err := Setup("")
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
}

func TestSetup_CreatesDirAndLogFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "logs")

	closer, err := Setup(dir)
	require.NoError(t, err)
	defer closer.Close()

	log.Printf("hello from test")

	data, err := os.ReadFile(filepath.Join(dir, "unitd.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestSetup_AppendsAcrossMultipleCalls(t *testing.T) {
	dir := t.TempDir()

	c1, err := Setup(dir)
	require.NoError(t, err)
	log.Printf("first line")
	require.NoError(t, c1.Close())

	c2, err := Setup(dir)
	require.NoError(t, err)
	defer c2.Close()
	log.Printf("second line")

	data, err := os.ReadFile(filepath.Join(dir, "unitd.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "first line")
	assert.Contains(t, string(data), "second line")
}
