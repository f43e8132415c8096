// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package fdstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KillingSpark/unitd/internal/unit"
)

func pipeFd(t *testing.T) (int, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return int(r.Fd()), r
}

func TestStore_InsertGetGlobal(t *testing.T) {
	s := New()
	id, _ := unit.NewId("web.socket")
	fd, _ := pipeFd(t)

	rejected, inserted := s.InsertGlobal("web.socket", []Entry{{Id: id, Name: "listen", Fd: fd}})
	assert.True(t, inserted)
	assert.Nil(t, rejected)

	got, ok := s.GetGlobal("web.socket")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, fd, got[0].Fd)
}

func TestStore_InsertGlobal_RejectsDuplicateName(t *testing.T) {
	s := New()
	id, _ := unit.NewId("web.socket")
	fd1, _ := pipeFd(t)
	fd2, _ := pipeFd(t)

	_, inserted := s.InsertGlobal("web.socket", []Entry{{Id: id, Name: "listen", Fd: fd1}})
	require.True(t, inserted)

	rejected, inserted := s.InsertGlobal("web.socket", []Entry{{Id: id, Name: "listen", Fd: fd2}})
	assert.False(t, inserted)
	require.Len(t, rejected, 1)
	assert.Equal(t, fd2, rejected[0].Fd)

	// The original entry is untouched.
	got, ok := s.GetGlobal("web.socket")
	require.True(t, ok)
	assert.Equal(t, fd1, got[0].Fd)
}

func TestStore_RemoveGlobal_ClosesFds(t *testing.T) {
	s := New()
	id, _ := unit.NewId("web.socket")
	fd, f := pipeFd(t)
	_, _ = s.InsertGlobal("web.socket", []Entry{{Id: id, Name: "listen", Fd: fd}})

	ok := s.RemoveGlobal("web.socket")
	assert.True(t, ok)

	_, stillThere := s.GetGlobal("web.socket")
	assert.False(t, stillThere)

	// fd should now be closed; writing to the read-end's dup should fail.
	err := f.Close()
	assert.Error(t, err) // already closed by RemoveGlobal
}

func TestStore_RemoveGlobal_Missing(t *testing.T) {
	s := New()
	assert.False(t, s.RemoveGlobal("missing.socket"))
}

func TestStore_GlobalFdsToIds(t *testing.T) {
	s := New()
	id1, _ := unit.NewId("a.socket")
	id2, _ := unit.NewId("b.socket")
	fd1, _ := pipeFd(t)
	fd2, _ := pipeFd(t)

	s.InsertGlobal("a.socket", []Entry{{Id: id1, Name: "l", Fd: fd1}})
	s.InsertGlobal("b.socket", []Entry{{Id: id2, Name: "l", Fd: fd2}})

	pairs := s.GlobalFdsToIds()
	assert.Len(t, pairs, 2)
}

func TestStore_ServiceStored_InsertRemove(t *testing.T) {
	s := New()
	fd, _ := pipeFd(t)

	s.InsertServiceStored("web.service", "cache-fd", []int{fd})

	got, ok := s.GetServiceStored("web.service", "cache-fd")
	require.True(t, ok)
	assert.Equal(t, []int{fd}, got)

	removed, ok := s.RemoveServiceStored("web.service", "cache-fd")
	require.True(t, ok)
	assert.Equal(t, []int{fd}, removed)

	_, ok = s.GetServiceStored("web.service", "cache-fd")
	assert.False(t, ok)
}

func TestStore_ServiceStored_Missing(t *testing.T) {
	s := New()
	_, ok := s.GetServiceStored("missing.service", "x")
	assert.False(t, ok)

	_, ok = s.RemoveServiceStored("missing.service", "x")
	assert.False(t, ok)
}

func TestStore_Close_ClosesEverything(t *testing.T) {
	s := New()
	id, _ := unit.NewId("web.socket")
	fd1, _ := pipeFd(t)
	fd2, _ := pipeFd(t)

	s.InsertGlobal("web.socket", []Entry{{Id: id, Name: "l", Fd: fd1}})
	s.InsertServiceStored("web.service", "cache-fd", []int{fd2})

	err := s.Close()
	assert.NoError(t, err)

	_, ok := s.GetGlobal("web.socket")
	assert.False(t, ok)
	_, ok = s.GetServiceStored("web.service", "cache-fd")
	assert.False(t, ok)
}
