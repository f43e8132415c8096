// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KillingSpark/unitd/internal/unit"
)

func writeTempUnit(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadUnitFile_Service(t *testing.T) {
	path := writeTempUnit(t, "web.service", `[Unit]
Description=web frontend
Wants=network.target
After=network.target

[Service]
Type=notify
ExecStart=/usr/bin/web-server --port 8080
ExecStop=-/usr/bin/web-server --stop
Restart=always
TimeoutStartSec=30
Sockets=web.socket
Environment=FOO=bar BAZ=qux
User=web

[Install]
WantedBy=multi-user.target
`)

	u, err := LoadUnitFile(path)
	require.NoError(t, err)

	assert.Equal(t, "web frontend", u.Common.Description)
	assert.True(t, u.Common.Dependencies.Wants.Has(mustTestId(t, "network.target")))
	assert.True(t, u.Common.Dependencies.After.Has(mustTestId(t, "network.target")))
	assert.True(t, u.Common.Dependencies.WantedBy.Has(mustTestId(t, "multi-user.target")))

	svc, ok := u.IsService()
	require.True(t, ok)
	assert.Equal(t, unit.Notify, svc.Config.Type)
	assert.Equal(t, []string{"/usr/bin/web-server", "--port", "8080"}, svc.Config.Exec.Argv)
	assert.False(t, svc.Config.Exec.IgnoreFailure)
	require.Len(t, svc.Config.Stop, 1)
	assert.True(t, svc.Config.Stop[0].IgnoreFailure)
	assert.Equal(t, unit.RestartAlways, svc.Config.Restart)
	require.NotNil(t, svc.Config.Timeouts.Start)
	assert.Equal(t, "bar", svc.Config.ExecConfig.Env["FOO"])
	assert.Equal(t, "qux", svc.Config.ExecConfig.Env["BAZ"])
	assert.Equal(t, "web", svc.Config.ExecConfig.User)
	require.Len(t, svc.Config.Sockets, 1)
	assert.Equal(t, "web.socket", svc.Config.Sockets[0].Name)
}

func TestLoadUnitFile_Service_MissingExecStart(t *testing.T) {
	path := writeTempUnit(t, "broken.service", "[Service]\nType=simple\n")
	_, err := LoadUnitFile(path)
	assert.Error(t, err)
}

func TestLoadUnitFile_Service_UnknownKey(t *testing.T) {
	path := writeTempUnit(t, "broken.service", "[Service]\nExecStart=/bin/true\nBogusKey=1\n")
	_, err := LoadUnitFile(path)
	assert.Error(t, err)
}

func TestLoadUnitFile_Service_DbusRequiresBusName(t *testing.T) {
	path := writeTempUnit(t, "bus.service", "[Service]\nType=dbus\nExecStart=/bin/true\n")
	_, err := LoadUnitFile(path)
	assert.Error(t, err)
}

func TestLoadUnitFile_Socket(t *testing.T) {
	path := writeTempUnit(t, "web.socket", `[Socket]
ListenStream=127.0.0.1:8080
ListenStream=/run/web.sock
FileDescriptorName=web
Service=web.service
`)
	u, err := LoadUnitFile(path)
	require.NoError(t, err)

	sock, ok := u.IsSocket()
	require.True(t, ok)
	require.Len(t, sock.Config.Sockets, 2)
	assert.Equal(t, unit.SocketStream, sock.Config.Sockets[0].Kind)
	assert.Equal(t, unit.AddrIPv4TCP, sock.Config.Sockets[0].Addr.Family)
	assert.Equal(t, "127.0.0.1", sock.Config.Sockets[0].Addr.Host)
	assert.Equal(t, 8080, sock.Config.Sockets[0].Addr.Port)
	assert.Equal(t, unit.AddrUnix, sock.Config.Sockets[1].Addr.Family)
	assert.Equal(t, "/run/web.sock", sock.Config.Sockets[1].Addr.Path)
	require.Len(t, sock.Config.Services, 1)
	assert.Equal(t, "web.service", sock.Config.Services[0].Name)
}

func TestLoadUnitFile_Socket_Fifo(t *testing.T) {
	path := writeTempUnit(t, "log.socket", "[Socket]\nListenFifo=/run/log.fifo\n")
	u, err := LoadUnitFile(path)
	require.NoError(t, err)
	sock, ok := u.IsSocket()
	require.True(t, ok)
	require.Len(t, sock.Config.Sockets, 1)
	assert.Equal(t, unit.SocketFifo, sock.Config.Sockets[0].Kind)
	assert.Equal(t, unit.AddrFifoPath, sock.Config.Sockets[0].Addr.Family)
}

func TestLoadUnitFile_Target(t *testing.T) {
	path := writeTempUnit(t, "multi-user.target", "[Unit]\nDescription=multi user\nRequires=web.service\n")
	u, err := LoadUnitFile(path)
	require.NoError(t, err)
	assert.True(t, u.IsTarget())
	assert.True(t, u.Common.Dependencies.Requires.Has(mustTestId(t, "web.service")))
}

func TestParseUnitFile_DuplicateSection(t *testing.T) {
	_, err := parseUnitFile([]byte("[Unit]\nDescription=a\n[Unit]\nDescription=b\n"))
	assert.Error(t, err)
}

func TestLoadUnitDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.service"), []byte("[Service]\nExecStart=/bin/true\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.target"), []byte("[Unit]\nDescription=b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("noise"), 0o644))

	units, err := LoadUnitDir(dir)
	require.NoError(t, err)
	assert.Len(t, units, 2)
}

func mustTestId(t *testing.T, name string) unit.Id {
	t.Helper()
	id, ok := unit.NewId(name)
	require.True(t, ok)
	return id
}
