// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package supervisor forks and execs service and helper processes,
// waits on their readiness, and reaps their exits. Grounded on trellis
// internal/service/process.go's Process (exec.Cmd, SysProcAttr, a
// goroutine per child blocking on cmd.Wait instead of a
// signalfd-driven waitpid(-1, WNOHANG) loop — os/exec already owns
// SIGCHLD on this platform, so the Go translation of
// original_source/src/signal_handler.rs's reaper is one goroutine per
// forked process rather than one shared reaper thread) and on
// original_source/src/services/{pre_fork,fork_child,fork_parent}.rs
// for the fd layout, environment, and privilege-drop sequencing.
package supervisor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/KillingSpark/unitd/internal/platform"
)

// HelperArgv0 is the argv[0] the daemon launches itself under to select
// exec-helper mode (spec.md §6 CLI: "a companion exec helper mode is
// selected via argv[0]"). cmd/unitd's main checks this against its own
// os.Args[0] before falling into the normal daemon entrypoint.
const HelperArgv0 = "unitd-exec-helper"

// ExecHelperConfig is the JSON payload the parent writes to the
// exec-helper's stdin before it reads it, drops privileges, and execs
// the real target (spec.md §6). Extra file descriptors (the
// socket-activation fds) are passed positionally starting at fd 3, not
// through this struct: the helper only needs to know their count and
// names to build LISTEN_FDS/LISTEN_FDNAMES.
type ExecHelperConfig struct {
	Argv              []string          `json:"argv"`
	Env               map[string]string `json:"env"`
	WorkDir           string            `json:"work_dir,omitempty"`
	Uid               int               `json:"uid,omitempty"`
	Gid               int               `json:"gid,omitempty"`
	SupplementaryGids []int             `json:"supplementary_gids,omitempty"`
	DropPrivileges    bool              `json:"drop_privileges"`
	NotifySocketPath  string            `json:"notify_socket_path,omitempty"`
	FDNames           []string          `json:"fd_names,omitempty"`
	CgroupPath        string            `json:"cgroup_path,omitempty"`
}

// RunExecHelper implements the exec-helper side of the protocol: move
// into a fresh process group, read the config from r (the helper's
// stdin), drop privileges, join the cgroup, build the environment, and
// exec the target binary in place of this process. It only returns on
// error — success replaces the calling process image and never
// returns to its caller.
func RunExecHelper(r io.Reader) error {
	// Move into our own process group before anything else, including
	// the blocking stdin read below: the launching Supervisor reads
	// back our pgid right after Start() returns, and must not observe
	// the pgid we inherited from the fork.
	if err := unix.Setpgid(0, 0); err != nil {
		return fmt.Errorf("exec helper: setpgid: %w", err)
	}

	dec := json.NewDecoder(bufio.NewReader(r))
	var cfg ExecHelperConfig
	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("exec helper: decode config: %w", err)
	}
	if len(cfg.Argv) == 0 {
		return fmt.Errorf("exec helper: empty argv")
	}

	if cfg.WorkDir != "" {
		if err := os.Chdir(cfg.WorkDir); err != nil {
			return fmt.Errorf("exec helper: chdir %s: %w", cfg.WorkDir, err)
		}
	}

	if cfg.DropPrivileges {
		if err := platform.DropPrivileges(cfg.Uid, cfg.Gid, cfg.SupplementaryGids); err != nil {
			return fmt.Errorf("exec helper: %w", err)
		}
	}

	if cfg.CgroupPath != "" {
		if err := joinCgroup(cfg.CgroupPath); err != nil {
			return fmt.Errorf("exec helper: %w", err)
		}
	}

	env := buildChildEnv(cfg)

	if err := unix.Exec(cfg.Argv[0], cfg.Argv, env); err != nil {
		return fmt.Errorf("exec helper: exec %s: %w", cfg.Argv[0], err)
	}
	return nil
}

// joinCgroup moves the calling process into the cgroup directory
// cgroupPath, which the launcher has already created (the exec helper
// only needs to add itself to it, exactly like
// original_source/src/platform/cgroups/cgroup{1,2}.rs's move_self).
func joinCgroup(cgroupPath string) error {
	drv, err := platform.NewCgroupDriver(filepath.Dir(cgroupPath), filepath.Base(cgroupPath))
	if err != nil {
		return err
	}
	return drv.AddSelf()
}

func buildChildEnv(cfg ExecHelperConfig) []string {
	env := make([]string, 0, len(cfg.Env)+4)
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	env = append(env, fmt.Sprintf("LISTEN_PID=%d", os.Getpid()))
	env = append(env, fmt.Sprintf("LISTEN_FDS=%d", len(cfg.FDNames)))
	if len(cfg.FDNames) > 0 {
		names := cfg.FDNames[0]
		for _, n := range cfg.FDNames[1:] {
			names += ":" + n
		}
		env = append(env, "LISTEN_FDNAMES="+names)
	}
	if cfg.NotifySocketPath != "" {
		env = append(env, "NOTIFY_SOCKET="+cfg.NotifySocketPath)
	}
	return env
}
