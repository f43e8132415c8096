// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"

	"github.com/KillingSpark/unitd/internal/unit"
)

// launchSpec describes one process to fork, whether it is a service's
// main exec or a helper command (ExecStartPre/ExecStop/...).
type launchSpec struct {
	Argv       []string
	Env        map[string]string
	WorkDir    string
	ExecConfig unit.ExecConfig
	// NotifySocketPath and FDs are set only for a service's main exec;
	// helper commands get neither (original_source only wires the
	// notification socket and activation fds to the main process).
	NotifySocketPath string
	FDs              []fdEntry
	CgroupPath       string
	// CapturePipes requests stdout/stderr pipe capture (spec.md §4.3
	// pre-fork step 2) when no file sink is configured. Only set for a
	// service's main exec; helper commands fall back to /dev/null.
	CapturePipes bool
}

type fdEntry struct {
	Name string
	Fd   int
}

// launch forks selfExe under HelperArgv0, feeding it the ExecHelperConfig
// on stdin and passing spec.FDs as contiguous extra files starting at
// fd 3 (exec.Cmd appends ExtraFiles right after stdin/stdout/stderr, so
// this is "for free" rather than the manual renumbering
// original_source/src/services/fork_child.rs does by hand). It also
// returns the parent-side read end of each stdout/stderr capture pipe
// it opened (nil when a file sink was configured, CapturePipes was
// false, or that stream is otherwise not being captured); callers that
// get back a non-nil reader own it and must eventually drain it to EOF.
func (s *Supervisor) launch(spec launchSpec) (cmd *exec.Cmd, stdoutRead, stderrRead *os.File, err error) {
	cfg := ExecHelperConfig{
		Argv:             spec.Argv,
		Env:              mergeEnv(spec.ExecConfig.Env, spec.Env),
		WorkDir:          spec.WorkDir,
		DropPrivileges:   spec.ExecConfig.User != "" || spec.ExecConfig.Group != "",
		NotifySocketPath: spec.NotifySocketPath,
		CgroupPath:       spec.CgroupPath,
	}
	if cfg.DropPrivileges {
		uid, gid, groups, err := s.lookupUser(spec.ExecConfig)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg.Uid, cfg.Gid, cfg.SupplementaryGids = uid, gid, groups
	}
	for _, e := range spec.FDs {
		cfg.FDNames = append(cfg.FDNames, e.Name)
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("supervisor: marshal exec helper config: %w", err)
	}

	cmd = exec.Command(s.selfExe)
	cmd.Args = []string{HelperArgv0}
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Dir = spec.WorkDir

	stdoutRead, stderrRead, err = s.attachStdio(cmd, spec.ExecConfig, spec.CapturePipes)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, e := range spec.FDs {
		cmd.ExtraFiles = append(cmd.ExtraFiles, os.NewFile(uintptr(e.Fd), e.Name))
	}

	if err := cmd.Start(); err != nil {
		closeParentPipeEnd(cmd.Stdout, stdoutRead)
		closeParentPipeEnd(cmd.Stderr, stderrRead)
		return nil, nil, nil, fmt.Errorf("supervisor: start %v: %w", spec.Argv, err)
	}

	// The child now holds its own dup of each pipe's write end; the
	// parent's copy must close so the read end observes EOF once the
	// child exits, rather than only once this process does.
	closeParentPipeEnd(cmd.Stdout, stdoutRead)
	closeParentPipeEnd(cmd.Stderr, stderrRead)
	return cmd, stdoutRead, stderrRead, nil
}

// closeParentPipeEnd closes writeEnd's parent-side fd, but only when
// readEnd is non-nil, i.e. writeEnd is a capture pipe this call opened
// rather than a file sink (which has no reader and stays open).
func closeParentPipeEnd(writeEnd io.Writer, readEnd *os.File) {
	if readEnd == nil {
		return
	}
	if f, ok := writeEnd.(*os.File); ok {
		_ = f.Close()
	}
}

// attachStdio wires cmd's stdout/stderr to a file sink when configured,
// otherwise to a freshly opened pipe when capturePipes is set (spec.md
// §4.3 pre-fork step 2), otherwise leaves them unset ("/dev/null").
// The returned *os.File values are the parent-side read ends of any
// pipes opened, for the caller to hand to a fan-in reader goroutine.
func (s *Supervisor) attachStdio(cmd *exec.Cmd, ec unit.ExecConfig, capturePipes bool) (stdoutRead, stderrRead *os.File, err error) {
	stdoutWrite, stdoutRead, err := s.stdioTarget(ec.StdoutPath, capturePipes)
	if err != nil {
		return nil, nil, err
	}
	if stdoutWrite != nil {
		cmd.Stdout = stdoutWrite
	}
	stderrWrite, stderrRead, err := s.stdioTarget(ec.StderrPath, capturePipes)
	if err != nil {
		return nil, nil, err
	}
	if stderrWrite != nil {
		cmd.Stderr = stderrWrite
	}
	return stdoutRead, stderrRead, nil
}

// stdioTarget resolves one stream's child-side write end and, when a
// fresh capture pipe was opened for it, the parent-side read end.
func (s *Supervisor) stdioTarget(path string, capturePipes bool) (childEnd, readEnd *os.File, err error) {
	if path != "" {
		f, err := openSink(path)
		return f, nil, err
	}
	if !capturePipes {
		return nil, nil, nil
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("supervisor: open capture pipe: %w", err)
	}
	return w, r, nil
}

func openSink(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open log sink %s: %w", path, err)
	}
	return f, nil
}

// fanInOutput is the notification-stream reader for one service's
// captured stdout or stderr (spec.md §5): it reads lines until the
// write end closes — the service process has exited — and forwards
// each line into the engine's own log output tagged by unit and
// stream. One goroutine per captured stream per process, mirroring
// reap's one-goroutine-per-process reasoning (os/exec already owns the
// child's fds; there is no shared fd set to multiplex with a single
// poll loop the way a hand-rolled fork/exec reaper could).
func (s *Supervisor) fanInOutput(id unit.Id, stream string, r *os.File) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), bufio.MaxScanTokenSize)
	for scanner.Scan() {
		log.Printf("%s[%s]: %s", id, stream, scanner.Text())
	}
}

func (s *Supervisor) lookupUser(ec unit.ExecConfig) (uid, gid int, groups []int, err error) {
	uid, gid, groups, err = s.userLookup(ec.User)
	if err != nil {
		return 0, 0, nil, err
	}
	if ec.Group != "" {
		gid, err = s.groupLookup(ec.Group)
		if err != nil {
			return 0, 0, nil, err
		}
	}
	for _, g := range ec.SupplementaryGroups {
		extra, err := s.groupLookup(g)
		if err != nil {
			return 0, 0, nil, err
		}
		groups = append(groups, extra)
	}
	return uid, gid, groups, nil
}

func mergeEnv(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
