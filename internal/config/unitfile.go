// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config implements everything spec.md §6 calls an "external
// interface": the unit-file parser, the engine config loader and
// validator, and the unit-directory reload watcher. Grounded on
// original_source/src/units/unit_parsing/ for the unit-file grammar
// and on trellis internal/config for the engine config loader/
// validator technique and internal/watcher for the reload watcher.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/KillingSpark/unitd/internal/unit"
)

// section is one [Name] block of a unit file: keys upper-cased,
// values accumulated in file order (repeated keys append, comma-
// separated values on one line expand to several entries). Grounded
// on original_source/src/units/unit_parsing/unit_parser.rs's
// parse_section/ParsedSection.
type section map[string][]string

// parseUnitFile splits a unit file's raw bytes into its named
// sections. Lines before the first "[Name]" header are ignored; a
// section name repeated later in the file is an error, matching
// original_source's SectionTooOften.
func parseUnitFile(data []byte) (map[string]section, error) {
	lines := strings.Split(string(data), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	sections := make(map[string]section)
	i := 0
	for i < len(lines) && !strings.HasPrefix(lines[i], "[") {
		i++
	}
	if i == len(lines) {
		return nil, fmt.Errorf("config: no section header found")
	}

	flush := func(name string, body []string) error {
		if _, exists := sections[name]; exists {
			return fmt.Errorf("config: section [%s] appears more than once", name)
		}
		sections[name] = parseSection(body)
		return nil
	}

	currentName := sectionName(lines[i])
	i++
	var body []string
	for i < len(lines) {
		line := lines[i]
		if strings.HasPrefix(line, "[") {
			if err := flush(currentName, body); err != nil {
				return nil, err
			}
			currentName = sectionName(line)
			body = nil
		} else {
			body = append(body, line)
		}
		i++
	}
	if err := flush(currentName, body); err != nil {
		return nil, err
	}
	return sections, nil
}

func sectionName(headerLine string) string {
	return strings.Trim(headerLine, "[]")
}

func parseSection(lines []string) section {
	entries := make(section)
	for _, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		for _, v := range strings.Split(value, ",") {
			entries[key] = append(entries[key], v)
		}
	}
	return entries
}

// take removes and returns every value recorded for key, the same
// consume-as-you-parse pattern original_source's ParsedSection::remove
// uses so a caller can detect unrecognized settings by checking
// what's left over afterward.
func (s section) take(key string) []string {
	v := s[key]
	delete(s, key)
	return v
}

func (s section) takeOne(key string) (string, error) {
	v := s.take(key)
	switch len(v) {
	case 0:
		return "", nil
	case 1:
		return v[0], nil
	default:
		return "", fmt.Errorf("config: %s has more than one value: %v", key, v)
	}
}

func (s section) unused() error {
	for k := range s {
		return fmt.Errorf("config: unused setting %q", k)
	}
	return nil
}

// stringToBool matches original_source's string_to_bool: "yes"/"true"
// (any case) or the literal digit "1".
func stringToBool(s string) bool {
	if s == "" {
		return false
	}
	upper := strings.ToUpper(s)
	return upper == "YES" || upper == "TRUE" || (len(s) == 1 && s[0] == '1')
}

// LoadUnitFile parses one unit file into a *unit.Unit. The unit's Id
// is derived from the file name, including its .service/.socket/
// .target suffix.
func LoadUnitFile(path string) (*unit.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	id, ok := unit.NewId(filepath.Base(path))
	if !ok {
		return nil, fmt.Errorf("config: %s has no recognized unit suffix", path)
	}

	sections, err := parseUnitFile(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	switch id.Kind {
	case unit.KindService:
		return buildServiceUnit(id, sections)
	case unit.KindSocket:
		return buildSocketUnit(id, sections)
	case unit.KindTarget:
		return buildTargetUnit(id, sections)
	default:
		return nil, fmt.Errorf("config: %s: unknown unit kind", path)
	}
}

// LoadUnitDir parses every .service/.socket/.target file directly
// under dir (non-recursive, matching original_source's get_file_list)
// into a map keyed by Id, ready for package graph.
func LoadUnitDir(dir string) (map[unit.Id]*unit.Unit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("config: read unit dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := unit.KindFromName(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	units := make(map[unit.Id]*unit.Unit, len(names))
	for _, name := range names {
		u, err := LoadUnitFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if _, dup := units[u.Id]; dup {
			return nil, fmt.Errorf("config: duplicate unit %s", u.Id)
		}
		units[u.Id] = u
	}
	return units, nil
}

// applyUnitSection reads [Unit]'s Wants/Requires/After/Before and
// Description into u.Common.
func applyUnitSection(u *unit.Unit, sections map[string]section) error {
	sec, ok := sections["Unit"]
	if !ok {
		return nil
	}
	desc, err := sec.takeOne("DESCRIPTION")
	if err != nil {
		return err
	}
	u.Common.Description = desc

	if err := addIds(u.Common.Dependencies.Wants, sec.take("WANTS")); err != nil {
		return err
	}
	if err := addIds(u.Common.Dependencies.Requires, sec.take("REQUIRES")); err != nil {
		return err
	}
	if err := addIds(u.Common.Dependencies.After, sec.take("AFTER")); err != nil {
		return err
	}
	if err := addIds(u.Common.Dependencies.Before, sec.take("BEFORE")); err != nil {
		return err
	}
	return sec.unused()
}

// applyInstallSection reads [Install]'s WantedBy/RequiredBy. These
// name units that want/require *this* unit, so they're recorded on
// this unit's own WantedBy/RequiredBy sets; package graph's mirror
// pass adds the matching Wants/Requires entry to the referenced unit.
func applyInstallSection(u *unit.Unit, sections map[string]section) error {
	sec, ok := sections["Install"]
	if !ok {
		return nil
	}
	if err := addIds(u.Common.Dependencies.WantedBy, sec.take("WANTEDBY")); err != nil {
		return err
	}
	if err := addIds(u.Common.Dependencies.RequiredBy, sec.take("REQUIREDBY")); err != nil {
		return err
	}
	return sec.unused()
}

func addIds(set unit.IdSet, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, ok := unit.NewId(name)
		if !ok {
			return fmt.Errorf("config: %q is not a valid unit reference", name)
		}
		set.Add(id)
	}
	return nil
}

func buildTargetUnit(id unit.Id, sections map[string]section) (*unit.Unit, error) {
	for name := range sections {
		if name != "Unit" && name != "Install" {
			return nil, fmt.Errorf("config: %s: unknown section [%s]", id, name)
		}
	}
	u := unit.NewUnit(id, "", unit.NewTargetSpecific())
	if err := applyUnitSection(u, sections); err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	if err := applyInstallSection(u, sections); err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	return u, nil
}

// execConfigFrom reads the exec-related keys shared by [Service] and
// [Socket] sections: USER, GROUP, STANDARDOUTPUT, STANDARDERROR,
// SUPPLEMENTARYGROUPS, ENVIRONMENT.
func execConfigFrom(sec section) (unit.ExecConfig, error) {
	var ec unit.ExecConfig
	var err error

	if ec.User, err = sec.takeOne("USER"); err != nil {
		return ec, err
	}
	if ec.Group, err = sec.takeOne("GROUP"); err != nil {
		return ec, err
	}

	stdout, err := sec.takeOne("STANDARDOUTPUT")
	if err != nil {
		return ec, err
	}
	if stdout != "" {
		if ec.StdoutPath, err = stdioPath(stdout); err != nil {
			return ec, err
		}
	}
	stderr, err := sec.takeOne("STANDARDERROR")
	if err != nil {
		return ec, err
	}
	if stderr != "" {
		if ec.StderrPath, err = stdioPath(stderr); err != nil {
			return ec, err
		}
	}

	for _, line := range sec.take("SUPPLEMENTARYGROUPS") {
		ec.SupplementaryGroups = append(ec.SupplementaryGroups, strings.Fields(line)...)
	}

	if envLines := sec.take("ENVIRONMENT"); len(envLines) > 0 {
		ec.Env = make(map[string]string)
		for _, line := range envLines {
			words, err := splitWords(line)
			if err != nil {
				return ec, err
			}
			for _, w := range words {
				k, v, ok := strings.Cut(w, "=")
				if !ok {
					return ec, fmt.Errorf("config: invalid Environment entry %q", w)
				}
				ec.Env[k] = v
			}
		}
	}

	return ec, nil
}

// stdioPath strips the "file:"/"append:" prefix spec.md §6 recognizes
// for StandardOutput/StandardError. The supervisor always appends
// (internal/supervisor's openSink), so the two prefixes collapse to
// the same stored path.
func stdioPath(setting string) (string, error) {
	if p, ok := strings.CutPrefix(setting, "file:"); ok {
		return p, nil
	}
	if p, ok := strings.CutPrefix(setting, "append:"); ok {
		return p, nil
	}
	return "", fmt.Errorf("config: unsupported StandardOutput/StandardError setting %q", setting)
}

func parseCommand(raw string) (unit.Command, error) {
	words, err := splitWords(raw)
	if err != nil {
		return unit.Command{}, err
	}
	if len(words) == 0 {
		return unit.Command{}, fmt.Errorf("config: empty command line")
	}
	cmd := words[0]
	ignore := false
	for len(cmd) > 0 && cmd[0] == '-' {
		ignore = true
		cmd = cmd[1:]
	}
	if cmd == "" {
		return unit.Command{}, fmt.Errorf("config: empty executable path in %q", raw)
	}
	argv := append([]string{cmd}, words[1:]...)
	return unit.Command{Argv: argv, IgnoreFailure: ignore}, nil
}

func parseCommands(raw []string) ([]unit.Command, error) {
	cmds := make([]unit.Command, 0, len(raw))
	for _, line := range raw {
		c, err := parseCommand(line)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}

func buildServiceUnit(id unit.Id, sections map[string]section) (*unit.Unit, error) {
	for name := range sections {
		if name != "Unit" && name != "Install" && name != "Service" {
			return nil, fmt.Errorf("config: %s: unknown section [%s]", id, name)
		}
	}
	sec, ok := sections["Service"]
	if !ok {
		return nil, fmt.Errorf("config: %s: missing [Service] section", id)
	}

	execLine, err := sec.takeOne("EXECSTART")
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	if execLine == "" {
		return nil, fmt.Errorf("config: %s: ExecStart is required", id)
	}
	exec, err := parseCommand(execLine)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	stop, err := parseCommands(sec.take("EXECSTOP"))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	stopPost, err := parseCommands(sec.take("EXECSTOPPOST"))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	startPre, err := parseCommands(sec.take("EXECSTARTPRE"))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	startPost, err := parseCommands(sec.take("EXECSTARTPOST"))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	startTimeoutRaw, err := sec.takeOne("TIMEOUTSTARTSEC")
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	stopTimeoutRaw, err := sec.takeOne("TIMEOUTSTOPSEC")
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	generalTimeoutRaw, err := sec.takeOne("TIMEOUTSEC")
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	startTimeout, err := parseTimeout(startTimeoutRaw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	stopTimeout, err := parseTimeout(stopTimeoutRaw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	generalTimeout, err := parseTimeout(generalTimeoutRaw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	restartRaw, err := sec.takeOne("RESTART")
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	restart := unit.RestartNo
	switch strings.ToUpper(restartRaw) {
	case "", "NO":
		restart = unit.RestartNo
	case "ALWAYS":
		restart = unit.RestartAlways
	default:
		return nil, fmt.Errorf("config: %s: unknown Restart value %q", id, restartRaw)
	}

	typeRaw, err := sec.takeOne("TYPE")
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	svcType := unit.Simple
	switch typeRaw {
	case "", "simple":
		svcType = unit.Simple
	case "notify":
		svcType = unit.Notify
	case "oneshot":
		svcType = unit.OneShot
	case "dbus":
		svcType = unit.Dbus
	default:
		return nil, fmt.Errorf("config: %s: unknown Type value %q", id, typeRaw)
	}

	notifyAccess, err := sec.takeOne("NOTIFYACCESS")
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	acceptRaw, err := sec.takeOne("ACCEPT")
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	dbusName, err := sec.takeOne("BUSNAME")
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	if svcType == unit.Dbus && dbusName == "" {
		return nil, fmt.Errorf("config: %s: BusName is required for Type=dbus", id)
	}

	sockets, err := idsFrom(sec.take("SOCKETS"))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	execConfig, err := execConfigFrom(sec)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	if err := sec.unused(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	cfg := unit.ServiceConfig{
		Type:         svcType,
		Exec:         exec,
		Stop:         stop,
		StopPost:     stopPost,
		StartPre:     startPre,
		StartPost:    startPost,
		Restart:      restart,
		NotifyAccess: notifyAccess,
		Accept:       stringToBool(acceptRaw),
		DBusName:     dbusName,
		Timeouts:     unit.Timeouts{Start: startTimeout, Stop: stopTimeout, General: generalTimeout},
		ExecConfig:   execConfig,
		Sockets:      sockets,
	}

	u := unit.NewUnit(id, "", unit.NewServiceSpecific(cfg))
	if err := applyUnitSection(u, sections); err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	if err := applyInstallSection(u, sections); err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	return u, nil
}

func idsFrom(names []string) ([]unit.Id, error) {
	var ids []unit.Id
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, ok := unit.NewId(name)
		if !ok {
			return nil, fmt.Errorf("%q is not a valid unit reference", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func buildSocketUnit(id unit.Id, sections map[string]section) (*unit.Unit, error) {
	for name := range sections {
		if name != "Unit" && name != "Install" && name != "Socket" {
			return nil, fmt.Errorf("config: %s: unknown section [%s]", id, name)
		}
	}
	sec, ok := sections["Socket"]
	if !ok {
		return nil, fmt.Errorf("config: %s: missing [Socket] section", id)
	}

	fdName, err := sec.takeOne("FILEDESCRIPTORNAME")
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	services, err := idsFrom(sec.take("SERVICE"))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	type kinded struct {
		kind unit.SocketKind
		addr string
	}
	var ordered []kinded
	for _, addr := range sec.take("LISTENSTREAM") {
		ordered = append(ordered, kinded{unit.SocketStream, addr})
	}
	for _, addr := range sec.take("LISTENDATAGRAM") {
		ordered = append(ordered, kinded{unit.SocketDatagram, addr})
	}
	for _, addr := range sec.take("LISTENSEQUENTIALPACKET") {
		ordered = append(ordered, kinded{unit.SocketSeqPacket, addr})
	}
	for _, addr := range sec.take("LISTENFIFO") {
		ordered = append(ordered, kinded{unit.SocketFifo, addr})
	}

	singles := make([]unit.SingleSocketConfig, 0, len(ordered))
	for _, k := range ordered {
		addr, err := parseSocketAddr(k.kind, k.addr)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", id, err)
		}
		singles = append(singles, unit.SingleSocketConfig{Kind: k.kind, Addr: addr, FileDescName: fdName})
	}

	if _, err := execConfigFrom(sec); err != nil {
		// A socket unit's exec-related keys (User/Group/...) apply to
		// any inetd-style accept helper; spec.md's socket activation
		// model has no such helper, so they're accepted and discarded
		// rather than rejected as unused settings.
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	if err := sec.unused(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}

	cfg := unit.SocketConfig{Sockets: singles, Services: services}
	u := unit.NewUnit(id, "", unit.NewSocketSpecific(cfg))
	if err := applyUnitSection(u, sections); err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	if err := applyInstallSection(u, sections); err != nil {
		return nil, fmt.Errorf("config: %s: %w", id, err)
	}
	return u, nil
}

// parseSocketAddr maps a single Listen* value to a SpecializedAddr.
// Unix-domain paths start with "/" or "./"; anything else for a
// Stream/Datagram kind is parsed as a "host:port" pair. FIFO and
// SeqPacket are unix-domain only, matching original_source's
// parse_unix_addr/parse_socket_section.
func parseSocketAddr(kind unit.SocketKind, addr string) (unit.SpecializedAddr, error) {
	isUnixPath := strings.HasPrefix(addr, "/") || strings.HasPrefix(addr, "./")

	if kind == unit.SocketFifo {
		if !isUnixPath {
			return unit.SpecializedAddr{}, fmt.Errorf("unknown socket address %q for ListenFifo", addr)
		}
		return unit.SpecializedAddr{Family: unit.AddrFifoPath, Path: addr}, nil
	}
	if kind == unit.SocketSeqPacket {
		if !isUnixPath {
			return unit.SpecializedAddr{}, fmt.Errorf("unknown socket address %q for ListenSequentialPacket", addr)
		}
		return unit.SpecializedAddr{Family: unit.AddrUnix, Path: addr}, nil
	}

	if isUnixPath {
		return unit.SpecializedAddr{Family: unit.AddrUnix, Path: addr}, nil
	}

	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return unit.SpecializedAddr{}, fmt.Errorf("unknown socket address %q", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return unit.SpecializedAddr{}, fmt.Errorf("invalid port in %q: %w", addr, err)
	}

	v6 := strings.Contains(host, ":")
	switch {
	case kind == unit.SocketStream && v6:
		return unit.SpecializedAddr{Family: unit.AddrIPv6TCP, Host: host, Port: port}, nil
	case kind == unit.SocketStream:
		return unit.SpecializedAddr{Family: unit.AddrIPv4TCP, Host: host, Port: port}, nil
	case v6:
		return unit.SpecializedAddr{Family: unit.AddrIPv6UDP, Host: host, Port: port}, nil
	default:
		return unit.SpecializedAddr{Family: unit.AddrIPv4UDP, Host: host, Port: port}, nil
	}
}

// splitHostPort splits "host:port" or "[host]:port", tolerating bare
// IPv6 literals with multiple colons by requiring the last colon to
// separate the port.
func splitHostPort(addr string) (host, port string, err error) {
	idx := strings.LastIndexByte(addr, ':')
	if idx < 0 {
		return "", "", fmt.Errorf("no port in %q", addr)
	}
	host = strings.Trim(addr[:idx], "[]")
	port = addr[idx+1:]
	if host == "" || port == "" {
		return "", "", fmt.Errorf("malformed address %q", addr)
	}
	return host, port, nil
}
