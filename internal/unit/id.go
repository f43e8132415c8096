// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package unit holds the core data model of the unit engine: unit
// identities, dependency sets, status, and the per-kind configuration
// and runtime state for services, sockets, and targets.
package unit

import "strings"

// Kind identifies what sort of unit an UnitId refers to.
type Kind int

const (
	KindService Kind = iota
	KindSocket
	KindTarget
)

func (k Kind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindSocket:
		return "socket"
	case KindTarget:
		return "target"
	default:
		return "unknown"
	}
}

// suffix returns the unit-file suffix for a kind, e.g. ".service".
func (k Kind) suffix() string {
	switch k {
	case KindService:
		return ".service"
	case KindSocket:
		return ".socket"
	case KindTarget:
		return ".target"
	default:
		return ""
	}
}

// KindFromName infers the Kind from a unit's file-name suffix.
func KindFromName(name string) (Kind, bool) {
	switch {
	case strings.HasSuffix(name, ".service"):
		return KindService, true
	case strings.HasSuffix(name, ".socket"):
		return KindSocket, true
	case strings.HasSuffix(name, ".target"):
		return KindTarget, true
	default:
		return 0, false
	}
}

// Id is the identity of a unit. Equality and ordering are defined
// purely in terms of Name; two Ids with the same Name but different
// Kind are never constructed (the suffix determines Kind).
type Id struct {
	Kind Kind
	Name string
}

// NewId constructs an Id from a full name including suffix, e.g. "foo.service".
func NewId(name string) (Id, bool) {
	k, ok := KindFromName(name)
	if !ok {
		return Id{}, false
	}
	return Id{Kind: k, Name: name}, true
}

// BaseName returns the name without its unit-kind suffix, used for
// implicit socket/service pairing by basename.
func (id Id) BaseName() string {
	return strings.TrimSuffix(id.Name, id.Kind.suffix())
}

func (id Id) String() string { return id.Name }

// Less orders Ids by Name. It is the total order the lock-acquisition
// protocol in package unittable relies on.
func (id Id) Less(other Id) bool { return id.Name < other.Name }
