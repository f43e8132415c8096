// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package unit

// TargetState is the (empty) mutable runtime state of a target unit.
// Targets have no process and hold no interesting state beyond Status;
// the type exists so Specific's tagged variant is symmetric across
// kinds.
type TargetState struct{}

// Specific is the tagged variant distinguishing what kind of unit this
// is and the per-kind config/state that goes with it (spec.md §3). It
// intentionally has three arms and no inheritance hierarchy — the
// polymorphism-over-unit-kinds design note in spec.md §9.
type Specific struct {
	Service *ServiceSpecific
	Socket  *SocketSpecific
	Target  *TargetState
}

type ServiceSpecific struct {
	Config ServiceConfig
	State  *ServiceState
}

type SocketSpecific struct {
	Config SocketConfig
	State  *SocketState
}

// NewServiceSpecific builds the Specific arm for a service unit.
func NewServiceSpecific(cfg ServiceConfig) Specific {
	return Specific{Service: &ServiceSpecific{Config: cfg, State: NewServiceState()}}
}

// NewSocketSpecific builds the Specific arm for a socket unit.
func NewSocketSpecific(cfg SocketConfig) Specific {
	return Specific{Socket: &SocketSpecific{Config: cfg, State: NewSocketState()}}
}

// NewTargetSpecific builds the Specific arm for a target unit.
func NewTargetSpecific() Specific {
	return Specific{Target: &TargetState{}}
}

// Common holds the fields shared by every unit kind (spec.md §3).
type Common struct {
	Description string
	Status      *Status

	mu           struct{} // dependencies are not independently locked; callers take Status or Specific locks as the protocol requires
	Dependencies Dependencies
}

// Unit is one entry of the Unit Table.
type Unit struct {
	Id       Id
	Common   Common
	Specific Specific
}

// NewUnit constructs a Unit in the NeverStarted state with empty
// dependency sets. Callers fill in Dependencies via package graph.
func NewUnit(id Id, description string, specific Specific) *Unit {
	return &Unit{
		Id: id,
		Common: Common{
			Description:  description,
			Status:       NewStatus(),
			Dependencies: NewDependencies(),
		},
		Specific: specific,
	}
}

// IsService reports whether this unit is a service and returns its
// specific arm.
func (u *Unit) IsService() (*ServiceSpecific, bool) {
	return u.Specific.Service, u.Specific.Service != nil
}

// IsSocket reports whether this unit is a socket and returns its
// specific arm.
func (u *Unit) IsSocket() (*SocketSpecific, bool) {
	return u.Specific.Socket, u.Specific.Socket != nil
}

// IsTarget reports whether this unit is a target.
func (u *Unit) IsTarget() bool {
	return u.Specific.Target != nil
}
