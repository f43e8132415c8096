// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package control implements the JSON-RPC 2.0 control surface and the
// signal glue that drives orderly shutdown (spec.md §4.6). Grounded on
// original_source/src/control/control.rs's Command enum and
// execute_command dispatch, and on original_source/src/control/
// jsonrpc2.rs's streaming Call/Response envelope (ported to Go as
// pkg/rpctypes).
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/KillingSpark/unitd/internal/activation"
	"github.com/KillingSpark/unitd/internal/config"
	"github.com/KillingSpark/unitd/internal/events"
	"github.com/KillingSpark/unitd/internal/graph"
	"github.com/KillingSpark/unitd/internal/unit"
	"github.com/KillingSpark/unitd/internal/unittable"
	"github.com/KillingSpark/unitd/pkg/rpctypes"
)

// Dispatcher routes one decoded JSON-RPC call to the engine operation
// it names, mirroring control.rs's parse_command + execute_command
// split but folded into a single method-name switch per spec.md §4.6.
type Dispatcher struct {
	Table  *unittable.Table
	Engine *activation.Engine
	Config *config.Config
	Bus    events.EventBus

	// OnShutdown is invoked in its own goroutine once the shutdown
	// engine operation has completed, without waiting for the success
	// response to be written to the caller. It is responsible for
	// removing the control-socket path
	// and terminating the process (spec.md §4.6: "then removes the
	// control-socket path; then exits with code 0").
	OnShutdown func()
}

// Dispatch executes one call and returns either a result value (to be
// wrapped in a success Response) or an *rpctypes.Error.
func (d *Dispatcher) Dispatch(method string, params json.RawMessage) (interface{}, *rpctypes.Error) {
	switch method {
	case "status":
		return d.status(params)
	case "list-units":
		return d.listUnits(params)
	case "restart":
		return d.restart(params)
	case "stop":
		return d.stop(params)
	case "shutdown":
		return d.shutdown()
	case "enable":
		return d.enable(params)
	case "reload":
		return d.reload()
	default:
		return nil, rpctypes.NewError(rpctypes.MethodNotFound, fmt.Sprintf("unknown method: %s", method), nil)
	}
}

// singleStringParam decodes params as either absent or a bare JSON
// string, the shape status/restart/stop all share.
func singleStringParam(params json.RawMessage) (string, bool, error) {
	if len(params) == 0 {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(params, &s); err != nil {
		return "", false, fmt.Errorf("params must be a single string")
	}
	return s, true, nil
}

func (d *Dispatcher) status(params json.RawMessage) (interface{}, *rpctypes.Error) {
	name, has, err := singleStringParam(params)
	if err != nil {
		return nil, rpctypes.NewError(rpctypes.InvalidParams, err.Error(), nil)
	}

	result := make([]interface{}, 0)
	for _, u := range d.Table.All() {
		if has && u.Id.Name != name {
			continue
		}
		result = append(result, FormatUnit(u))
	}
	return result, nil
}

func (d *Dispatcher) listUnits(params json.RawMessage) (interface{}, *rpctypes.Error) {
	kindName, has, err := singleStringParam(params)
	if err != nil {
		return nil, rpctypes.NewError(rpctypes.InvalidParams, err.Error(), nil)
	}

	var kind unit.Kind
	if has {
		switch kindName {
		case "service":
			kind = unit.KindService
		case "socket":
			kind = unit.KindSocket
		case "target":
			kind = unit.KindTarget
		default:
			return nil, rpctypes.NewError(rpctypes.InvalidParams, fmt.Sprintf("kind not recognized: %s", kindName), nil)
		}
	}

	names := make([]string, 0)
	for _, id := range d.Table.Ids() {
		if has && id.Kind != kind {
			continue
		}
		names = append(names, id.Name)
	}
	return names, nil
}

// resolveServiceId finds the unit named name, defaulting to a
// ".service" suffix if none was given, matching control.rs's
// find_unit_with_name (restart/stop only ever target services).
func (d *Dispatcher) resolveServiceId(name string) (unit.Id, error) {
	id, ok := unit.NewId(name)
	if !ok {
		id, ok = unit.NewId(name + ".service")
	}
	if !ok {
		return unit.Id{}, fmt.Errorf("no unit found with name: %s", name)
	}
	u, ok := d.Table.Get(id)
	if !ok {
		return unit.Id{}, fmt.Errorf("no unit found with name: %s", name)
	}
	if _, isSvc := u.IsService(); !isSvc {
		return unit.Id{}, fmt.Errorf("no unit found with name: %s", name)
	}
	return id, nil
}

func (d *Dispatcher) restart(params json.RawMessage) (interface{}, *rpctypes.Error) {
	name, has, err := singleStringParam(params)
	if err != nil || !has {
		return nil, rpctypes.NewError(rpctypes.InvalidParams, "params must be a single string", nil)
	}

	id, rerr := d.resolveServiceId(name)
	if rerr != nil {
		return nil, rpctypes.NewError(rpctypes.ServerError, rerr.Error(), nil)
	}

	if err := d.Engine.Deactivate(id); err != nil {
		return nil, rpctypes.NewError(rpctypes.ServerError, err.Error(), nil)
	}
	if err := d.Engine.Activate(id, activation.Regular); err != nil {
		return nil, rpctypes.NewError(rpctypes.ServerError, err.Error(), nil)
	}
	d.publish(events.EventUnitRestarted, id.Name)
	return []interface{}{}, nil
}

func (d *Dispatcher) stop(params json.RawMessage) (interface{}, *rpctypes.Error) {
	name, has, err := singleStringParam(params)
	if err != nil || !has {
		return nil, rpctypes.NewError(rpctypes.InvalidParams, "params must be a single string", nil)
	}

	id, rerr := d.resolveServiceId(name)
	if rerr != nil {
		return nil, rpctypes.NewError(rpctypes.ServerError, rerr.Error(), nil)
	}

	if err := d.Engine.Deactivate(id); err != nil {
		return nil, rpctypes.NewError(rpctypes.ServerError, err.Error(), nil)
	}
	return []interface{}{}, nil
}

func (d *Dispatcher) shutdown() (interface{}, *rpctypes.Error) {
	errs := d.Engine.ShutdownAll()
	for _, err := range errs {
		log.Printf("control: shutdown: %v", err)
	}
	d.publish(events.EventControlShutdown, "")
	if d.OnShutdown != nil {
		go d.OnShutdown()
	}
	return []interface{}{}, nil
}

// enableParam decodes either a bare string or an array of strings,
// matching control.rs's Command::LoadNew params shape.
func enableParam(params json.RawMessage) ([]string, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("params must be at least one string")
	}
	var single string
	if err := json.Unmarshal(params, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(params, &many); err == nil {
		return many, nil
	}
	return nil, fmt.Errorf("params must be at least one string")
}

func (d *Dispatcher) enable(params json.RawMessage) (interface{}, *rpctypes.Error) {
	names, err := enableParam(params)
	if err != nil {
		return nil, rpctypes.NewError(rpctypes.InvalidParams, err.Error(), nil)
	}

	newUnits := make(map[unit.Id]*unit.Unit, len(names))
	for _, name := range names {
		u, err := config.LoadNamedUnit(d.Config.UnitDirs, name)
		if err != nil {
			return nil, rpctypes.NewError(rpctypes.ServerError, err.Error(), nil)
		}
		if _, exists := d.Table.Get(u.Id); exists {
			return nil, rpctypes.NewError(rpctypes.ServerError, fmt.Sprintf("name %s exists already", u.Id.Name), nil)
		}
		newUnits[u.Id] = u
	}

	if err := d.insertNewUnits(newUnits); err != nil {
		return nil, rpctypes.NewError(rpctypes.ServerError, err.Error(), nil)
	}

	enabled := make([]string, 0, len(names))
	for id := range newUnits {
		enabled = append(enabled, id.Name)
	}
	return map[string]interface{}{"enabled": enabled}, nil
}

func (d *Dispatcher) reload() (interface{}, *rpctypes.Error) {
	existing := make(map[string]bool)
	for _, id := range d.Table.Ids() {
		existing[id.Name] = true
	}

	candidates := make(map[unit.Id]*unit.Unit)
	for _, dir := range d.Config.UnitDirs {
		found, err := config.LoadUnitDir(dir)
		if err != nil {
			return nil, rpctypes.NewError(rpctypes.ServerError, fmt.Sprintf("error while loading unit definitions: %v", err), nil)
		}
		for id, u := range found {
			candidates[id] = u
		}
	}

	added := make([]string, 0)
	ignored := make([]string, 0)
	newUnits := make(map[unit.Id]*unit.Unit)
	for id, u := range candidates {
		if existing[id.Name] {
			ignored = append(ignored, id.Name)
			continue
		}
		added = append(added, id.Name)
		newUnits[id] = u
	}

	if err := d.insertNewUnits(newUnits); err != nil {
		return nil, rpctypes.NewError(rpctypes.ServerError, err.Error(), nil)
	}

	return map[string]interface{}{"added": added, "ignored": ignored}, nil
}

// insertNewUnits wires newUnits' dependency edges against the full
// table snapshot (rebuilding the mirror/pairing relations the way
// graph.Build does for a fresh load) and then adds each to the table.
// Grounded on original_source/src/units/insert_new.rs's
// insert_new_unit, adapted from its manual before/after/requires
// cross-wiring to a re-run of package graph's existing, idempotent
// Build over the combined set.
func (d *Dispatcher) insertNewUnits(newUnits map[unit.Id]*unit.Unit) error {
	if len(newUnits) == 0 {
		return nil
	}

	combined := make(map[unit.Id]*unit.Unit, len(newUnits)+d.Table.Len())
	for _, u := range d.Table.All() {
		combined[u.Id] = u
	}
	for id, u := range newUnits {
		combined[id] = u
	}

	if err := graph.Build(combined); err != nil {
		return err
	}

	for id, u := range newUnits {
		if err := d.Table.Add(u); err != nil {
			return fmt.Errorf("id %s exists already", id)
		}
	}
	return nil
}

func (d *Dispatcher) publish(eventType, unitName string) {
	if d.Bus == nil {
		return
	}
	d.Bus.Publish(context.Background(), events.Event{
		Type:    eventType,
		Unit:    unitName,
		Payload: map[string]interface{}{},
	})
}

// unitStatusName renders a Snapshot's state the way the control
// surface exposes it over the wire: lower-kebab state, with the
// sub-state appended in parentheses when it carries information.
func unitStatusName(snap unit.Snapshot) string {
	switch snap.State {
	case unit.StateStarted:
		return fmt.Sprintf("started (%s)", snap.StartedSub)
	case unit.StateStopped:
		return fmt.Sprintf("stopped (%s)", snap.StoppedSub)
	default:
		return snap.State.String()
	}
}
