// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KillingSpark/unitd/internal/unit"
)

func TestValidator_Validate_OK(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{UnitDirs: []string{dir}, TargetUnit: "default.target"}
	assert.NoError(t, NewValidator().Validate(cfg))
}

func TestValidator_Validate_MissingRequired(t *testing.T) {
	cfg := &Config{}
	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(verr.Errors), 2)
}

func TestValidator_Validate_NonexistentDir(t *testing.T) {
	cfg := &Config{UnitDirs: []string{"/does/not/exist"}, TargetUnit: "default.target"}
	assert.Error(t, NewValidator().Validate(cfg))
}

func TestValidator_Validate_TargetUnitWrongKind(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{UnitDirs: []string{dir}, TargetUnit: "web.service"}
	assert.Error(t, NewValidator().Validate(cfg))
}

func TestValidator_ValidateUnits_DanglingReference(t *testing.T) {
	cfg := &Config{TargetUnit: "default.target"}

	svcId, _ := unit.NewId("web.service")
	sockId, _ := unit.NewId("web.socket")
	svc := unit.NewUnit(svcId, "", unit.NewServiceSpecific(unit.ServiceConfig{
		Sockets: []unit.Id{sockId},
	}))

	units := map[unit.Id]*unit.Unit{svcId: svc}

	err := NewValidator().ValidateUnits(cfg, units)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web.socket")
}

func TestValidator_ValidateUnits_OK(t *testing.T) {
	cfg := &Config{TargetUnit: "default.target"}

	targetId, _ := unit.NewId("default.target")
	target := unit.NewUnit(targetId, "", unit.NewTargetSpecific())
	units := map[unit.Id]*unit.Unit{targetId: target}

	assert.NoError(t, NewValidator().ValidateUnits(cfg, units))
}
