// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/KillingSpark/unitd/internal/unit"
)

// Validator checks a loaded Config for internal consistency before the
// engine starts acting on it. Grounded on trellis
// internal/config/validator.go's ValidationError-accumulator pattern.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError aggregates every FieldError found in one Validate
// call so a misconfigured unit-dirs path and a bad target unit name
// are both reported in one pass instead of one-at-a-time.
type ValidationError struct {
	Errors []FieldError
}

// FieldError names one invalid field and why.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty reports whether no errors were recorded.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add records one field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks cfg in isolation (no unit table needed): required
// fields, that every configured unit dir exists, and that target_unit
// is a name ending in .target. It does not look for the target's unit
// file; that the target unit exists is checked by ValidateUnits.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}
	v.validateRequired(cfg, errs)
	v.validateUnitDirs(cfg, errs)
	v.validateTargetUnit(cfg, errs)
	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateRequired(cfg *Config, errs *ValidationError) {
	if len(cfg.UnitDirs) == 0 {
		errs.Add("unit_dirs", "at least one unit directory is required")
	}
	if cfg.TargetUnit == "" {
		errs.Add("target_unit", "is required")
	}
}

func (v *Validator) validateUnitDirs(cfg *Config, errs *ValidationError) {
	for i, dir := range cfg.UnitDirs {
		info, err := os.Stat(dir)
		if err != nil {
			errs.Add(fmt.Sprintf("unit_dirs[%d]", i), fmt.Sprintf("does not exist: %s", err))
			continue
		}
		if !info.IsDir() {
			errs.Add(fmt.Sprintf("unit_dirs[%d]", i), "is not a directory")
		}
	}
}

func (v *Validator) validateTargetUnit(cfg *Config, errs *ValidationError) {
	if cfg.TargetUnit == "" {
		return
	}
	if _, ok := unit.NewId(cfg.TargetUnit); !ok {
		errs.Add("target_unit", fmt.Sprintf("%q has no .service/.socket/.target suffix", cfg.TargetUnit))
		return
	}
	if !strings.HasSuffix(cfg.TargetUnit, ".target") {
		errs.Add("target_unit", fmt.Sprintf("%q must name a .target unit", cfg.TargetUnit))
	}
}

// ValidateUnits cross-checks the loaded unit table against cfg: every
// unit name referenced anywhere (Sockets, Wants, Requires, ...) must
// resolve to a unit that was actually loaded, and target_unit itself
// must exist among units.
func (v *Validator) ValidateUnits(cfg *Config, units map[unit.Id]*unit.Unit) error {
	errs := &ValidationError{}

	targetId, ok := unit.NewId(cfg.TargetUnit)
	if ok {
		if _, exists := units[targetId]; !exists {
			errs.Add("target_unit", fmt.Sprintf("%q was not found among loaded units", cfg.TargetUnit))
		}
	}

	for id, u := range units {
		refs := u.Common.Dependencies.RefsByName()
		for _, ref := range refs.Slice() {
			if _, exists := units[ref]; !exists {
				errs.Add(fmt.Sprintf("%s", id), fmt.Sprintf("references unknown unit %q", ref))
			}
		}
		if svc, ok := u.IsService(); ok {
			for _, sockId := range svc.Config.Sockets {
				if _, exists := units[sockId]; !exists {
					errs.Add(fmt.Sprintf("%s", id), fmt.Sprintf("Sockets references unknown unit %q", sockId))
				}
			}
		}
	}

	if errs.IsEmpty() {
		return nil
	}
	return errs
}
