// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"fmt"
	"strings"
)

// Reason is the taxonomy of unit-operation failures from spec.md §7.
type Reason int

const (
	ReasonDependencyError Reason = iota
	ReasonServiceStartError
	ReasonServiceStopError
	ReasonSocketOpenError
	ReasonSocketCloseError
	ReasonGenericStartError
	ReasonGenericStopError
)

func (r Reason) String() string {
	switch r {
	case ReasonDependencyError:
		return "dependency-error"
	case ReasonServiceStartError:
		return "service-start-error"
	case ReasonServiceStopError:
		return "service-stop-error"
	case ReasonSocketOpenError:
		return "socket-open-error"
	case ReasonSocketCloseError:
		return "socket-close-error"
	case ReasonGenericStartError:
		return "generic-start-error"
	case ReasonGenericStopError:
		return "generic-stop-error"
	default:
		return "unknown"
	}
}

// OperationError is the error type every activation/deactivation
// operation returns on failure. Modeled on trellis's
// ValidationError/FieldError aggregate-error pattern
// (internal/config/validator.go), adapted to carry a single Reason
// plus the Ids involved rather than a list of field errors.
type OperationError struct {
	Reason  Reason
	Ids     []Id    // populated for DependencyError: the unsatisfied ids
	Wrapped error   // underlying cause, if any
	Detail  string
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason.String())
	if len(e.Ids) > 0 {
		names := make([]string, len(e.Ids))
		for i, id := range e.Ids {
			names[i] = id.Name
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(names, ", "))
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Wrapped != nil {
		fmt.Fprintf(&b, ": %v", e.Wrapped)
	}
	return b.String()
}

func (e *OperationError) Unwrap() error { return e.Wrapped }

// IsDependencyError reports whether err is a DependencyError — the one
// Reason that retry loops treat as non-terminal.
func IsDependencyError(err error) bool {
	oe, ok := err.(*OperationError)
	return ok && oe.Reason == ReasonDependencyError
}

// DependencyErr builds a DependencyError naming the unsatisfied ids.
func DependencyErr(ids ...Id) *OperationError {
	return &OperationError{Reason: ReasonDependencyError, Ids: ids}
}

// StartErr wraps a start-time failure.
func StartErr(reason Reason, detail string, cause error) *OperationError {
	return &OperationError{Reason: reason, Detail: detail, Wrapped: cause}
}

// StopErr wraps a stop-time failure.
func StopErr(reason Reason, detail string, cause error) *OperationError {
	return &OperationError{Reason: reason, Detail: detail, Wrapped: cause}
}

// Well-known start-failure details (spec.md §4.3, §7).
const (
	DetailExitBeforeNotify = "exit-before-notify"
	DetailBadExitCode      = "bad-exit-code"
	DetailTimeout          = "timeout"
	DetailBadExecPath      = "bad-exec-path"
	DetailWaitError        = "wait-error"
)
