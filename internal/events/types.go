// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the in-memory event bus used to fan out
// control and reload events (unit.restarted, control.shutdown,
// config.reload) to the control surface's WebSocket stream and to any
// in-process subscribers. The unit.* state-transition types below are
// defined here but are not published by the activation engine.
// Grounded on trellis's internal/events
// package; adapted from per-worktree events to per-unit events.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Unit      string                 `json:"unit,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types []string  // Event types to match (supports wildcards)
	Unit  string    // Filter by unit name
	Since time.Time // Events after this time
	Until time.Time // Events before this time
	Limit int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Event type constants. Mirrors the service.* family trellis defines
// in internal/events/types.go, renamed to the unit engine's vocabulary.
const (
	EventUnitStarting  = "unit.starting"
	EventUnitStarted   = "unit.started"
	EventUnitStopping  = "unit.stopping"
	EventUnitStopped   = "unit.stopped"
	EventUnitCrashed   = "unit.crashed"
	EventUnitRestarted = "unit.restarted"

	EventSocketActivated = "socket.activated"

	EventControlShutdown = "control.shutdown"
)
