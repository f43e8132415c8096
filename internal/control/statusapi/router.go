// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package statusapi is a read-only HTTP + WebSocket inspection surface
// over the unit table, additive to the JSON-RPC control plane in
// internal/control. Grounded on trellis's internal/api (router.go,
// handlers/services.go, handlers/events.go, handlers/response.go),
// scoped down from trellis's full REST CRUD surface to read-only
// inspection since mutating operations (restart/stop/enable/...) go
// through the JSON-RPC control methods, not HTTP.
package statusapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/KillingSpark/unitd/internal/events"
	"github.com/KillingSpark/unitd/internal/unittable"
)

// Dependencies holds everything the status API's handlers need.
type Dependencies struct {
	Table *unittable.Table
	Bus   events.EventBus
}

// NewRouter builds the status API's route table.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()
	r.Use(Logging)
	r.Use(Recovery)

	unitHandler := NewUnitHandler(deps.Table)
	r.HandleFunc("/units", unitHandler.List).Methods(http.MethodGet)
	r.HandleFunc("/units/{name}", unitHandler.Get).Methods(http.MethodGet)

	if deps.Bus != nil {
		eventHandler := NewEventHandler(deps.Bus)
		r.HandleFunc("/events", eventHandler.History).Methods(http.MethodGet)
		r.HandleFunc("/events/ws", eventHandler.WebSocket).Methods(http.MethodGet)
	}

	return r
}

// Server wraps an http.Server serving the status API.
type Server struct {
	router *mux.Router
	server *http.Server
}

// NewServer creates a status API server bound to addr (host:port).
func NewServer(addr string, deps Dependencies) *Server {
	router := NewRouter(deps)
	return &Server{
		router: router,
		server: &http.Server{Addr: addr, Handler: router},
	}
}

// ListenAndServe starts serving. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	log.Printf("status API listening on http://%s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	return s.server.Shutdown(shutdownCtx)
}
