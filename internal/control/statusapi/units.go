// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package statusapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/KillingSpark/unitd/internal/control"
	"github.com/KillingSpark/unitd/internal/unit"
	"github.com/KillingSpark/unitd/internal/unittable"
)

// UnitHandler serves read-only unit inspection endpoints, the HTTP
// analogue of the "status"/"list-units" JSON-RPC methods.
type UnitHandler struct {
	table *unittable.Table
}

// NewUnitHandler creates a new unit handler.
func NewUnitHandler(table *unittable.Table) *UnitHandler {
	return &UnitHandler{table: table}
}

// List returns every unit, optionally filtered by ?kind=service|socket|target.
func (h *UnitHandler) List(w http.ResponseWriter, r *http.Request) {
	kindFilter := r.URL.Query().Get("kind")

	units := h.table.All()
	out := make([]map[string]interface{}, 0, len(units))
	for _, u := range units {
		if kindFilter != "" && u.Id.Kind.String() != kindFilter {
			continue
		}
		out = append(out, control.FormatUnit(u))
	}
	WriteJSON(w, http.StatusOK, out)
}

// Get returns a single unit by its full name, e.g. "web.service".
func (h *UnitHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	id, ok := unit.NewId(name)
	if !ok {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "unrecognized unit suffix: "+name)
		return
	}

	u, ok := h.table.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "unit not found: "+name)
		return
	}

	WriteJSON(w, http.StatusOK, control.FormatUnit(u))
}
