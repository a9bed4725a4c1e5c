// Package handlers implements the HTTP handlers for the AgriLens control plane.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agrilens/agrilens/control-plane/internal/catalog"
	"github.com/agrilens/agrilens/control-plane/internal/diagnosis"
	"github.com/agrilens/agrilens/control-plane/internal/gateway"
	"github.com/agrilens/agrilens/control-plane/internal/history"
	"github.com/agrilens/agrilens/control-plane/internal/monitor"
	"github.com/agrilens/agrilens/control-plane/internal/sessions"
	"github.com/agrilens/agrilens/control-plane/internal/store"
	"github.com/agrilens/agrilens/control-plane/internal/uploads"
)

// maxImageBytes bounds multipart uploads.
const maxImageBytes = 10 << 20

// Handlers holds all handler dependencies.
type Handlers struct {
	Diagnoses *diagnosis.Orchestrator
	History   *history.Store
	Catalog   *catalog.Catalog
	Sessions  *sessions.Manager
	Uploads   *uploads.Store
	Monitor   *monitor.HealthMonitor

	// Store backs the history; /health pings it when set.
	Store store.Store

	// AllowedOrigins gates websocket upgrades; "*" allows any origin.
	AllowedOrigins []string
}

// New creates a new Handlers instance with all dependencies.
func New(d *diagnosis.Orchestrator, h *history.Store, cat *catalog.Catalog, sess *sessions.Manager, up *uploads.Store, mon *monitor.HealthMonitor) *Handlers {
	return &Handlers{
		Diagnoses:      d,
		History:        h,
		Catalog:        cat,
		Sessions:       sess,
		Uploads:        up,
		Monitor:        mon,
		AllowedOrigins: []string{"*"},
	}
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps domain errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case store.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, gateway.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, gateway.UserMessage(err))
	case gateway.KindOf(err) != nil:
		respondError(w, http.StatusBadGateway, gateway.UserMessage(err))
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
