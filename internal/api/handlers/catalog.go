package handlers

import (
	"net/http"
	"net/url"

	"github.com/agrilens/agrilens/control-plane/internal/catalog"
	"github.com/agrilens/agrilens/control-plane/pkg/models"
	"github.com/go-chi/chi/v5"
)

// ══════════════════════════════════════════════════════════════
// ── Catalog ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Catalog.Categories())
}

// GetTreatment looks up the curated treatment for a raw model label.
func (h *Handlers) GetTreatment(w http.ResponseWriter, r *http.Request) {
	label, err := url.PathUnescape(chi.URLParam(r, "label"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid label")
		return
	}
	t, ok := h.Catalog.Treatment(label)
	if !ok {
		respondError(w, http.StatusNotFound, "no curated treatment for "+label)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handlers) SearchKnowledge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	respondJSON(w, http.StatusOK, h.Catalog.SearchKnowledge(catalog.KnowledgeQuery{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Type:     q.Get("type"),
	}))
}

func (h *Handlers) ListLanguages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"languages": models.Languages(),
		"default":   models.DefaultLanguage,
	})
}

// ══════════════════════════════════════════════════════════════
// ── Backend Status ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// BackendStatus reports the last known backend connection state. With
// refresh=true it probes the backend first.
func (h *Handlers) BackendStatus(w http.ResponseWriter, r *http.Request) {
	if h.Monitor == nil {
		respondError(w, http.StatusServiceUnavailable, "backend monitor not configured")
		return
	}
	if r.URL.Query().Get("refresh") == "true" {
		respondJSON(w, http.StatusOK, h.Monitor.Check(r.Context()))
		return
	}
	respondJSON(w, http.StatusOK, h.Monitor.Status())
}
