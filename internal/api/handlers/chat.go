package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/agrilens/agrilens/control-plane/internal/sessions"
	"github.com/agrilens/agrilens/control-plane/internal/uploads"
	"github.com/agrilens/agrilens/control-plane/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════
// ── Chat Sessions ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// CreateSession opens a chat session. A diagnosis handed off through
// AskAssistant is consumed here.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.Sessions.Create(r.Context())
	respondJSON(w, http.StatusCreated, s.Snapshot())
}

// GetPendingHandoff returns the diagnosis context the next session will
// open with, or 204 when nothing is pending.
func (h *Handlers) GetPendingHandoff(w http.ResponseWriter, r *http.Request) {
	dc := h.Sessions.Handoff().Pending()
	if dc == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, dc)
}

func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Sessions.List(r.Context()))
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessage posts a user message and returns the bot reply. The body is
// either JSON {"text": ...} or multipart with "text" and an optional "image".
// Backend failures come back as a bot message, not an HTTP error.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var text, imageRef string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid multipart body")
			return
		}
		text = r.FormValue("text")

		img, err := readImage(r, "image")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if img != nil {
			if h.Uploads == nil {
				respondError(w, http.StatusServiceUnavailable, "image uploads are not configured")
				return
			}
			imageRef, err = h.Uploads.Save(uuid.New().String(), *img)
			if errors.Is(err, uploads.ErrNotImage) {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err != nil {
				respondServiceError(w, err)
				return
			}
		}
	} else {
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		text = req.Text
	}

	reply, err := s.SendUserMessage(r.Context(), text, imageRef)
	if errors.Is(err, sessions.ErrEmptyMessage) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

type setLanguageRequest struct {
	Language string `json:"language"`
}

func (h *Handlers) SetSessionLanguage(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var req setLanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Language) == "" {
		respondError(w, http.StatusBadRequest, "language is required")
		return
	}
	lang, err := models.ParseLanguage(req.Language)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.SetLanguage(lang))
}

func (h *Handlers) ClearSessionContext(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	s.ClearContext()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"queries": s.SuggestedQueries(),
	})
}
