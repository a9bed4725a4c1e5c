package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/agrilens/agrilens/control-plane/internal/diagnosis"
	"github.com/agrilens/agrilens/control-plane/internal/gateway"
	"github.com/agrilens/agrilens/control-plane/internal/store"
	"github.com/agrilens/agrilens/control-plane/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ══════════════════════════════════════════════════════════════
// ── Diagnoses ────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// CreateDiagnosis accepts multipart "image" plus optional "language" and
// "followup_question", runs the diagnosis and returns the stored record.
func (h *Handlers) CreateDiagnosis(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	img, err := readImage(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if img == nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}

	lang, err := models.ParseLanguage(r.FormValue("language"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.Diagnoses.Diagnose(r.Context(), diagnosis.Request{
		Image:            *img,
		Language:         lang,
		FollowupQuestion: r.FormValue("followup_question"),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// ══════════════════════════════════════════════════════════════
// ── History ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.HistoryQuery{
		Search: q.Get("search"),
		Status: models.StatusFilter(strings.ToLower(q.Get("status"))),
		Sort:   models.SortKey(strings.ToLower(q.Get("sort"))),
	}
	switch query.Status {
	case "", models.StatusAll, models.StatusHealthy, models.StatusDisease, models.StatusPest:
	default:
		respondError(w, http.StatusBadRequest, "status must be one of all, healthy, disease, pest")
		return
	}
	switch query.Sort {
	case "", models.SortByDate, models.SortByConfidence:
	default:
		respondError(w, http.StatusBadRequest, "sort must be date or confidence")
		return
	}

	records, err := h.History.Query(r.Context(), query)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (h *Handlers) GetHistoryRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.History.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// DeleteHistoryRecord removes one record. Unknown ids succeed.
func (h *Handlers) DeleteHistoryRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.History.Get(r.Context(), id)
	if err != nil && !store.IsNotFound(err) {
		respondServiceError(w, err)
		return
	}
	if err := h.History.Remove(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	if rec != nil {
		h.removeUpload(rec.ImageURL)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearHistory empties the history. The caller must pass confirm=true.
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		respondError(w, http.StatusBadRequest, "clearing history requires confirm=true")
		return
	}

	records, err := h.History.List(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if err := h.History.Clear(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	for _, rec := range records {
		h.removeUpload(rec.ImageURL)
	}
	w.WriteHeader(http.StatusNoContent)
}

// AskAssistant hands the record's context to the next chat session.
func (h *Handlers) AskAssistant(w http.ResponseWriter, r *http.Request) {
	rec, err := h.History.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	dc := diagnosis.ContextFor(*rec)
	h.Sessions.Handoff().Offer(dc)

	log.Debug().Str("record", rec.ID).Msg("Diagnosis handed to chat")
	respondJSON(w, http.StatusAccepted, dc)
}

// ── Helpers ──────────────────────────────────────────────────

// readImage returns the uploaded file under field, or nil if absent.
func readImage(r *http.Request, field string) (*gateway.Image, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New("invalid " + field + " upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New("invalid " + field + " upload")
	}
	if len(data) == 0 {
		return nil, errors.New(field + " is empty")
	}
	return &gateway.Image{
		Data:        data,
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
	}, nil
}

func (h *Handlers) removeUpload(ref string) {
	if h.Uploads == nil || ref == "" {
		return
	}
	if err := h.Uploads.Remove(ref); err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("Failed to remove upload")
	}
}
