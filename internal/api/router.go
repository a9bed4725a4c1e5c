package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agrilens/agrilens/control-plane/internal/api/handlers"
	"github.com/agrilens/agrilens/control-plane/internal/api/middleware"
	"github.com/agrilens/agrilens/control-plane/internal/config"
	"github.com/agrilens/agrilens/control-plane/internal/uploads"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// ServiceName identifies this process in health and version responses.
const ServiceName = "agrilens-control-plane"

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler(h.Store))
	r.Get("/version", versionHandler(cfg))

	// Stored images referenced by history records and chat messages
	if h.Uploads != nil {
		fs := http.StripPrefix(uploads.URLPrefix, http.FileServer(http.Dir(h.Uploads.Dir())))
		r.Get(uploads.URLPrefix+"*", fs.ServeHTTP)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Diagnosis
		r.Post("/diagnoses", h.CreateDiagnosis)

		// History
		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.ListHistory)
			r.Delete("/", h.ClearHistory)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetHistoryRecord)
				r.Delete("/", h.DeleteHistoryRecord)
				r.Post("/ask", h.AskAssistant)
			})
		})

		// Chat sessions
		r.Get("/chat/handoff", h.GetPendingHandoff)
		r.Route("/chat/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Post("/messages", h.SendMessage)
				r.Put("/language", h.SetSessionLanguage)
				r.Delete("/context", h.ClearSessionContext)
				r.Get("/suggestions", h.GetSuggestions)
				r.Get("/stream", h.StreamSession)
			})
		})

		// Catalog
		r.Get("/categories", h.ListCategories)
		r.Get("/treatments/{label}", h.GetTreatment)
		r.Get("/knowledge", h.SearchKnowledge)
		r.Get("/languages", h.ListLanguages)

		// Backend connectivity
		r.Get("/backend/status", h.BackendStatus)
	})

	return r
}

// pinger is the part of the store the health check needs.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler reports healthy while the store answers a ping. The
// inference backend is reported separately by /api/v1/backend/status.
func healthHandler(p pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("Health check: store unreachable")
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  status,
			"service": ServiceName,
		})
	}
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": ServiceName,
		})
	}
}
