package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ironnas/backend/irond/internal/config"
	"ironnas/backend/irond/internal/poolsvc"
	"ironnas/backend/irond/pkg/httpx"
)

func Logger(cfg config.Config) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := log.Logger.Level(cfg.LogLevel).With().Timestamp().Logger()
	return &logger
}

func NewRouter(cfg config.Config, svc *poolsvc.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(zerologMiddleware(Logger(cfg)))

	// Dev CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "version": "0.1.0"})
	})
	r.Handle("/metrics", promhttp.Handler())

	h := &handlers{svc: svc}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/drives", h.listDrives)

		r.Route("/pools", func(r chi.Router) {
			r.Get("/", h.listPools)
			r.Post("/", h.createPool)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getPool)
				r.Delete("/", h.removePool)
				r.Post("/mount", h.mountPool)
				r.Post("/unmount", h.unmountPool)
				r.Delete("/metadata", h.forgetPool)
				r.Get("/operations", h.poolOperations)
			})
		})

		r.Route("/operations", func(r chi.Router) {
			r.Get("/", h.listOperations)
			r.Get("/{id}", h.getOperation)
			r.Post("/{id}/cancel", h.cancelOperation)
		})
	})

	return r
}

type handlers struct {
	svc *poolsvc.Service
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps facade sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, poolsvc.ErrUnknownPool):
		httpx.WriteTypedError(w, http.StatusNotFound, "pool.not_found", err.Error())
	case errors.Is(err, poolsvc.ErrBusy):
		httpx.WriteTypedError(w, http.StatusConflict, "pool.busy", err.Error())
	case errors.Is(err, poolsvc.ErrLabelTaken):
		httpx.WriteTypedError(w, http.StatusConflict, "pool.label_taken", err.Error())
	case errors.Is(err, poolsvc.ErrPoolMounted):
		httpx.WriteTypedError(w, http.StatusPreconditionFailed, "pool.mounted", err.Error())
	case errors.Is(err, poolsvc.ErrPoolNotMounted):
		httpx.WriteTypedError(w, http.StatusPreconditionFailed, "pool.not_mounted", err.Error())
	case errors.Is(err, poolsvc.ErrLabelRequired),
		errors.Is(err, poolsvc.ErrUnsupportedRAID),
		errors.Is(err, poolsvc.ErrNotEnoughDrives),
		errors.Is(err, poolsvc.ErrDriveNotFound),
		errors.Is(err, poolsvc.ErrDriveInUse),
		errors.Is(err, poolsvc.ErrDriveUnstable):
		httpx.WriteTypedError(w, http.StatusUnprocessableEntity, "pool.invalid_request", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
