package host

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"

	"github.com/sporewatch/sightingmap/internal/logging"
	"github.com/sporewatch/sightingmap/internal/storage"
	"github.com/sporewatch/sightingmap/pkg/core"
)

const maxBodySize = 1 << 20

// NewRouter wires the sightings API, the live endpoint and the health check.
func NewRouter(h *Hub, store storage.Store, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: h.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-CSRF-Token"},
		Debug:          false,
	}).Handler)

	r.Get("/healthz", healthHandler(h))
	r.Get("/live", h.ServeHTTP)

	// traced separately; the live socket is long-lived and hijacked
	r.Route("/api/sightings", func(r chi.Router) {
		r.Use(otelchi.Middleware(logging.ServiceName, otelchi.WithChiRoutes(r)))
		r.Get("/", listSightingsHandler(logger, store))
		r.Post("/", createSightingHandler(logger, store, h))
		r.Get("/{sightingID}/selections", selectionCountHandler(logger, store))
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"requestId", middleware.GetReqID(r.Context()))
		})
	}
}

func healthHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": h.SessionCount(),
		})
	}
}

// listSightingsHandler serves the widget mount payload.
func listSightingsHandler(log *slog.Logger, store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sightings, err := store.ListSightings(r.Context())
		if err != nil {
			log.Error("unable to list sightings", "err", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if sightings == nil {
			sightings = []core.Sighting{}
		}
		writeJSON(w, http.StatusOK, sightings)
	}
}

func createSightingHandler(log *slog.Logger, store storage.Store, h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			log.Debug("unable to read body", "err", err.Error())
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}

		var s core.Sighting
		if err := json.Unmarshal(body, &s); err != nil {
			log.Debug("invalid sighting", "err", err.Error())
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := store.AddSighting(r.Context(), s); err != nil {
			if errors.Is(err, storage.ErrDuplicateSighting) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			log.Error("unable to add sighting", "id", s.ID, "err", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		// the sighting is stored; a failed broadcast is picked up by the next publish
		if err := h.Republish(r.Context()); err != nil {
			log.Error("unable to publish snapshot", "err", err.Error())
		}

		writeJSON(w, http.StatusCreated, s)
	}
}

func selectionCountHandler(log *slog.Logger, store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := core.SightingID(chi.URLParam(r, "sightingID"))

		count, err := store.CountSelections(r.Context(), id)
		if err != nil {
			log.Error("unable to count selections", "id", id, "err", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "selections": count})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
