package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"medlocator/m/internal/apperr"
	"medlocator/m/internal/auth"
	"medlocator/m/internal/geofeed"
	"medlocator/m/internal/inventory"
	"medlocator/m/internal/logging"
	"medlocator/m/internal/search"
	"medlocator/m/internal/store"
)

// Services are the operations the HTTP API exposes.
type Services struct {
	Auth      *auth.Service
	Inventory *inventory.Service
	Search    *search.Engine
	Catalog   *store.Store
	Feed      *geofeed.Feed
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	svc    Services
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Handler.
func New(svc Services, logger *zap.Logger) *Handler {
	now := time.Now
	if svc.Catalog != nil {
		now = svc.Catalog.Now
	}
	return &Handler{svc: svc, logger: logger, now: now}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(h.identify)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(requireIdentity)
			protected.Post("/reset-password", h.resetPassword)
			protected.Get("/me", h.me)
		})
	})

	r.Get("/search", h.search)
	r.Get("/medicines", h.searchMedicines)
	r.Get("/api/pharmacies", h.pharmacyLocations)

	r.Route("/pharmacy", func(r chi.Router) {
		r.Use(requireIdentity)
		r.Get("/profile", h.profile)
		r.Put("/profile", h.saveProfile)
		r.Put("/location", h.updateLocation)
		r.Route("/listings", func(r chi.Router) {
			r.Get("/", h.listListings)
			r.Post("/", h.addListing)
			r.Get("/expiry-alert", h.expiryAlerts)
			r.Put("/{id}", h.updateListing)
			r.Delete("/{id}", h.deleteListing)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireIdentity)
		r.Get("/pharmacies/pending", h.pendingPharmacies)
		r.Post("/accounts/{id}/approve", h.approveAccount)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// identify resolves an optional bearer token into the request identity.
// Requests without an Authorization header stay anonymous; a header that does
// not resolve is rejected.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := h.svc.Auth.Resolve(r.Context(), strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.FromContext(r.Context()) == nil {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// fail writes err as a JSON error. Internal causes are logged, not returned.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	respondError(w, statusOf(kind), apperr.MessageOf(err))
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden, apperr.KindNotApproved:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
