// Package api exposes HTTP handlers for the segmentor service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/torhovland/segmentor/internal/auth"
	"github.com/torhovland/segmentor/internal/domain"
	"github.com/torhovland/segmentor/internal/session"
	"github.com/torhovland/segmentor/internal/strava"
	"github.com/torhovland/segmentor/internal/transport/ws"
)

// TokenExchanger is the OAuth collaborator: it builds the consent URL and trades codes for tokens.
type TokenExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*strava.TokenGrant, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the static settings of the handler.
type Options struct {
	IndexPath      string
	StaticDir      string
	SecureCookies  bool
	AllowedOrigins []string
}

// Handler coordinates HTTP requests with the domain service and sync sessions.
type Handler struct {
	service   *domain.Service
	runner    *session.Runner
	upgrader  *ws.Upgrader
	exchanger TokenExchanger
	states    *auth.StateSigner
	pinger    Pinger
	validate  *validator.Validate
	opts      Options
	logger    zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, runner *session.Runner, exchanger TokenExchanger, states *auth.StateSigner, opts Options, logger zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		runner:    runner,
		upgrader:  ws.NewUpgrader(ws.UpgraderConfig{AllowedOrigins: opts.AllowedOrigins}),
		exchanger: exchanger,
		states:    states,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		opts:      opts,
		logger:    logger,
	}
}

// WithPinger enables the store connectivity check on /healthz.
func (h *Handler) WithPinger(p Pinger) *Handler {
	h.pinger = p
	return h
}

// Router builds the chi router with middleware and all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	if len(h.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.index)
	r.Handle("/static/*", http.StripPrefix("/static", http.FileServer(http.Dir(h.opts.StaticDir))))
	r.Get("/login", h.login)
	r.Get("/callback", h.callback)
	r.Get("/sync", h.sync)
	r.Get("/activities", h.listActivities)
	r.Post("/users", h.createUser)
	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", promhttp.Handler())
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, h.opts.IndexPath)
}

// healthz reports OK, or 503 when the store is unreachable.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", "store unreachable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.service.ListActivities(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list activities")
		writeError(w, http.StatusInternalServerError, "server_error", "failed to list activities")
		return
	}
	if activities == nil {
		activities = []domain.StoredActivity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// CreateUserRequest is the payload for POST /users.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
}

// User is the response body of POST /users.
type User struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// createUser is a demo endpoint; nothing is persisted.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, User{ID: 1337, Username: req.Username})
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
