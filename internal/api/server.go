// Package api exposes the split session state machine and the auth surface
// over HTTP. Handlers decode commands, drive the session layer, and map
// domain errors onto status codes; no split logic lives here.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harryandriyan/bilbul/internal/ai"
	"github.com/harryandriyan/bilbul/internal/auth"
	"github.com/harryandriyan/bilbul/internal/ledger"
	"github.com/harryandriyan/bilbul/internal/middleware"
	"github.com/harryandriyan/bilbul/internal/receipt"
	"github.com/harryandriyan/bilbul/internal/session"
	"github.com/harryandriyan/bilbul/internal/storage"
)

// Server is the Bilbul HTTP API server.
type Server struct {
	sessions      *session.Manager
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	store         storage.Store

	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(sessions *session.Manager, authenticator auth.Authenticator, jwtManager *auth.JWTManager, store storage.Store) *Server {
	return &Server{
		sessions:      sessions,
		authenticator: authenticator,
		jwtManager:    jwtManager,
		store:         store,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(corsMiddleware)
	r.Use(middleware.OptionalAuth(s.jwtManager))
	r.Use(middleware.Logging)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Get("/session", s.handleAuthSession)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Post("/receipt", s.handleSubmitReceipt)
				r.Patch("/items/{index}", s.handleEditItem)
				r.Post("/review/confirm", s.handleConfirmReview)
				r.Patch("/participants/{participantID}", s.handleRenameParticipant)
				r.Post("/split/manual", s.handleChooseManual)
				r.Post("/assignments", s.handleAssign)
				r.Post("/assignments/done", s.handleFinishAssigning)
				r.Post("/split/confirm", s.handleConfirmManualSplit)
				r.Post("/split/suggest", s.handleSuggestSplit)
				r.Post("/reset", s.handleStartOver)
			})
		})

		r.With(middleware.RequireAuth(s.jwtManager)).Get("/splits", s.handleListSplits)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON error envelope returned to clients.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps a domain error onto an HTTP status and error code.
// Every failure mode of the core has a stable code clients can branch on.
func writeError(w http.ResponseWriter, err error) {
	var (
		invalidData *receipt.InvalidDataError
		overAssign  *ledger.QuantityExceedsRemainingError
		stateErr    *session.StateError
	)

	switch {
	case errors.As(err, &invalidData):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "invalid_receipt_data"})
	case errors.As(err, &overAssign):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "quantity_exceeds_remaining"})
	case errors.Is(err, session.ErrIncompleteAssignment):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "incomplete_assignment"})
	case errors.Is(err, session.ErrSignInRequired):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "sign_in_required"})
	case errors.As(err, &stateErr):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_state"})
	case errors.Is(err, ai.ErrExternalService):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Code: "external_service_failure"})
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_argument"})
	}
}
