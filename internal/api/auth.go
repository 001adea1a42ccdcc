package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/harryandriyan/bilbul/internal/auth"
	"github.com/harryandriyan/bilbul/internal/middleware"
	"github.com/harryandriyan/bilbul/internal/models"
)

// userView is the client-facing shape of a user account.
type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

func toUserView(u *models.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

// handleRegister creates a new user account and returns a signed token.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Code: "invalid_argument"})
		return
	}
	if req.Email == "" || req.DisplayName == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "email and display_name are required", Code: "invalid_argument"})
		return
	}

	user, err := s.authenticator.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		slog.Error("Registration failed", "email", req.Email, "error", err)
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "email_exists"})
		case errors.Is(err, auth.ErrWeakPassword):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "weak_password"})
		default:
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "registration failed", Code: "internal"})
		}
		return
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		slog.Error("Failed to generate token", "user_id", user.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "registration failed", Code: "internal"})
		return
	}

	slog.Info("User registered", "user_id", user.ID, "email", user.Email)
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":  toUserView(user),
		"token": token,
	})
}

// handleLogin authenticates a user and returns a signed token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Code: "invalid_argument"})
		return
	}

	user, err := s.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("Login failed", "email", req.Email)
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: auth.ErrInvalidCredentials.Error(), Code: "invalid_credentials"})
		return
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		slog.Error("Failed to generate token", "user_id", user.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "login failed", Code: "internal"})
		return
	}

	slog.Info("User logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  toUserView(user),
		"token": token,
	})
}

// handleAuthSession reports the current identity, or null for anonymous
// visitors. The split core consumes exactly this boolean-plus-ID signal.
func (s *Server) handleAuthSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserView(user)})
}

// handleListSplits returns the authenticated user's split history.
func (s *Server) handleListSplits(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	records, err := s.store.ListSplitsByUser(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list splits", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to list splits", Code: "internal"})
		return
	}

	type splitView struct {
		ID            string `json:"id"`
		Mode          string `json:"mode"`
		Summary       string `json:"summary"`
		DeclaredTotal string `json:"declared_total"`
		CreatedAt     int64  `json:"created_at"`
	}
	views := make([]splitView, 0, len(records))
	for _, rec := range records {
		views = append(views, splitView{
			ID:            rec.ID,
			Mode:          string(rec.Mode),
			Summary:       rec.Summary,
			DeclaredTotal: rec.DeclaredTotal,
			CreatedAt:     rec.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"splits": views})
}
