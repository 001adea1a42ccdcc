package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/harryandriyan/bilbul/internal/metrics"
	"github.com/harryandriyan/bilbul/internal/middleware"
	"github.com/harryandriyan/bilbul/internal/session"
)

// identity builds the command identity from the request: the JWT subject if
// present, plus the client ID header used by the one-free-split gate. When a
// client sends no ID the session ID stands in for it.
func (s *Server) identity(r *http.Request, sessionID string) session.Identity {
	clientID := r.Header.Get("X-Client-Id")
	if clientID == "" {
		clientID = sessionID
	}
	return session.Identity{
		UserID:   middleware.GetUserID(r.Context()),
		ClientID: clientID,
	}
}

// lookup resolves the session from the URL, writing a 404 when absent.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("session not found: %s", id), Code: "session_not_found"})
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	metrics.SessionsActive.Set(float64(s.sessions.Len()))
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleSubmitReceipt(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		PhotoURL string `json:"photo_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	snap, err := sess.SubmitReceipt(r.Context(), req.PhotoURL, s.identity(r, sess.ID))
	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		writeError(w, err)
		return
	}
	metrics.ExtractionsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEditItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, fmt.Errorf("invalid item index: %w", err))
		return
	}

	var req struct {
		Name  *string          `json:"name"`
		Price *decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	snap, err := sess.EditItem(index, req.Name, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleConfirmReview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		NumberOfPeople int `json:"number_of_people"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	snap, err := sess.ConfirmReview(req.NumberOfPeople)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRenameParticipant(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	participantID, err := strconv.Atoi(chi.URLParam(r, "participantID"))
	if err != nil {
		writeError(w, fmt.Errorf("invalid participant id: %w", err))
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	snap, err := sess.RenameParticipant(participantID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleChooseManual(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	snap, err := sess.ChooseManual()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		ItemIndex     int `json:"item_index"`
		ParticipantID int `json:"participant_id"`
		Quantity      int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	snap, err := sess.Assign(req.ItemIndex, req.ParticipantID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleFinishAssigning(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	snap, err := sess.FinishAssigning()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleConfirmManualSplit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	snap, err := sess.ConfirmManualSplit(r.Context(), s.identity(r, sess.ID))
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.SplitsCompletedTotal.WithLabelValues(string(snap.ResultMode)).Inc()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSuggestSplit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	snap, err := sess.SuggestSplit(r.Context(), s.identity(r, sess.ID))
	if err != nil {
		metrics.SuggestionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		writeError(w, err)
		return
	}
	metrics.SuggestionsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.SplitsCompletedTotal.WithLabelValues(string(snap.ResultMode)).Inc()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStartOver(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.StartOver())
}
