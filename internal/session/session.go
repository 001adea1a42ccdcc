// Package session implements the split session state machine.
//
// A session moves Upload -> Reviewing -> ChoosingStrategy and then either
// straight to ResultShown (AI-suggested split) or through ManualAssigning and
// ManualDone (item-level split). Commands go in, snapshots come out; every
// command either advances the session to a consistent state or fails leaving
// it untouched.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harryandriyan/bilbul/internal/ai"
	"github.com/harryandriyan/bilbul/internal/calculator"
	"github.com/harryandriyan/bilbul/internal/ledger"
	"github.com/harryandriyan/bilbul/internal/models"
	"github.com/harryandriyan/bilbul/internal/receipt"
	"github.com/harryandriyan/bilbul/internal/storage"
)

// State identifies one step of the split flow.
type State string

const (
	StateUpload           State = "upload"
	StateReviewing        State = "reviewing"
	StateChoosingStrategy State = "choosing_strategy"
	StateManualAssigning  State = "manual_assigning"
	StateManualDone       State = "manual_done"
	StateResultShown      State = "result_shown"
)

const (
	minPeople = 1
	maxPeople = 5
)

var (
	// ErrIncompleteAssignment blocks finalizing while any item has
	// unassigned units.
	ErrIncompleteAssignment = errors.New("all items must be assigned before confirming the split")

	// ErrSignInRequired is returned by the upload gate once an anonymous
	// client has used its one free split.
	ErrSignInRequired = errors.New("sign in required to split another bill")
)

// StateError reports a command issued in a state that does not allow it.
type StateError struct {
	Command string
	State   State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s in state %q", e.Command, e.State)
}

// Identity describes who is driving the session for one command.
// UserID is empty for anonymous visitors; ClientID identifies the device
// for the one-free-split gate.
type Identity struct {
	UserID   string
	ClientID string
}

// Authenticated reports whether the command comes from a signed-in user.
func (id Identity) Authenticated() bool { return id.UserID != "" }

// Session is one split session. All mutations are serialized through an
// internal mutex so concurrent requests cannot break the ledger's
// conservation invariant.
type Session struct {
	ID string

	mu           sync.Mutex
	state        State
	receipt      *models.Receipt
	ledger       *ledger.Ledger
	participants []models.Participant
	result       string
	resultMode   models.SplitMode
	lastActive   time.Time

	extractor ai.Extractor
	suggester ai.Suggester
	store     storage.Store
}

// Snapshot is an immutable view of a session, safe to hand to the API layer.
type Snapshot struct {
	ID           string                        `json:"id"`
	State        State                         `json:"state"`
	Receipt      *models.Receipt               `json:"receipt,omitempty"`
	Participants []models.Participant          `json:"participants,omitempty"`
	Assignments  []models.Assignment           `json:"assignments,omitempty"`
	Remaining    map[int]int                   `json:"remaining,omitempty"`
	Totals       []calculator.ParticipantTotal `json:"totals,omitempty"`
	Result       string                        `json:"result,omitempty"`
	ResultMode   models.SplitMode              `json:"result_mode,omitempty"`
}

// SubmitReceipt runs extraction on the photo and, if the output validates,
// moves Upload -> Reviewing. On any failure the session stays in Upload.
//
// The one-shot usage gate lives on this transition: anonymous clients that
// have already completed a split must sign in before uploading again.
func (s *Session) SubmitReceipt(ctx context.Context, photoURL string, who Identity) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateUpload {
		return nil, &StateError{Command: "submit receipt", State: s.state}
	}
	if photoURL == "" {
		return nil, fmt.Errorf("photo url is required")
	}

	if !who.Authenticated() {
		used, err := s.store.HasAnonymousSplit(ctx, who.ClientID)
		if err != nil {
			return nil, fmt.Errorf("checking usage: %w", err)
		}
		if used {
			return nil, ErrSignInRequired
		}
	}

	out, err := s.extractor.ExtractReceipt(ctx, photoURL)
	if err != nil {
		return nil, err
	}

	rcpt, err := receipt.FromExtraction(out)
	if err != nil {
		return nil, err
	}

	s.receipt = rcpt
	s.ledger = ledger.New(rcpt.Items)
	s.participants = nil
	s.result = ""
	s.resultMode = ""
	s.state = StateReviewing
	slog.Info("Receipt extracted", "session_id", s.ID, "items", len(rcpt.Items))
	return s.snapshotLocked(), nil
}

// EditItem updates the name and/or price of one receipt line while reviewing.
// Quantity is not editable. Assignments are never touched: an edit is
// cosmetic with respect to the ledger, but renames are forwarded so ledger
// errors report the current item name.
func (s *Session) EditItem(index int, newName *string, newPrice *decimal.Decimal) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateReviewing {
		return nil, &StateError{Command: "edit item", State: s.state}
	}

	updated, err := receipt.EditItem(s.receipt, index, newName, newPrice)
	if err != nil {
		return nil, err
	}
	s.receipt = updated
	if newName != nil {
		s.ledger.RenameItem(index, *newName)
	}
	return s.snapshotLocked(), nil
}

// ConfirmReview accepts the (possibly edited) receipt and creates the
// participants, moving Reviewing -> ChoosingStrategy.
func (s *Session) ConfirmReview(numberOfPeople int) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateReviewing {
		return nil, &StateError{Command: "confirm review", State: s.state}
	}
	if numberOfPeople < minPeople || numberOfPeople > maxPeople {
		return nil, fmt.Errorf("number of people must be between %d and %d", minPeople, maxPeople)
	}

	s.participants = make([]models.Participant, numberOfPeople)
	for i := range s.participants {
		s.participants[i] = models.Participant{
			ID:          i + 1,
			DisplayName: fmt.Sprintf("Person %d", i+1),
		}
	}
	s.state = StateChoosingStrategy
	return s.snapshotLocked(), nil
}

// RenameParticipant changes a participant's display name. Allowed at any
// point after the participants exist and before the result is finalized.
func (s *Session) RenameParticipant(participantID int, name string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state == StateResultShown || len(s.participants) == 0 {
		return nil, &StateError{Command: "rename participant", State: s.state}
	}
	if name == "" {
		return nil, fmt.Errorf("participant name must not be empty")
	}

	for i := range s.participants {
		if s.participants[i].ID == participantID {
			s.participants[i].DisplayName = name
			return s.snapshotLocked(), nil
		}
	}
	return nil, fmt.Errorf("participant %d not found", participantID)
}

// ChooseManual selects the item-level split path,
// moving ChoosingStrategy -> ManualAssigning.
func (s *Session) ChooseManual() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateChoosingStrategy {
		return nil, &StateError{Command: "choose manual split", State: s.state}
	}
	s.state = StateManualAssigning
	return s.snapshotLocked(), nil
}

// Assign allocates units of one item to one participant. Re-assigning the
// same pair replaces the prior quantity. Over-allocation is rejected and the
// ledger is left unchanged.
func (s *Session) Assign(itemIndex, participantID, quantity int) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateManualAssigning {
		return nil, &StateError{Command: "assign item", State: s.state}
	}
	if !s.hasParticipant(participantID) {
		return nil, fmt.Errorf("participant %d not found", participantID)
	}

	if err := s.ledger.Assign(itemIndex, participantID, quantity); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

// FinishAssigning moves ManualAssigning -> ManualDone once every item is
// fully allocated. With unassigned units left it fails and the state does
// not advance.
func (s *Session) FinishAssigning() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateManualAssigning {
		return nil, &StateError{Command: "finish assigning", State: s.state}
	}
	if !s.ledger.Complete() {
		return nil, ErrIncompleteAssignment
	}
	s.state = StateManualDone
	return s.snapshotLocked(), nil
}

// ConfirmManualSplit renders the final summary from the completed ledger and
// moves ManualDone -> ResultShown.
func (s *Session) ConfirmManualSplit(ctx context.Context, who Identity) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateManualDone {
		return nil, &StateError{Command: "confirm split", State: s.state}
	}

	s.result = calculator.RenderSummary(s.receipt, s.ledger, s.participants)
	s.resultMode = models.SplitModeManual
	s.state = StateResultShown
	s.recordSplit(ctx, who)
	return s.snapshotLocked(), nil
}

// SuggestSplit requests a free-text split suggestion from the AI collaborator
// and moves ChoosingStrategy -> ResultShown. The calculator plays no role on
// this path; the suggestion text is passed through verbatim.
func (s *Session) SuggestSplit(ctx context.Context, who Identity) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateChoosingStrategy {
		return nil, &StateError{Command: "suggest split", State: s.state}
	}

	receiptJSON, err := json.Marshal(s.receipt)
	if err != nil {
		return nil, fmt.Errorf("serializing receipt: %w", err)
	}

	suggestion, err := s.suggester.SuggestSplit(ctx, string(receiptJSON), len(s.participants))
	if err != nil {
		return nil, err
	}

	s.result = suggestion
	s.resultMode = models.SplitModeSimple
	s.state = StateResultShown
	s.recordSplit(ctx, who)
	return s.snapshotLocked(), nil
}

// StartOver resets the session to Upload from any state, clearing the
// receipt, ledger, participants and result unconditionally.
func (s *Session) StartOver() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.state = StateUpload
	s.receipt = nil
	s.ledger = nil
	s.participants = nil
	s.result = ""
	s.resultMode = ""
	return s.snapshotLocked()
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// recordSplit persists the completed split for history and the anonymous
// usage gate. Persistence is best effort: a storage failure is logged but
// does not withhold the result from the user.
func (s *Session) recordSplit(ctx context.Context, who Identity) {
	record := &models.SplitRecord{
		ID:            uuidString(),
		UserID:        who.UserID,
		ClientID:      who.ClientID,
		Mode:          s.resultMode,
		Summary:       s.result,
		DeclaredTotal: s.receipt.DeclaredTotal.StringFixed(2),
		CreatedAt:     time.Now().Unix(),
	}
	if err := s.store.CreateSplitRecord(ctx, record); err != nil {
		slog.Error("Failed to record split", "session_id", s.ID, "error", err)
		return
	}
	slog.Info("Split completed", "session_id", s.ID, "mode", s.resultMode, "anonymous", !who.Authenticated())
}

func (s *Session) hasParticipant(id int) bool {
	for _, p := range s.participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

func (s *Session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		ID:         s.ID,
		State:      s.state,
		Result:     s.result,
		ResultMode: s.resultMode,
	}
	if s.receipt != nil {
		snap.Receipt = s.receipt.Clone()
	}
	if len(s.participants) > 0 {
		snap.Participants = append([]models.Participant(nil), s.participants...)
	}
	if s.ledger != nil {
		snap.Assignments = s.ledger.Assignments()
		snap.Remaining = make(map[int]int, len(s.receipt.Items))
		for i := range s.receipt.Items {
			snap.Remaining[i] = s.ledger.Remaining(i)
		}
		if len(s.participants) > 0 {
			snap.Totals = calculator.Totals(s.receipt, s.ledger, s.participants)
		}
	}
	return snap
}
