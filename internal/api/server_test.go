package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/harryandriyan/bilbul/internal/ai"
	"github.com/harryandriyan/bilbul/internal/auth"
	"github.com/harryandriyan/bilbul/internal/metrics"
	"github.com/harryandriyan/bilbul/internal/session"
	"github.com/harryandriyan/bilbul/internal/storage/sqlite"
)

// stubAI implements the extractor and suggester interfaces with canned replies.
type stubAI struct {
	extraction *ai.ExtractionOutput
	extractErr error
	suggestion string
	suggestErr error
}

func (s *stubAI) ExtractReceipt(context.Context, string) (*ai.ExtractionOutput, error) {
	if s.extractErr != nil {
		return nil, s.extractErr
	}
	return s.extraction, nil
}

func (s *stubAI) SuggestSplit(context.Context, string, int) (string, error) {
	if s.suggestErr != nil {
		return "", s.suggestErr
	}
	return s.suggestion, nil
}

// setupTestServer creates a test server with a temp SQLite database and
// stubbed AI collaborators.
func setupTestServer(t *testing.T) (string, *stubAI, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "bilbul-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create store: %v", err)
	}

	stub := &stubAI{
		extraction: &ai.ExtractionOutput{
			Items: []ai.ExtractedItem{
				{Name: "Coffee", Price: 10.00, Quantity: 2},
			},
			TotalAmount: 10.00,
		},
		suggestion: "Split it evenly: $5.00 each.",
	}

	manager := session.NewManager(stub, stub, store)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store)

	server := httptest.NewServer(NewServer(manager, authenticator, jwtManager, store).Handler())

	cleanup := func() {
		server.Close()
		store.Close()
		os.RemoveAll(tempDir)
	}

	return server.URL, stub, cleanup
}

// doJSON issues a request with a JSON body and decodes the JSON reply.
func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	// Auth middleware rejections are plain text; everything else is JSON.
	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

// createSession creates a fresh split session and returns its ID.
func createSession(t *testing.T, baseURL string) string {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, baseURL+"/api/sessions", nil, nil)
	if status != http.StatusCreated {
		t.Fatalf("create session: status %d, body %v", status, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("create session: no id in %v", body)
	}
	return id
}

func TestHealthz(t *testing.T) {
	baseURL, _, cleanup := setupTestServer(t)
	defer cleanup()

	status, body := doJSON(t, http.MethodGet, baseURL+"/healthz", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status ok", body)
	}
}

func TestManualSplitOverHTTP(t *testing.T) {
	baseURL, _, cleanup := setupTestServer(t)
	defer cleanup()

	id := createSession(t, baseURL)
	sessionURL := baseURL + "/api/sessions/" + id

	status, body := doJSON(t, http.MethodPost, sessionURL+"/receipt",
		map[string]string{"photo_url": "https://example.com/receipt.jpg"}, nil)
	if status != http.StatusOK {
		t.Fatalf("submit receipt: status %d, body %v", status, body)
	}
	if body["state"] != "reviewing" {
		t.Fatalf("state = %v, want reviewing", body["state"])
	}

	status, body = doJSON(t, http.MethodPost, sessionURL+"/review/confirm",
		map[string]int{"number_of_people": 2}, nil)
	if status != http.StatusOK {
		t.Fatalf("confirm review: status %d, body %v", status, body)
	}
	if body["state"] != "choosing_strategy" {
		t.Fatalf("state = %v, want choosing_strategy", body["state"])
	}

	status, body = doJSON(t, http.MethodPost, sessionURL+"/split/manual", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("choose manual: status %d, body %v", status, body)
	}

	for _, pid := range []int{1, 2} {
		status, body = doJSON(t, http.MethodPost, sessionURL+"/assignments",
			map[string]int{"item_index": 0, "participant_id": pid, "quantity": 1}, nil)
		if status != http.StatusOK {
			t.Fatalf("assign to participant %d: status %d, body %v", pid, status, body)
		}
	}

	status, body = doJSON(t, http.MethodPost, sessionURL+"/assignments/done", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("finish assigning: status %d, body %v", status, body)
	}

	status, body = doJSON(t, http.MethodPost, sessionURL+"/split/confirm", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("confirm split: status %d, body %v", status, body)
	}
	if body["state"] != "result_shown" {
		t.Errorf("state = %v, want result_shown", body["state"])
	}
	want := "Person 1: $5.00\n  1 x Coffee\nPerson 2: $5.00\n  1 x Coffee\n"
	if body["result"] != want {
		t.Errorf("result = %q, want %q", body["result"], want)
	}
}

func TestSuggestSplitOverHTTP(t *testing.T) {
	baseURL, stub, cleanup := setupTestServer(t)
	defer cleanup()

	id := createSession(t, baseURL)
	sessionURL := baseURL + "/api/sessions/" + id

	doJSON(t, http.MethodPost, sessionURL+"/receipt",
		map[string]string{"photo_url": "https://example.com/receipt.jpg"}, nil)
	doJSON(t, http.MethodPost, sessionURL+"/review/confirm",
		map[string]int{"number_of_people": 2}, nil)

	status, body := doJSON(t, http.MethodPost, sessionURL+"/split/suggest", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("suggest split: status %d, body %v", status, body)
	}
	if body["result"] != stub.suggestion {
		t.Errorf("result = %q, want the suggestion verbatim", body["result"])
	}
	if body["result_mode"] != "simple" {
		t.Errorf("result_mode = %v, want simple", body["result_mode"])
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		run        func(t *testing.T, baseURL string, stub *stubAI) (int, map[string]any)
		wantStatus int
		wantCode   string
	}{
		{
			name: "unknown session",
			run: func(t *testing.T, baseURL string, _ *stubAI) (int, map[string]any) {
				return doJSON(t, http.MethodGet, baseURL+"/api/sessions/nope", nil, nil)
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "session_not_found",
		},
		{
			name: "command in wrong state",
			run: func(t *testing.T, baseURL string, _ *stubAI) (int, map[string]any) {
				id := createSession(t, baseURL)
				return doJSON(t, http.MethodPost, baseURL+"/api/sessions/"+id+"/split/manual", nil, nil)
			},
			wantStatus: http.StatusConflict,
			wantCode:   "invalid_state",
		},
		{
			name: "extraction failure",
			run: func(t *testing.T, baseURL string, stub *stubAI) (int, map[string]any) {
				stub.extractErr = fmt.Errorf("model down: %w", ai.ErrExternalService)
				id := createSession(t, baseURL)
				return doJSON(t, http.MethodPost, baseURL+"/api/sessions/"+id+"/receipt",
					map[string]string{"photo_url": "https://example.com/receipt.jpg"}, nil)
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   "external_service_failure",
		},
		{
			name: "invalid extraction output",
			run: func(t *testing.T, baseURL string, stub *stubAI) (int, map[string]any) {
				stub.extraction = &ai.ExtractionOutput{
					Items:       []ai.ExtractedItem{{Name: "Coffee", Price: -1, Quantity: 1}},
					TotalAmount: 10,
				}
				id := createSession(t, baseURL)
				return doJSON(t, http.MethodPost, baseURL+"/api/sessions/"+id+"/receipt",
					map[string]string{"photo_url": "https://example.com/receipt.jpg"}, nil)
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "invalid_receipt_data",
		},
		{
			name: "over-allocation",
			run: func(t *testing.T, baseURL string, _ *stubAI) (int, map[string]any) {
				id := createSession(t, baseURL)
				sessionURL := baseURL + "/api/sessions/" + id
				doJSON(t, http.MethodPost, sessionURL+"/receipt",
					map[string]string{"photo_url": "https://example.com/receipt.jpg"}, nil)
				doJSON(t, http.MethodPost, sessionURL+"/review/confirm",
					map[string]int{"number_of_people": 2}, nil)
				doJSON(t, http.MethodPost, sessionURL+"/split/manual", nil, nil)
				return doJSON(t, http.MethodPost, sessionURL+"/assignments",
					map[string]int{"item_index": 0, "participant_id": 1, "quantity": 3}, nil)
			},
			wantStatus: http.StatusConflict,
			wantCode:   "quantity_exceeds_remaining",
		},
		{
			name: "incomplete assignment",
			run: func(t *testing.T, baseURL string, _ *stubAI) (int, map[string]any) {
				id := createSession(t, baseURL)
				sessionURL := baseURL + "/api/sessions/" + id
				doJSON(t, http.MethodPost, sessionURL+"/receipt",
					map[string]string{"photo_url": "https://example.com/receipt.jpg"}, nil)
				doJSON(t, http.MethodPost, sessionURL+"/review/confirm",
					map[string]int{"number_of_people": 2}, nil)
				doJSON(t, http.MethodPost, sessionURL+"/split/manual", nil, nil)
				return doJSON(t, http.MethodPost, sessionURL+"/assignments/done", nil, nil)
			},
			wantStatus: http.StatusConflict,
			wantCode:   "incomplete_assignment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			baseURL, stub, cleanup := setupTestServer(t)
			defer cleanup()

			status, body := tt.run(t, baseURL, stub)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %v)", status, tt.wantStatus, body)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

// runManualFlow drives a session from upload to result over HTTP.
func runManualFlow(t *testing.T, baseURL, sessionID string, headers map[string]string) {
	t.Helper()
	sessionURL := baseURL + "/api/sessions/" + sessionID

	steps := []struct {
		path string
		body any
	}{
		{"/receipt", map[string]string{"photo_url": "https://example.com/receipt.jpg"}},
		{"/review/confirm", map[string]int{"number_of_people": 2}},
		{"/split/manual", nil},
		{"/assignments", map[string]int{"item_index": 0, "participant_id": 1, "quantity": 1}},
		{"/assignments", map[string]int{"item_index": 0, "participant_id": 2, "quantity": 1}},
		{"/assignments/done", nil},
		{"/split/confirm", nil},
	}
	for _, step := range steps {
		status, body := doJSON(t, http.MethodPost, sessionURL+step.path, step.body, headers)
		if status != http.StatusOK {
			t.Fatalf("POST %s: status %d, body %v", step.path, status, body)
		}
	}
}

func TestAnonymousGateOverHTTP(t *testing.T) {
	baseURL, _, cleanup := setupTestServer(t)
	defer cleanup()

	client := map[string]string{"X-Client-Id": "device-1"}

	// First split succeeds.
	first := createSession(t, baseURL)
	runManualFlow(t, baseURL, first, client)

	// Second upload from the same anonymous device is gated.
	second := createSession(t, baseURL)
	status, body := doJSON(t, http.MethodPost, baseURL+"/api/sessions/"+second+"/receipt",
		map[string]string{"photo_url": "https://example.com/receipt.jpg"}, client)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 (body %v)", status, body)
	}
	if body["code"] != "sign_in_required" {
		t.Errorf("code = %v, want sign_in_required", body["code"])
	}

	// A different device is unaffected.
	third := createSession(t, baseURL)
	status, body = doJSON(t, http.MethodPost, baseURL+"/api/sessions/"+third+"/receipt",
		map[string]string{"photo_url": "https://example.com/receipt.jpg"},
		map[string]string{"X-Client-Id": "device-2"})
	if status != http.StatusOK {
		t.Errorf("status = %d for a fresh device, want 200 (body %v)", status, body)
	}
}

func TestAuthAndSplitHistory(t *testing.T) {
	baseURL, _, cleanup := setupTestServer(t)
	defer cleanup()

	// Register.
	status, body := doJSON(t, http.MethodPost, baseURL+"/api/auth/register", map[string]string{
		"email":        "ana@example.com",
		"display_name": "Ana",
		"password":     "correct-horse",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("register: status %d, body %v", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("register: no token in %v", body)
	}

	// Duplicate email is rejected.
	status, body = doJSON(t, http.MethodPost, baseURL+"/api/auth/register", map[string]string{
		"email":        "ana@example.com",
		"display_name": "Ana Again",
		"password":     "correct-horse",
	}, nil)
	if status != http.StatusConflict || body["code"] != "email_exists" {
		t.Errorf("duplicate register: status %d, code %v; want 409 email_exists", status, body["code"])
	}

	// Weak password is rejected.
	status, body = doJSON(t, http.MethodPost, baseURL+"/api/auth/register", map[string]string{
		"email":        "ben@example.com",
		"display_name": "Ben",
		"password":     "short",
	}, nil)
	if status != http.StatusBadRequest || body["code"] != "weak_password" {
		t.Errorf("weak password register: status %d, code %v; want 400 weak_password", status, body["code"])
	}

	// Login with the right and wrong password.
	status, body = doJSON(t, http.MethodPost, baseURL+"/api/auth/login", map[string]string{
		"email":    "ana@example.com",
		"password": "correct-horse",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("login: status %d, body %v", status, body)
	}
	status, _ = doJSON(t, http.MethodPost, baseURL+"/api/auth/login", map[string]string{
		"email":    "ana@example.com",
		"password": "wrong-password",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("bad login: status %d, want 401", status)
	}

	authed := map[string]string{"Authorization": "Bearer " + token}

	// Auth session reflects the token.
	status, body = doJSON(t, http.MethodGet, baseURL+"/api/auth/session", nil, authed)
	if status != http.StatusOK {
		t.Fatalf("auth session: status %d, body %v", status, body)
	}
	user, _ := body["user"].(map[string]any)
	if user == nil || user["email"] != "ana@example.com" {
		t.Errorf("auth session user = %v, want Ana's account", body["user"])
	}

	status, body = doJSON(t, http.MethodGet, baseURL+"/api/auth/session", nil, nil)
	if status != http.StatusOK || body["user"] != nil {
		t.Errorf("anonymous auth session: status %d, user %v; want 200 with null user", status, body["user"])
	}

	// History requires auth.
	status, _ = doJSON(t, http.MethodGet, baseURL+"/api/splits", nil, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("splits without token: status %d, want 401", status)
	}

	// A signed-in split lands in the history.
	id := createSession(t, baseURL)
	runManualFlow(t, baseURL, id, authed)

	status, body = doJSON(t, http.MethodGet, baseURL+"/api/splits", nil, authed)
	if status != http.StatusOK {
		t.Fatalf("splits: status %d, body %v", status, body)
	}
	splits, _ := body["splits"].([]any)
	if len(splits) != 1 {
		t.Fatalf("len(splits) = %d, want 1", len(splits))
	}
	record, _ := splits[0].(map[string]any)
	if record["mode"] != "manual" {
		t.Errorf("mode = %v, want manual", record["mode"])
	}
}

func TestExternalLatencyObservedOnlyByRealCalls(t *testing.T) {
	baseURL, stub, cleanup := setupTestServer(t)
	defer cleanup()

	// Requests rejected before any extraction, failed extractions, and
	// stubbed successes all pass through the handlers; none of them is an
	// actual external call, so none may record a latency sample. The
	// histogram is fed from inside the Gemini client only.
	id := createSession(t, baseURL)
	sessionURL := baseURL + "/api/sessions/" + id

	doJSON(t, http.MethodPost, sessionURL+"/split/manual", nil, nil) // wrong state

	stub.extractErr = fmt.Errorf("model down: %w", ai.ErrExternalService)
	doJSON(t, http.MethodPost, sessionURL+"/receipt",
		map[string]string{"photo_url": "https://example.com/receipt.jpg"}, nil)
	stub.extractErr = nil

	runManualFlow(t, baseURL, id, nil)

	if n := testutil.CollectAndCount(metrics.ExternalCallDuration); n != 0 {
		t.Errorf("ExternalCallDuration has %d series after handler-only traffic, want 0", n)
	}
}

func TestStartOverOverHTTP(t *testing.T) {
	baseURL, _, cleanup := setupTestServer(t)
	defer cleanup()

	id := createSession(t, baseURL)
	sessionURL := baseURL + "/api/sessions/" + id

	doJSON(t, http.MethodPost, sessionURL+"/receipt",
		map[string]string{"photo_url": "https://example.com/receipt.jpg"}, nil)

	status, body := doJSON(t, http.MethodPost, sessionURL+"/reset", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("reset: status %d, body %v", status, body)
	}
	if body["state"] != "upload" {
		t.Errorf("state = %v after reset, want upload", body["state"])
	}
	if _, ok := body["receipt"]; ok {
		t.Errorf("receipt still present after reset: %v", body["receipt"])
	}
}
