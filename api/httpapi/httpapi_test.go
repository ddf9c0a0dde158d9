package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	mem "learnquest/adapters/memory"
	"learnquest/core"
	"learnquest/engine"
	"learnquest/leaderboard"
	"learnquest/realtime"
)

func newTestHandler(t *testing.T, opts Options) (http.Handler, engine.Store) {
	t.Helper()
	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	eval := engine.NewEvaluator(store, bus, engine.DefaultRetryPolicy())
	board := leaderboard.NewSkipList()
	leaderboard.AttachBus(bus, board)
	hub := realtime.NewHub()
	return NewMux(eval, store, board, hub, opts), store
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetUser(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})

	rec := doJSON(t, handler, http.MethodPut, "/users/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodGet, "/users/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d body %s", rec.Code, rec.Body)
	}
	var resp userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Level != 1 || resp.Points != 0 {
		t.Fatalf("fresh user should be level 1 with 0 points: %+v", resp)
	}
}

func TestGetUserNotFound(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	rec := doJSON(t, handler, http.MethodGet, "/users/nobody", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSubmitEvent(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	doJSON(t, handler, http.MethodPut, "/users/alice", nil)

	rec := doJSON(t, handler, http.MethodPost, "/users/alice/events",
		eventRequest{Type: core.EventLessonCompleted})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body)
	}
	var res core.EvaluationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.PointsAwarded != 25 {
		t.Fatalf("expected 25 points, got %d", res.PointsAwarded)
	}
	if len(res.BadgesEarned) != 1 || res.BadgesEarned[0] != "first-steps" {
		t.Fatalf("expected first-steps badge, got %v", res.BadgesEarned)
	}
}

func TestSubmitEventInvalidType(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	doJSON(t, handler, http.MethodPut, "/users/alice", nil)

	rec := doJSON(t, handler, http.MethodPost, "/users/alice/events",
		eventRequest{Type: "bogus.event"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body %s", rec.Code, rec.Body)
	}
}

func TestSubmitEventUnknownUser(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	rec := doJSON(t, handler, http.MethodPost, "/users/ghost/events",
		eventRequest{Type: core.EventLogin})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body %s", rec.Code, rec.Body)
	}
}

func TestBadgeCatalog(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	rec := doJSON(t, handler, http.MethodGet, "/badges", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Badges []core.Badge `json:"badges"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Badges) == 0 {
		t.Fatal("expected non-empty catalog")
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	doJSON(t, handler, http.MethodPut, "/users/alice", nil)
	doJSON(t, handler, http.MethodPut, "/users/bob", nil)
	doJSON(t, handler, http.MethodPost, "/users/alice/events", eventRequest{Type: core.EventLessonCompleted})
	doJSON(t, handler, http.MethodPost, "/users/bob/events", eventRequest{Type: core.EventQuizPassed})

	rec := doJSON(t, handler, http.MethodGet, "/leaderboard?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Entries []leaderboard.Entry `json:"entries"`
		Total   int                 `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", resp)
	}
	if resp.Entries[0].User != "bob" {
		t.Fatalf("bob has 40 points and should lead: %+v", resp.Entries)
	}
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body)
	}
}

func TestPathPrefix(t *testing.T) {
	handler, _ := newTestHandler(t, Options{PathPrefix: "/api"})
	rec := doJSON(t, handler, http.MethodPut, "/api/users/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	handler, _ := newTestHandler(t, Options{APIKeys: []string{"secret"}})

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", rec2.Code)
	}
}

func TestRateLimit(t *testing.T) {
	handler, _ := newTestHandler(t, Options{RateLimitEnabled: true, RateLimitRPM: 60, RateLimitBurst: 2})

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("first two requests should pass: %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("third request should be limited: %v", codes)
	}
}
