package sdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestClient_SubmitEventGetUserHealth(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx := context.Background()

	user, err := client.CreateUser(ctx, "alice")
	if err != nil || user.UserID != "alice" {
		t.Fatalf("create user: %+v err=%v", user, err)
	}

	res, err := client.SubmitEvent(ctx, "alice", "lesson.completed", nil)
	if err != nil {
		t.Fatalf("submit event: %v", err)
	}
	if res.PointsAwarded != 25 || len(res.BadgesEarned) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	got, err := client.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.UserID != "alice" || got.Points != 25 {
		t.Fatalf("unexpected state: %+v", got)
	}

	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("health: %+v err=%v", health, err)
	}
}

func TestClient_Leaderboard(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	entries, err := client.Leaderboard(context.Background(), 5)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 || entries[0].User != "bob" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestClient_APIErrorSurface(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.GetUser(context.Background(), "ghost")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "user_not_found" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClient_StreamNotifications(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	notifications, err := client.StreamNotifications(ctx, "")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	select {
	case n := <-notifications:
		if n.Type != "points.awarded" {
			t.Fatalf("unexpected notification type: %s", n.Type)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for notification")
	}
}

// test server implementing the minimal API surface expected by the SDK.
func newTestServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","checks":{"storage":"ok"}}`))
	})
	mux.HandleFunc("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entries":[{"user_id":"bob","points":40},{"user_id":"alice","points":25}],"total":2}`))
	})
	mux.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		// /api/users/{id}[/events]
		path := r.URL.Path[len("/api/users/"):]
		parts := strings.Split(path, "/")
		if len(parts) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		userID := parts[0]
		if userID == "ghost" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"user_not_found","message":"user not found"}`))
			return
		}
		switch {
		case len(parts) == 1 && r.Method == http.MethodPut:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"user_id":"` + userID + `","points":0,"level":1}`))
		case len(parts) == 1 && r.Method == http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"user_id":"` + userID + `","points":25,"level":1,"badges":["first-steps"]}`))
		case len(parts) >= 2 && parts[1] == "events" && r.Method == http.MethodPost:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"points_awarded":25,"badges_earned":["first-steps"],"leveled_up":false,"previous_level":1,"new_level":1,"streak_increased":false,"unlocked_content":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	upgrader := websocket.Upgrader{}
	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{"type": "points.awarded", "user_id": "alice", "points": 10, "total": 10})
	})

	return httptest.NewServer(mux)
}
