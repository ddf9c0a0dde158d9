package gamify

import (
	"context"
	"testing"

	mem "learnquest/adapters/memory"
	"learnquest/core"
	"learnquest/engine"
	"learnquest/leaderboard"
	"learnquest/realtime"
)

func TestNewDefaultsAndOptions(t *testing.T) {
	hub := realtime.NewHub()
	store := mem.New()
	eval := New(
		WithRealtime(hub),
		WithStore(store),
		WithDispatchMode(engine.DispatchSync),
	)

	if _, err := store.CreateUser(context.Background(), "alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, ch := hub.Subscribe(4)
	res, err := eval.Evaluate(context.Background(), "alice", core.EventLessonCompleted, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.PointsAwarded != 25 {
		t.Fatalf("expected 25 points, got %d", res.PointsAwarded)
	}

	// realtime bridge should receive the points notification
	n := <-ch
	if n.UserID != "alice" || n.Type != core.NotifyPointsAwarded {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestNewDefaultStore(t *testing.T) {
	eval := New(WithDispatchMode(engine.DispatchSync))
	_, err := eval.Evaluate(context.Background(), "ghost", core.EventLogin, nil)
	if err == nil {
		t.Fatal("expected error for unknown user on fresh default store")
	}
}

func TestNewWithCatalog(t *testing.T) {
	catalog := core.Catalog{
		PointRules: []core.PointRule{{EventType: core.EventLogin, Points: 99}},
	}
	eval := New(WithCatalog(catalog), WithDispatchMode(engine.DispatchSync))

	if _, err := eval.CreateUser(context.Background(), "alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	res, err := eval.Evaluate(context.Background(), "alice", core.EventLogin, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.PointsAwarded != 99 {
		t.Fatalf("expected 99 points from custom rule, got %d", res.PointsAwarded)
	}
}

func TestNewWithLeaderboard(t *testing.T) {
	store := mem.New()
	board := leaderboard.NewSkipList()
	eval := New(
		WithStore(store),
		WithLeaderboard(board),
		WithDispatchMode(engine.DispatchSync),
	)

	if _, err := store.CreateUser(context.Background(), "bob"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := eval.Evaluate(context.Background(), "bob", core.EventQuizPassed, nil); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	entry, ok := board.Get("bob")
	if !ok || entry.Points != 40 {
		t.Fatalf("expected bob at 40 points on the board, got %+v ok=%v", entry, ok)
	}
}
