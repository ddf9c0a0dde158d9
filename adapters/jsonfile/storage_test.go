package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"learnquest/core"
)

func TestStorePersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	ctx := context.Background()

	store, err := New(path, core.DefaultCatalog())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	prog, err := store.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	updated := prog.Clone()
	updated.Points = 25
	ev := core.NewEvent("alice", core.EventLessonCompleted, 25, time.Now(), nil)
	if err := store.ApplyEvaluation(ctx, updated, []core.Event{ev}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if granted, err := store.GrantBadge(ctx, "alice", "first-steps"); err != nil || !granted {
		t.Fatalf("grant badge: granted=%v err=%v", granted, err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload
	reloaded, err := New(path, core.DefaultCatalog())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	got, err := reloaded.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Points != 25 {
		t.Fatalf("expected points 25, got %d", got.Points)
	}
	if got.Version != prog.Version+1 {
		t.Fatalf("expected version %d, got %d", prog.Version+1, got.Version)
	}

	n, err := reloaded.CountEventsByType(ctx, "alice", core.EventLessonCompleted)
	if err != nil || n != 1 {
		t.Fatalf("count events: n=%d err=%v", n, err)
	}

	slugs, err := reloaded.ListUserBadgeSlugs(ctx, "alice")
	if err != nil || len(slugs) != 1 || slugs[0] != "first-steps" {
		t.Fatalf("badges after reload: %v err=%v", slugs, err)
	}
}

func TestStoreVersionConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	store, err := New(path, core.DefaultCatalog())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	prog, err := store.CreateUser(ctx, "bob")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	first := prog.Clone()
	first.Points = 10
	if err := store.ApplyEvaluation(ctx, first, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	stale := prog.Clone()
	stale.Points = 99
	if err := store.ApplyEvaluation(ctx, stale, nil); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestStoreGrantIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	store, err := New(path, core.DefaultCatalog())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if granted, _ := store.GrantUnlock(ctx, "carol", "bonus-module-1"); !granted {
		t.Fatal("first grant should win")
	}
	if granted, _ := store.GrantUnlock(ctx, "carol", "bonus-module-1"); granted {
		t.Fatal("second grant should lose")
	}
}
