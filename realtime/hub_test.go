package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"learnquest/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)

	n := core.NewPointsAwarded("bob", 10, 10)
	h.Broadcast(context.Background(), n)

	received := <-ch
	if received.UserID != "bob" || received.Type != core.NotifyPointsAwarded {
		t.Fatalf("unexpected notification: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(1)

	h.Broadcast(context.Background(), core.NewPointsAwarded("bob", 1, 1))
	h.Broadcast(context.Background(), core.NewPointsAwarded("bob", 2, 3))

	received := <-ch
	if received.Points != 1 {
		t.Fatalf("expected first notification, got %+v", received)
	}
	select {
	case n := <-ch:
		t.Fatalf("expected second notification dropped, got %+v", n)
	default:
	}
}

func TestMarshalJSON(t *testing.T) {
	n := core.NewBadgeEarned("alice", "first-steps")
	b := MarshalJSON(n)
	var out core.Notification
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Badge != "first-steps" {
		t.Fatalf("unexpected badge: %s", out.Badge)
	}
}
