package core

import (
	"testing"
	"time"
)

func TestNormalizeUserID(t *testing.T) {
	id, err := NormalizeUserID(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeUserID("   "); err == nil {
		t.Fatalf("expected empty error")
	}
}

func TestValidateBadgeSlug(t *testing.T) {
	if err := ValidateBadgeSlug("lesson-10"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := ValidateBadgeSlug("bad slug"); err == nil {
		t.Fatalf("expected invalid slug err")
	}
	if err := ValidateBadgeSlug(""); err == nil {
		t.Fatalf("expected empty slug err")
	}
}

func TestValidEventType(t *testing.T) {
	for _, typ := range []EventType{
		EventLessonCompleted, EventQuizPassed, EventQuizFailed,
		EventLogin, EventDayActive, EventContentUnlocked,
	} {
		if !ValidEventType(typ) {
			t.Fatalf("%s should be valid", typ)
		}
	}
	if ValidEventType("payment.completed") {
		t.Fatal("unknown type should be invalid")
	}
}

func TestSameCalendarDay(t *testing.T) {
	a := time.Date(2024, 3, 10, 0, 5, 0, 0, time.UTC)
	b := time.Date(2024, 3, 10, 23, 55, 0, 0, time.UTC)
	if !SameCalendarDay(a, b) {
		t.Fatal("same date, different hours")
	}
	if SameCalendarDay(a, a.AddDate(0, 0, 1)) {
		t.Fatal("different dates")
	}
}

func TestProgressClone(t *testing.T) {
	at := time.Now().UTC()
	p := Progress{UserID: "u", Points: 10, LastActiveAt: &at}
	cp := p.Clone()
	*cp.LastActiveAt = cp.LastActiveAt.AddDate(0, 0, 1)
	if !p.LastActiveAt.Equal(at) {
		t.Fatal("clone must not alias LastActiveAt")
	}
}

func TestNewEventStampsID(t *testing.T) {
	ev := NewEvent("u", EventLessonCompleted, 25, time.Now(), nil)
	if ev.ID == "" {
		t.Fatal("event must carry an id")
	}
	if ev.CreatedAt.Location() != time.UTC {
		t.Fatal("event timestamps are UTC")
	}
}

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()
	if len(cat.Badges) == 0 || len(cat.PointRules) == 0 || len(cat.UnlockRules) == 0 {
		t.Fatal("default catalog must not be empty")
	}
	seen := map[string]struct{}{}
	for _, b := range cat.Badges {
		if err := ValidateBadgeSlug(b.Slug); err != nil {
			t.Fatalf("bad slug %q: %v", b.Slug, err)
		}
		if _, dup := seen[b.Slug]; dup {
			t.Fatalf("duplicate slug %q", b.Slug)
		}
		seen[b.Slug] = struct{}{}
	}
}
