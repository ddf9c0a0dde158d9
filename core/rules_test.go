package core

import (
	"testing"
	"time"
)

func TestResolvePointsBasic(t *testing.T) {
	rules := []PointRule{{EventType: EventLogin, Points: 2, MaxPerDay: 1}}
	if got := ResolvePoints(EventLogin, rules, 0); got != 2 {
		t.Fatalf("want 2 got %d", got)
	}
	if got := ResolvePoints(EventLogin, rules, 1); got != 0 {
		t.Fatalf("capped occurrence should score 0, got %d", got)
	}
	if got := ResolvePoints(EventQuizFailed, rules, 0); got != 0 {
		t.Fatalf("unmatched type should score 0, got %d", got)
	}
}

func TestResolvePointsLastMatchWins(t *testing.T) {
	rules := []PointRule{
		{EventType: EventLessonCompleted, Points: 25},
		{EventType: EventLessonCompleted, Points: 30},
	}
	if got := ResolvePoints(EventLessonCompleted, rules, 0); got != 30 {
		t.Fatalf("want last rule (30), got %d", got)
	}
}

func TestResolvePointsUncapped(t *testing.T) {
	rules := []PointRule{{EventType: EventLessonCompleted, Points: 25}}
	if got := ResolvePoints(EventLessonCompleted, rules, 500); got != 25 {
		t.Fatalf("uncapped rule ignores window count, got %d", got)
	}
}

func TestAdvanceStreakFirstDay(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	up := AdvanceStreak(Progress{UserID: "u"}, now)
	if !up.Increased || up.StreakDays != 1 || up.Longest != 1 || up.Bonus != 0 {
		t.Fatalf("unexpected update: %+v", up)
	}
}

func TestAdvanceStreakSameDayNoop(t *testing.T) {
	morning := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)
	p := Progress{UserID: "u", StreakDays: 4, LongestStreak: 9, LastActiveAt: &morning}
	up := AdvanceStreak(p, evening)
	if up.Increased || up.StreakDays != 4 || up.Longest != 9 {
		t.Fatalf("same-day activity must not move the streak: %+v", up)
	}
}

func TestAdvanceStreakNextDay(t *testing.T) {
	yesterday := time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)
	now := time.Date(2024, 3, 10, 0, 1, 0, 0, time.UTC)
	p := Progress{UserID: "u", StreakDays: 4, LongestStreak: 4, LastActiveAt: &yesterday}
	up := AdvanceStreak(p, now)
	if !up.Increased || up.StreakDays != 5 || up.Longest != 5 {
		t.Fatalf("unexpected update: %+v", up)
	}
}

func TestAdvanceStreakBonusEverySeventhDay(t *testing.T) {
	yesterday := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	p := Progress{UserID: "u", StreakDays: 6, LongestStreak: 20, LastActiveAt: &yesterday}
	up := AdvanceStreak(p, now)
	if up.StreakDays != 7 || up.Bonus != StreakBonusPoints {
		t.Fatalf("day 7 must pay the bonus: %+v", up)
	}
	if up.Longest != 20 {
		t.Fatalf("longest streak must not shrink: %+v", up)
	}

	p.StreakDays = 13
	if up = AdvanceStreak(p, now); up.StreakDays != 14 || up.Bonus != StreakBonusPoints {
		t.Fatalf("day 14 must pay the bonus: %+v", up)
	}
	p.StreakDays = 7
	if up = AdvanceStreak(p, now); up.Bonus != 0 {
		t.Fatalf("day 8 must not pay a bonus: %+v", up)
	}
}

func TestDistinctDays(t *testing.T) {
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(2 * time.Hour),        // same date
		base.AddDate(0, 0, -1),         // previous date
		base.AddDate(0, 0, -3),         // gap is fine, coverage only
		base.AddDate(0, 0, -3).Add(time.Minute),
	}
	if got := DistinctDays(times); got != 3 {
		t.Fatalf("want 3 distinct days, got %d", got)
	}
	if DistinctDays(nil) != 0 {
		t.Fatal("empty input must cover 0 days")
	}
}
