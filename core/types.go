package core

import (
	"errors"
	"strings"
	"time"
)

// UserID uniquely identifies a learner in the gamification domain.
type UserID string

// Progress is a snapshot of a user's gamification state: cumulative points,
// the cached level derived from them, and streak bookkeeping.
//
// Version is the optimistic-concurrency token owned by the storage layer.
// It is read together with the snapshot and checked on write; callers never
// modify it.
type Progress struct {
	UserID        UserID     `json:"user_id"`
	Points        int64      `json:"points"`
	Level         int64      `json:"level"`
	StreakDays    int64      `json:"streak_days"`
	LongestStreak int64      `json:"longest_streak"`
	LastActiveAt  *time.Time `json:"last_active_at,omitempty"`
	Version       int64      `json:"version"`
	Updated       time.Time  `json:"updated"`
}

// Clone returns a copy of the snapshot. LastActiveAt is duplicated so the
// copy cannot alias the original.
func (p Progress) Clone() Progress {
	cp := p
	if p.LastActiveAt != nil {
		t := *p.LastActiveAt
		cp.LastActiveAt = &t
	}
	return cp
}

// PointRule maps an event type to a point award. MaxPerDay, when positive,
// caps the number of qualifying occurrences inside a rolling 24h window;
// occurrences past the cap are still recorded but score zero.
type PointRule struct {
	EventType EventType `json:"event_type"`
	Points    int64     `json:"points"`
	MaxPerDay int64     `json:"max_per_day,omitempty"`
}

// BadgeRuleKind enumerates the closed set of badge rule variants.
type BadgeRuleKind string

const (
	RuleCompleteLessons BadgeRuleKind = "complete_lessons"
	RuleQuizPassStreak  BadgeRuleKind = "quiz_pass_streak"
	RuleLevelReached    BadgeRuleKind = "level_reached"
	RuleFirstQuizPass   BadgeRuleKind = "first_quiz_pass"
	RuleLoginStreak     BadgeRuleKind = "login_streak"
)

// BadgeRule is a tagged variant: Kind selects the rule, the remaining fields
// are its parameters. Unused parameters stay zero.
type BadgeRule struct {
	Kind  BadgeRuleKind `json:"kind"`
	Count int64         `json:"count,omitempty"`
	Days  int64         `json:"days,omitempty"`
	Level int64         `json:"level,omitempty"`
}

// Badge is an immutable catalog entry describing an earnable badge.
type Badge struct {
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon,omitempty"`
	Rule        BadgeRule `json:"rule"`
}

// UnlockRule gates a piece of content behind a minimum level.
type UnlockRule struct {
	Level     int64  `json:"level"`
	ContentID string `json:"content_id"`
}

// EvaluationResult is the engine's sole output contract: everything a single
// event evaluation changed. It is a value object and is never persisted.
type EvaluationResult struct {
	PointsAwarded   int64    `json:"points_awarded"`
	BadgesEarned    []string `json:"badges_earned"`
	LeveledUp       bool     `json:"leveled_up"`
	PreviousLevel   int64    `json:"previous_level"`
	NewLevel        int64    `json:"new_level"`
	StreakIncreased bool     `json:"streak_increased"`
	UnlockedContent []string `json:"unlocked_content"`
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// ValidateBadgeSlug ensures a non-empty slug with a simple charset check.
func ValidateBadgeSlug(slug string) error {
	s := strings.TrimSpace(slug)
	if s == "" {
		return errors.New("empty badge slug")
	}
	// simple check: alnum, dash, underscore
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return errors.New("invalid badge slug")
	}
	return nil
}

// SameCalendarDay reports whether two instants fall on the same UTC calendar
// date. Streak advancement is date-based, not 24h-duration-based.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// DistinctDays counts the distinct UTC calendar dates covered by the given
// instants. The quiz-pass-streak badge checks date coverage, not day-to-day
// contiguity; that weaker semantics is deliberate.
func DistinctDays(times []time.Time) int {
	seen := make(map[string]struct{}, len(times))
	for _, t := range times {
		seen[t.UTC().Format("2006-01-02")] = struct{}{}
	}
	return len(seen)
}
