package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the recognized activity events.
type EventType string

const (
	EventLessonCompleted EventType = "lesson.completed"
	EventQuizPassed      EventType = "quiz.passed"
	EventQuizFailed      EventType = "quiz.failed"
	EventLogin           EventType = "login"
	EventDayActive       EventType = "day.active"
	EventContentUnlocked EventType = "content.unlocked"
)

// ValidEventType reports whether t belongs to the recognized enumeration.
func ValidEventType(t EventType) bool {
	switch t {
	case EventLessonCompleted, EventQuizPassed, EventQuizFailed,
		EventLogin, EventDayActive, EventContentUnlocked:
		return true
	}
	return false
}

// Event is an immutable, timestamped fact about user activity. Events form
// an append-only log; they are never updated or deleted, which makes badge
// evaluation replayable.
type Event struct {
	ID        string         `json:"id"`
	UserID    UserID         `json:"user_id"`
	Type      EventType      `json:"type"`
	Points    int64          `json:"points"`
	CreatedAt time.Time      `json:"created_at"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// NewEvent builds an event stamped with the given creation time.
func NewEvent(user UserID, typ EventType, points int64, at time.Time, meta map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		UserID:    user,
		Type:      typ,
		Points:    points,
		CreatedAt: at.UTC(),
		Meta:      meta,
	}
}

// MetaReasonKey and MetaStreakBonus tag synthetic bonus events so they stay
// auditable and distinguishable from caller-submitted activity.
const (
	MetaReasonKey   = "reason"
	MetaStreakBonus = "streak-bonus"
)

// NotificationType enumerates the facts the engine emits after evaluation.
// Delivery (email, push, UI) is a downstream concern.
type NotificationType string

const (
	NotifyPointsAwarded   NotificationType = "points.awarded"
	NotifyLevelUp         NotificationType = "level.up"
	NotifyBadgeEarned     NotificationType = "badge.earned"
	NotifyStreakAdvanced  NotificationType = "streak.advanced"
	NotifyContentUnlocked NotificationType = "content.unlocked"
)

// Notification is an immutable derived fact published on the event bus.
type Notification struct {
	Type          NotificationType `json:"type"`
	Time          time.Time        `json:"time"`
	UserID        UserID           `json:"user_id"`
	Points        int64            `json:"points,omitempty"`
	Total         int64            `json:"total,omitempty"`
	Level         int64            `json:"level,omitempty"`
	PreviousLevel int64            `json:"previous_level,omitempty"`
	Badge         string           `json:"badge,omitempty"`
	StreakDays    int64            `json:"streak_days,omitempty"`
	ContentID     string           `json:"content_id,omitempty"`
}

func NewPointsAwarded(user UserID, points, total int64) Notification {
	return Notification{Type: NotifyPointsAwarded, Time: time.Now().UTC(), UserID: user, Points: points, Total: total}
}

func NewLevelUp(user UserID, previous, level int64) Notification {
	return Notification{Type: NotifyLevelUp, Time: time.Now().UTC(), UserID: user, PreviousLevel: previous, Level: level}
}

func NewBadgeEarned(user UserID, slug string) Notification {
	return Notification{Type: NotifyBadgeEarned, Time: time.Now().UTC(), UserID: user, Badge: slug}
}

func NewStreakAdvanced(user UserID, days int64) Notification {
	return Notification{Type: NotifyStreakAdvanced, Time: time.Now().UTC(), UserID: user, StreakDays: days}
}

func NewContentUnlocked(user UserID, contentID string) Notification {
	return Notification{Type: NotifyContentUnlocked, Time: time.Now().UTC(), UserID: user, ContentID: contentID}
}
