package engine

import (
	"context"
	"time"

	"learnquest/core"
)

// Store abstracts persistence for rule evaluation. The engine itself is
// stateless and horizontally replicable; all per-user serialization lives
// behind this interface.
//
// Concurrency contract:
//   - ApplyEvaluation is the single mutation path for the user record and
//     the event log. It must apply atomically and fail with
//     core.ErrConflict when the stored version no longer matches
//     updated.Version (the adapter bumps the version on success).
//   - GrantBadge and GrantUnlock are insert-if-absent: they return true
//     only for the call that created the record, enforced by a storage
//     uniqueness primitive, never by check-then-act in the engine.
//   - The event log is append-only; reads need no locking beyond
//     read-committed isolation.
type Store interface {
	// GetUser returns the user's progress snapshot, or core.ErrUserNotFound.
	GetUser(ctx context.Context, user core.UserID) (core.Progress, error)

	// CreateUser inserts a fresh level-1 record if none exists and returns
	// the current snapshot either way.
	CreateUser(ctx context.Context, user core.UserID) (core.Progress, error)

	// ApplyEvaluation atomically appends the events and replaces the user
	// record, conditional on updated.Version matching storage.
	ApplyEvaluation(ctx context.Context, updated core.Progress, events []core.Event) error

	CountEventsByType(ctx context.Context, user core.UserID, typ core.EventType) (int64, error)
	CountEventsByTypeSince(ctx context.Context, user core.UserID, typ core.EventType, since time.Time) (int64, error)
	// ListRecentEventsByType returns up to limit events of the given type,
	// newest first.
	ListRecentEventsByType(ctx context.Context, user core.UserID, typ core.EventType, limit int) ([]core.Event, error)

	ListBadges(ctx context.Context) ([]core.Badge, error)
	ListPointRules(ctx context.Context) ([]core.PointRule, error)
	ListUnlockRules(ctx context.Context) ([]core.UnlockRule, error)

	// ListUserBadgeSlugs returns the slugs already granted; order is
	// adapter-specific.
	ListUserBadgeSlugs(ctx context.Context, user core.UserID) ([]string, error)
	// GrantBadge inserts a (user, badge) grant if absent. Returns true only
	// when this call created it.
	GrantBadge(ctx context.Context, user core.UserID, slug string) (bool, error)
	// GrantUnlock inserts a (user, content) unlock record if absent.
	GrantUnlock(ctx context.Context, user core.UserID, contentID string) (bool, error)
}
