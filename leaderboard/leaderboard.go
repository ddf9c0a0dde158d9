// Package leaderboard ranks users by cumulative points.
package leaderboard

import (
	"context"

	"learnquest/core"
)

// Entry is one ranked row.
type Entry struct {
	User   core.UserID `json:"user_id"`
	Points int64       `json:"points"`
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(user core.UserID, points int64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	// Rank returns the 1-based position of the user, or 0 when absent.
	Rank(user core.UserID) int
	Len() int
}

// Subscriber is the notification source the board listens on. Both the
// engine's event bus and the evaluator satisfy it.
type Subscriber interface {
	Subscribe(typ core.NotificationType, handler func(context.Context, core.Notification)) func()
}

// AttachBus keeps the board current by applying every points.awarded
// notification. Returns the unsubscribe function.
func AttachBus(bus Subscriber, board Board) func() {
	return bus.Subscribe(core.NotifyPointsAwarded, func(_ context.Context, n core.Notification) {
		board.Update(n.UserID, n.Total)
	})
}
