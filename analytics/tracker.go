// Package analytics aggregates engine notifications into daily engagement
// counters: active users, points awarded, badge grants, level distribution.
package analytics

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"learnquest/core"
)

const dayFormat = "2006-01-02"

// DailyStats is one day's aggregated activity.
type DailyStats struct {
	Day           string `json:"day"`
	ActiveUsers   int    `json:"active_users"`
	PointsAwarded int64  `json:"points_awarded"`
	BadgesEarned  int64  `json:"badges_earned"`
	LevelUps      int64  `json:"level_ups"`
}

// Report is a point-in-time export of everything the tracker holds.
type Report struct {
	GeneratedAt       time.Time        `json:"generated_at"`
	Days              []DailyStats     `json:"days"`
	BadgeCounts       map[string]int64 `json:"badge_counts"`
	LevelDistribution map[int64]int64  `json:"level_distribution"`
}

// Tracker consumes notifications and keeps in-memory aggregates. All methods
// are safe for concurrent use.
type Tracker struct {
	mu sync.RWMutex

	activeByDay map[string]map[core.UserID]struct{}
	pointsByDay map[string]int64
	badgesByDay map[string]int64
	levelsByDay map[string]int64

	badgeCounts map[string]int64
	// levels holds the latest known level per user; the distribution is
	// derived from it on read.
	levels map[core.UserID]int64

	now func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		activeByDay: map[string]map[core.UserID]struct{}{},
		pointsByDay: map[string]int64{},
		badgesByDay: map[string]int64{},
		levelsByDay: map[string]int64{},
		badgeCounts: map[string]int64{},
		levels:      map[core.UserID]int64{},
		now:         time.Now,
	}
}

// OnNotification folds one notification into the aggregates.
func (t *Tracker) OnNotification(_ context.Context, n core.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	at := n.Time
	if at.IsZero() {
		at = t.now().UTC()
	}
	day := at.UTC().Format(dayFormat)

	users, ok := t.activeByDay[day]
	if !ok {
		users = map[core.UserID]struct{}{}
		t.activeByDay[day] = users
	}
	users[n.UserID] = struct{}{}

	switch n.Type {
	case core.NotifyPointsAwarded:
		t.pointsByDay[day] += n.Points
	case core.NotifyBadgeEarned:
		t.badgesByDay[day]++
		t.badgeCounts[n.Badge]++
	case core.NotifyLevelUp:
		t.levelsByDay[day]++
		t.levels[n.UserID] = n.Level
	}
}

// Subscriber is the notification source the tracker listens on.
type Subscriber interface {
	Subscribe(typ core.NotificationType, handler func(context.Context, core.Notification)) func()
}

// Attach subscribes the tracker to every notification type on the bus and
// returns a function that detaches it.
func (t *Tracker) Attach(bus Subscriber) func() {
	types := []core.NotificationType{
		core.NotifyPointsAwarded,
		core.NotifyLevelUp,
		core.NotifyBadgeEarned,
		core.NotifyStreakAdvanced,
		core.NotifyContentUnlocked,
	}
	offs := make([]func(), 0, len(types))
	for _, typ := range types {
		offs = append(offs, bus.Subscribe(typ, t.OnNotification))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// DailyActiveUsers returns the distinct user count for a day key
// (YYYY-MM-DD).
func (t *Tracker) DailyActiveUsers(day string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.activeByDay[day])
}

// PointsAwarded returns the points total folded in for a day key.
func (t *Tracker) PointsAwarded(day string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pointsByDay[day]
}

// BadgeCount returns how many times a badge has been earned.
func (t *Tracker) BadgeCount(slug string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.badgeCounts[slug]
}

// Snapshot builds a full report, days sorted ascending.
func (t *Tracker) Snapshot() Report {
	t.mu.RLock()
	defer t.mu.RUnlock()

	days := make([]string, 0, len(t.activeByDay))
	for day := range t.activeByDay {
		days = append(days, day)
	}
	sort.Strings(days)

	report := Report{
		GeneratedAt:       t.now().UTC(),
		Days:              make([]DailyStats, 0, len(days)),
		BadgeCounts:       make(map[string]int64, len(t.badgeCounts)),
		LevelDistribution: map[int64]int64{},
	}
	for _, day := range days {
		report.Days = append(report.Days, DailyStats{
			Day:           day,
			ActiveUsers:   len(t.activeByDay[day]),
			PointsAwarded: t.pointsByDay[day],
			BadgesEarned:  t.badgesByDay[day],
			LevelUps:      t.levelsByDay[day],
		})
	}
	for slug, n := range t.badgeCounts {
		report.BadgeCounts[slug] = n
	}
	for _, level := range t.levels {
		report.LevelDistribution[level]++
	}
	return report
}

// ExportJSON marshals the current report.
func (t *Tracker) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(t.Snapshot(), "", "  ")
}
