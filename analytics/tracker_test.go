package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnquest/core"
	"learnquest/engine"
)

func notifAt(n core.Notification, at time.Time) core.Notification {
	n.Time = at
	return n
}

func TestTrackerAggregates(t *testing.T) {
	tracker := NewTracker()
	ctx := context.Background()
	day1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	tracker.OnNotification(ctx, notifAt(core.NewPointsAwarded("alice", 25, 25), day1))
	tracker.OnNotification(ctx, notifAt(core.NewPointsAwarded("bob", 40, 40), day1))
	tracker.OnNotification(ctx, notifAt(core.NewPointsAwarded("alice", 25, 50), day2))
	tracker.OnNotification(ctx, notifAt(core.NewBadgeEarned("alice", "first-steps"), day1))
	tracker.OnNotification(ctx, notifAt(core.NewLevelUp("bob", 1, 2), day1))

	assert.Equal(t, 2, tracker.DailyActiveUsers("2025-06-01"))
	assert.Equal(t, 1, tracker.DailyActiveUsers("2025-06-02"))
	assert.Equal(t, int64(65), tracker.PointsAwarded("2025-06-01"))
	assert.Equal(t, int64(25), tracker.PointsAwarded("2025-06-02"))
	assert.Equal(t, int64(1), tracker.BadgeCount("first-steps"))
}

func TestTrackerSnapshot(t *testing.T) {
	tracker := NewTracker()
	ctx := context.Background()
	day1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	tracker.OnNotification(ctx, notifAt(core.NewPointsAwarded("alice", 25, 25), day2))
	tracker.OnNotification(ctx, notifAt(core.NewPointsAwarded("bob", 40, 40), day1))
	tracker.OnNotification(ctx, notifAt(core.NewLevelUp("alice", 1, 2), day2))
	tracker.OnNotification(ctx, notifAt(core.NewLevelUp("bob", 2, 3), day1))

	report := tracker.Snapshot()
	require.Len(t, report.Days, 2)
	assert.Equal(t, "2025-06-01", report.Days[0].Day, "days sorted ascending")
	assert.Equal(t, "2025-06-02", report.Days[1].Day)
	assert.Equal(t, int64(1), report.LevelDistribution[2])
	assert.Equal(t, int64(1), report.LevelDistribution[3])
}

func TestTrackerLevelDistributionKeepsLatest(t *testing.T) {
	tracker := NewTracker()
	ctx := context.Background()

	tracker.OnNotification(ctx, core.NewLevelUp("alice", 1, 2))
	tracker.OnNotification(ctx, core.NewLevelUp("alice", 2, 3))

	report := tracker.Snapshot()
	assert.Equal(t, int64(0), report.LevelDistribution[2])
	assert.Equal(t, int64(1), report.LevelDistribution[3])
}

func TestTrackerAttachBus(t *testing.T) {
	bus := engine.NewEventBus(engine.DispatchSync)
	tracker := NewTracker()
	off := tracker.Attach(bus)

	bus.Publish(context.Background(), core.NewBadgeEarned("alice", "lesson-10"))
	assert.Equal(t, int64(1), tracker.BadgeCount("lesson-10"))

	off()
	bus.Publish(context.Background(), core.NewBadgeEarned("alice", "lesson-50"))
	assert.Equal(t, int64(0), tracker.BadgeCount("lesson-50"))
}

func TestTrackerExportJSON(t *testing.T) {
	tracker := NewTracker()
	tracker.OnNotification(context.Background(), core.NewPointsAwarded("alice", 5, 5))

	b, err := tracker.ExportJSON()
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal(b, &report))
	require.Len(t, report.Days, 1)
	assert.Equal(t, 1, report.Days[0].ActiveUsers)
}
