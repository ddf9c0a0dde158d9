package core

import "time"

// PointsWindow is the rolling span used for daily caps. It is anchored at
// evaluation time, not at calendar midnight.
const PointsWindow = 24 * time.Hour

// ResolvePoints determines the points for one occurrence of typ. Rules are
// applied in catalog order and the last matching rule wins. When a matching
// rule carries a daily cap and the user already logged at least that many
// same-type events inside the rolling window, the occurrence scores zero;
// the event is still recorded by the caller so the audit trail survives.
func ResolvePoints(typ EventType, rules []PointRule, sameTypeInWindow int64) int64 {
	var points int64
	for _, r := range rules {
		if r.EventType != typ {
			continue
		}
		points = r.Points
		if r.MaxPerDay > 0 && sameTypeInWindow >= r.MaxPerDay {
			points = 0
		}
	}
	return points
}

// Streak bonus: every seventh consecutive active day pays a flat bonus,
// logged as a synthetic event so it never re-triggers the streak rule.
const (
	StreakBonusEvery  = 7
	StreakBonusPoints = 20
)

// StreakUpdate describes the outcome of advancing a streak.
type StreakUpdate struct {
	Increased  bool
	StreakDays int64
	Longest    int64
	Bonus      int64
}

// AdvanceStreak applies the day.active streak rule to a progress snapshot.
// A streak advances only when the evaluation date differs from the last
// counted active date by calendar day; repeated same-day activity is a
// no-op. There is no decay path here: missed days never reset the streak
// inline (a reset, if ever wanted, belongs to a scheduled job).
func AdvanceStreak(p Progress, now time.Time) StreakUpdate {
	if p.LastActiveAt != nil && SameCalendarDay(*p.LastActiveAt, now) {
		return StreakUpdate{StreakDays: p.StreakDays, Longest: p.LongestStreak}
	}
	days := p.StreakDays + 1
	up := StreakUpdate{Increased: true, StreakDays: days, Longest: p.LongestStreak}
	if days > up.Longest {
		up.Longest = days
	}
	if days%StreakBonusEvery == 0 {
		up.Bonus = StreakBonusPoints
	}
	return up
}
