package core

import "math"

// Level curve. Forward and inverse are deliberately not exact inverses: the
// forward direction floors and the inverse ceils, so a level's threshold can
// resolve one level low at the boundary. That asymmetry is part of the
// observable contract and must not be smoothed over.

// LevelForPoints maps cumulative points to a level using a sublinear curve:
// level = floor((points/100)^0.8) + 1. Monotonic non-decreasing; never
// below 1.
func LevelForPoints(points int64) int64 {
	if points <= 0 {
		return 1
	}
	return int64(math.Floor(math.Pow(float64(points)/100.0, 0.8))) + 1
}

// PointsForLevel returns the point threshold for a level:
// ceil((level-1)^1.25 * 100). Level 1 starts at 0.
func PointsForLevel(level int64) int64 {
	if level <= 1 {
		return 0
	}
	return int64(math.Ceil(math.Pow(float64(level-1), 1.25) * 100.0))
}

// PointsToNextLevel returns how many more points are needed to reach the
// next level from the given total.
func PointsToNextLevel(points int64) int64 {
	return PointsForLevel(LevelForPoints(points)+1) - points
}

// LevelProgressPercent returns how far through the current level the given
// total is, floored to an integer in [0,100). Exactly 0 at a level's
// starting threshold.
func LevelProgressPercent(points int64) int64 {
	level := LevelForPoints(points)
	base := PointsForLevel(level)
	next := PointsForLevel(level + 1)
	if next <= base || points <= base {
		return 0
	}
	return (points - base) * 100 / (next - base)
}

// Milestone pairs a display level with its point threshold.
type Milestone struct {
	Level  int64 `json:"level"`
	Points int64 `json:"points"`
}

// LevelMilestones returns the thresholds commonly shown on progress screens.
func LevelMilestones() []Milestone {
	levels := []int64{1, 5, 10, 15, 20, 25, 30, 40, 50, 75, 100}
	out := make([]Milestone, 0, len(levels))
	for _, l := range levels {
		out = append(out, Milestone{Level: l, Points: PointsForLevel(l)})
	}
	return out
}
