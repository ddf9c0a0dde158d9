package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnquest/core"
)

// RetryPolicy bounds how evaluation reacts to storage conflicts. The whole
// call is re-run from the load step; backoff grows linearly per attempt.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy suits short webhook bursts hitting the same user.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 25 * time.Millisecond}
}

// Evaluator converts one validated activity event into point awards, level
// transitions, streak updates, badge grants, and content unlocks. It holds
// no per-user state; everything it mutates goes through the Store.
type Evaluator struct {
	store Store
	bus   *EventBus
	retry RetryPolicy
	now   func() time.Time
}

func NewEvaluator(store Store, bus *EventBus, retry RetryPolicy) *Evaluator {
	if store == nil || bus == nil {
		panic("NewEvaluator requires non-nil store and bus")
	}
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	return &Evaluator{store: store, bus: bus, retry: retry, now: time.Now}
}

// CreateUser provisions a fresh level-1 record, normalizing the ID first.
// Calling it for an existing user returns the current snapshot.
func (e *Evaluator) CreateUser(ctx context.Context, user core.UserID) (core.Progress, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Progress{}, err
	}
	return e.store.CreateUser(ctx, normalized)
}

// GetUser returns the current progress snapshot.
func (e *Evaluator) GetUser(ctx context.Context, user core.UserID) (core.Progress, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Progress{}, err
	}
	return e.store.GetUser(ctx, normalized)
}

// Subscribe registers a notification handler on the underlying bus.
func (e *Evaluator) Subscribe(typ core.NotificationType, handler func(context.Context, core.Notification)) func() {
	return e.bus.Subscribe(typ, handler)
}

func (e *Evaluator) Publish(ctx context.Context, n core.Notification) {
	e.bus.Publish(ctx, n)
}

func (e *Evaluator) Close() { e.bus.Close() }

// Evaluate runs the full pipeline for one event: load user and recent
// history, resolve points, log the event, recompute level, advance the
// streak where applicable, then evaluate badge and unlock rules against the
// post-apply state. On core.ErrConflict the whole pipeline is retried with
// backoff; any other failure aborts with nothing applied.
func (e *Evaluator) Evaluate(ctx context.Context, user core.UserID, typ core.EventType, meta map[string]any) (core.EvaluationResult, error) {
	var zero core.EvaluationResult
	if !core.ValidEventType(typ) {
		return zero, fmt.Errorf("%w: %q", core.ErrInvalidEvent, typ)
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return zero, err
	}

	var res core.EvaluationResult
	for attempt := 0; attempt < e.retry.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(time.Duration(attempt) * e.retry.Backoff):
			}
		}
		res, err = e.evaluateOnce(ctx, normalized, typ, meta)
		if errors.Is(err, core.ErrConflict) {
			continue
		}
		return res, err
	}
	return zero, fmt.Errorf("evaluation for %s: retries exhausted: %w", normalized, err)
}

func (e *Evaluator) evaluateOnce(ctx context.Context, user core.UserID, typ core.EventType, meta map[string]any) (core.EvaluationResult, error) {
	var zero core.EvaluationResult
	now := e.now().UTC()

	prog, err := e.store.GetUser(ctx, user)
	if err != nil {
		return zero, err
	}

	rules, err := e.store.ListPointRules(ctx)
	if err != nil {
		return zero, err
	}
	inWindow, err := e.store.CountEventsByTypeSince(ctx, user, typ, now.Add(-core.PointsWindow))
	if err != nil {
		return zero, err
	}
	points := core.ResolvePoints(typ, rules, inWindow)

	res := core.EvaluationResult{
		PointsAwarded:   points,
		BadgesEarned:    []string{},
		UnlockedContent: []string{},
	}
	events := []core.Event{core.NewEvent(user, typ, points, now, meta)}

	updated := prog.Clone()
	updated.Points += points
	previousLevel := prog.Level

	if typ == core.EventDayActive {
		up := core.AdvanceStreak(prog, now)
		if up.Increased {
			updated.StreakDays = up.StreakDays
			updated.LongestStreak = up.Longest
			updated.LastActiveAt = &now
			res.StreakIncreased = true
			if up.Bonus > 0 {
				res.PointsAwarded += up.Bonus
				updated.Points += up.Bonus
				events = append(events, core.NewEvent(user, core.EventDayActive, up.Bonus, now,
					map[string]any{core.MetaReasonKey: core.MetaStreakBonus}))
			}
		}
	} else {
		updated.LastActiveAt = &now
	}

	updated.Level = core.LevelForPoints(updated.Points)
	updated.Updated = now
	res.PreviousLevel = previousLevel
	res.NewLevel = updated.Level
	res.LeveledUp = updated.Level > previousLevel

	if err := e.store.ApplyEvaluation(ctx, updated, events); err != nil {
		return zero, err
	}

	// Badge and unlock rules run against state after the event is durably
	// logged, so the triggering event counts toward its own thresholds.
	earned, err := e.evaluateBadges(ctx, user, updated)
	if err != nil {
		return zero, err
	}
	res.BadgesEarned = earned

	unlocked, err := e.evaluateUnlocks(ctx, user, updated.Level)
	if err != nil {
		return zero, err
	}
	res.UnlockedContent = unlocked

	e.publishOutcome(ctx, user, updated, res)
	return res, nil
}

func (e *Evaluator) evaluateBadges(ctx context.Context, user core.UserID, prog core.Progress) ([]string, error) {
	catalog, err := e.store.ListBadges(ctx)
	if err != nil {
		return nil, err
	}
	ownedSlugs, err := e.store.ListUserBadgeSlugs(ctx, user)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]struct{}, len(ownedSlugs))
	for _, s := range ownedSlugs {
		owned[s] = struct{}{}
	}

	earned := []string{}
	for _, badge := range catalog {
		if _, ok := owned[badge.Slug]; ok {
			continue
		}
		satisfied, err := e.badgeSatisfied(ctx, user, prog, badge.Rule)
		if err != nil {
			return earned, err
		}
		if !satisfied {
			continue
		}
		// Insert-if-absent: under concurrent evaluation only one call wins.
		granted, err := e.store.GrantBadge(ctx, user, badge.Slug)
		if err != nil {
			return earned, err
		}
		if granted {
			earned = append(earned, badge.Slug)
		}
	}
	return earned, nil
}

// badgeSatisfied is the exhaustive match over the closed rule set. Adding a
// rule kind means extending this switch and nothing else.
func (e *Evaluator) badgeSatisfied(ctx context.Context, user core.UserID, prog core.Progress, rule core.BadgeRule) (bool, error) {
	switch rule.Kind {
	case core.RuleCompleteLessons:
		n, err := e.store.CountEventsByType(ctx, user, core.EventLessonCompleted)
		if err != nil {
			return false, err
		}
		return n >= rule.Count, nil

	case core.RuleFirstQuizPass:
		n, err := e.store.CountEventsByType(ctx, user, core.EventQuizPassed)
		if err != nil {
			return false, err
		}
		return n >= 1, nil

	case core.RuleQuizPassStreak:
		// Coverage over distinct dates, not strict consecutiveness.
		events, err := e.store.ListRecentEventsByType(ctx, user, core.EventQuizPassed, int(rule.Days))
		if err != nil {
			return false, err
		}
		if int64(len(events)) < rule.Days {
			return false, nil
		}
		times := make([]time.Time, 0, len(events))
		for _, ev := range events {
			times = append(times, ev.CreatedAt)
		}
		return int64(core.DistinctDays(times)) >= rule.Days, nil

	case core.RuleLevelReached:
		return prog.Level >= rule.Level, nil

	case core.RuleLoginStreak:
		return prog.StreakDays >= rule.Days, nil

	default:
		return false, nil
	}
}

func (e *Evaluator) evaluateUnlocks(ctx context.Context, user core.UserID, level int64) ([]string, error) {
	rules, err := e.store.ListUnlockRules(ctx)
	if err != nil {
		return nil, err
	}
	unlocked := []string{}
	for _, rule := range rules {
		if level < rule.Level {
			continue
		}
		granted, err := e.store.GrantUnlock(ctx, user, rule.ContentID)
		if err != nil {
			return unlocked, err
		}
		if granted {
			unlocked = append(unlocked, rule.ContentID)
		}
	}
	return unlocked, nil
}

func (e *Evaluator) publishOutcome(ctx context.Context, user core.UserID, prog core.Progress, res core.EvaluationResult) {
	if res.PointsAwarded > 0 {
		e.bus.Publish(ctx, core.NewPointsAwarded(user, res.PointsAwarded, prog.Points))
	}
	if res.LeveledUp {
		e.bus.Publish(ctx, core.NewLevelUp(user, res.PreviousLevel, res.NewLevel))
	}
	if res.StreakIncreased {
		e.bus.Publish(ctx, core.NewStreakAdvanced(user, prog.StreakDays))
	}
	for _, slug := range res.BadgesEarned {
		e.bus.Publish(ctx, core.NewBadgeEarned(user, slug))
	}
	for _, contentID := range res.UnlockedContent {
		e.bus.Publish(ctx, core.NewContentUnlocked(user, contentID))
	}
}
