package core

// Catalog bundles the rule data an engine instance evaluates against.
// Catalogs are immutable configuration; rules are data, not code.
type Catalog struct {
	Badges      []Badge      `json:"badges"`
	PointRules  []PointRule  `json:"point_rules"`
	UnlockRules []UnlockRule `json:"unlock_rules"`
}

// DefaultCatalog returns the stock learning-platform catalog: lesson, quiz,
// login and activity point rules, the standard badge ladder, and the bonus
// module unlock.
func DefaultCatalog() Catalog {
	return Catalog{
		Badges: []Badge{
			{Slug: "first-steps", Name: "First Steps", Description: "Complete your first lesson", Icon: "🎯",
				Rule: BadgeRule{Kind: RuleCompleteLessons, Count: 1}},
			{Slug: "lesson-10", Name: "Dedicated Learner", Description: "Complete 10 lessons", Icon: "📚",
				Rule: BadgeRule{Kind: RuleCompleteLessons, Count: 10}},
			{Slug: "lesson-50", Name: "Knowledge Seeker", Description: "Complete 50 lessons", Icon: "🔥",
				Rule: BadgeRule{Kind: RuleCompleteLessons, Count: 50}},
			{Slug: "rookie-quizzer", Name: "Quiz Rookie", Description: "Pass your first quiz", Icon: "✅",
				Rule: BadgeRule{Kind: RuleFirstQuizPass}},
			{Slug: "quiz-master", Name: "Quiz Master", Description: "Pass quizzes for 7 consecutive days", Icon: "🏆",
				Rule: BadgeRule{Kind: RuleQuizPassStreak, Days: 7}},
			{Slug: "streak-7", Name: "Week Warrior", Description: "Maintain a 7-day login streak", Icon: "🔥",
				Rule: BadgeRule{Kind: RuleLoginStreak, Days: 7}},
			{Slug: "streak-30", Name: "Monthly Master", Description: "Maintain a 30-day login streak", Icon: "⚡",
				Rule: BadgeRule{Kind: RuleLoginStreak, Days: 30}},
			{Slug: "level-5", Name: "Rising Star", Description: "Reach Level 5", Icon: "⭐",
				Rule: BadgeRule{Kind: RuleLevelReached, Level: 5}},
			{Slug: "level-10", Name: "Expert", Description: "Reach Level 10", Icon: "💎",
				Rule: BadgeRule{Kind: RuleLevelReached, Level: 10}},
			{Slug: "level-25", Name: "Legend", Description: "Reach Level 25", Icon: "👑",
				Rule: BadgeRule{Kind: RuleLevelReached, Level: 25}},
		},
		PointRules: []PointRule{
			{EventType: EventLessonCompleted, Points: 25},
			{EventType: EventQuizPassed, Points: 40},
			{EventType: EventLogin, Points: 2, MaxPerDay: 1},
			{EventType: EventDayActive, Points: 5, MaxPerDay: 1},
		},
		UnlockRules: []UnlockRule{
			{Level: 3, ContentID: "bonus-module-1"},
		},
	}
}
