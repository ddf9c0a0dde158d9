package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// User mirrors the public JSON surface of a user progress response.
type User struct {
	UserID          string     `json:"user_id"`
	Points          int64      `json:"points"`
	Level           int64      `json:"level"`
	StreakDays      int64      `json:"streak_days"`
	LongestStreak   int64      `json:"longest_streak"`
	LastActiveAt    *time.Time `json:"last_active_at,omitempty"`
	Updated         time.Time  `json:"updated"`
	Badges          []string   `json:"badges"`
	PointsToNext    int64      `json:"points_to_next_level"`
	ProgressPercent int64      `json:"level_progress_percent"`
	Rank            int        `json:"rank,omitempty"`
}

// EvaluationResult mirrors the engine's evaluation outcome.
type EvaluationResult struct {
	PointsAwarded   int64    `json:"points_awarded"`
	BadgesEarned    []string `json:"badges_earned"`
	LeveledUp       bool     `json:"leveled_up"`
	PreviousLevel   int64    `json:"previous_level"`
	NewLevel        int64    `json:"new_level"`
	StreakIncreased bool     `json:"streak_increased"`
	UnlockedContent []string `json:"unlocked_content"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	User   string `json:"user_id"`
	Points int64  `json:"points"`
}

// Notification is a streamed engine fact.
type Notification struct {
	Type          string    `json:"type"`
	Time          time.Time `json:"time"`
	UserID        string    `json:"user_id"`
	Points        int64     `json:"points,omitempty"`
	Total         int64     `json:"total,omitempty"`
	Level         int64     `json:"level,omitempty"`
	PreviousLevel int64     `json:"previous_level,omitempty"`
	Badge         string    `json:"badge,omitempty"`
	StreakDays    int64     `json:"streak_days,omitempty"`
	ContentID     string    `json:"content_id,omitempty"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// APIError is the structured error body the server returns on failures.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("request failed: status %d", resp.StatusCode)
		}
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
