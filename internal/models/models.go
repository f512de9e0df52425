// Package models defines data structures used throughout the UTOPAI backend.
package models

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"time"
)

// ActivityKind identifies the pedagogical exercise type of an activity.
// The set is closed; code switching over it must handle every constant.
type ActivityKind string

const (
	// KindIntro is a guided introduction activity
	KindIntro ActivityKind = "intro"
	// KindPromptBuilder is a slot-based prompt composition activity
	KindPromptBuilder ActivityKind = "prompt_builder"
	// KindQuiz is a multiple-choice quiz activity
	KindQuiz ActivityKind = "quiz"
	// KindChat is a free-form mentor chat activity
	KindChat ActivityKind = "chat"
	// KindCreative is an open creative prompt challenge
	KindCreative ActivityKind = "creative"
)

// AllActivityKinds lists every valid activity kind.
var AllActivityKinds = []ActivityKind{KindIntro, KindPromptBuilder, KindQuiz, KindChat, KindCreative}

// String implements fmt.Stringer
func (k ActivityKind) String() string { return string(k) }

// IsValid reports whether k is one of the known activity kinds
func (k ActivityKind) IsValid() bool {
	switch k {
	case KindIntro, KindPromptBuilder, KindQuiz, KindChat, KindCreative:
		return true
	}
	return false
}

// ProgressStatus tracks the per-user, per-activity state machine
type ProgressStatus string

const (
	// StatusNotStarted is the implicit state before the first start call
	StatusNotStarted ProgressStatus = "not_started"
	// StatusInProgress is set on start and on every non-completing submit
	StatusInProgress ProgressStatus = "in_progress"
	// StatusCompleted is terminal; starting a completed activity is rejected
	StatusCompleted ProgressStatus = "completed"
)

// RequirementType classifies badge unlock predicates
type RequirementType string

const (
	// RequirementPoints unlocks at total points >= value
	RequirementPoints RequirementType = "points"
	// RequirementActivityCount unlocks at completed activities >= value
	RequirementActivityCount RequirementType = "activity_count"
	// RequirementIslandComplete unlocks when every activity of island <value> is completed
	RequirementIslandComplete RequirementType = "island_complete"
	// RequirementThemeSelection unlocks when the user has picked a theme
	RequirementThemeSelection RequirementType = "theme_selection"
	// RequirementStreak unlocks at streak days >= value
	RequirementStreak RequirementType = "streak"
	// RequirementActivityKind unlocks when at least <value> distinct activity kinds are completed
	RequirementActivityKind RequirementType = "activity_type"
	// RequirementPromptQuality unlocks when a prompt scores >= value
	RequirementPromptQuality RequirementType = "prompt_quality"
)

// UserType distinguishes child and parent accounts at login
type UserType string

const (
	// UserTypeChild is a learner account
	UserTypeChild UserType = "child"
	// UserTypeParent is a guardian account
	UserTypeParent UserType = "parent"
)

// User represents a learner in the system
type User struct {
	ID            int            `json:"id" yaml:"id"`
	Username      string         `json:"username" yaml:"username"`
	PasswordHash  sql.NullString `json:"-" yaml:"-"` // Omit from JSON responses
	Age           sql.NullInt32  `json:"age" yaml:"age"`
	Theme         sql.NullString `json:"theme" yaml:"theme"`
	ThemeSelected bool           `json:"theme_selected" yaml:"theme_selected"`
	TotalPoints   int            `json:"total_points" yaml:"total_points"`
	CurrentIsland int            `json:"current_island" yaml:"current_island"`
	StreakDays    int            `json:"streak_days" yaml:"streak_days"`
	LastActive    sql.NullTime   `json:"last_active" yaml:"last_active"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" yaml:"updated_at"`
}

// MarshalJSON customizes JSON marshaling for User to handle sql.Null types properly
func (u User) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID            int        `json:"id"`
		Username      string     `json:"username"`
		Age           *int32     `json:"age"`
		Theme         *string    `json:"theme"`
		ThemeSelected bool       `json:"theme_selected"`
		TotalPoints   int        `json:"total_points"`
		CurrentIsland int        `json:"current_island"`
		StreakDays    int        `json:"streak_days"`
		LastActive    *time.Time `json:"last_active"`
		CreatedAt     time.Time  `json:"created_at"`
	}{
		ID:            u.ID,
		Username:      u.Username,
		Age:           nullInt32ToPointer(u.Age),
		Theme:         nullStringToPointer(u.Theme),
		ThemeSelected: u.ThemeSelected,
		TotalPoints:   u.TotalPoints,
		CurrentIsland: u.CurrentIsland,
		StreakDays:    u.StreakDays,
		LastActive:    nullTimeToPointer(u.LastActive),
		CreatedAt:     u.CreatedAt,
	})
}

// Parent represents a guardian account linked to one or more children
type Parent struct {
	ID           int            `json:"id" yaml:"id"`
	Username     string         `json:"username" yaml:"username"`
	Email        sql.NullString `json:"email" yaml:"email"`
	PasswordHash sql.NullString `json:"-" yaml:"-"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
}

// MarshalJSON customizes JSON marshaling for Parent
func (p Parent) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID        int       `json:"id"`
		Username  string    `json:"username"`
		Email     *string   `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	}{
		ID:        p.ID,
		Username:  p.Username,
		Email:     nullStringToPointer(p.Email),
		CreatedAt: p.CreatedAt,
	})
}

// Island groups activities into a themed learning world
type Island struct {
	ID                int       `json:"id" yaml:"id"`
	Name              string    `json:"name" yaml:"name"`
	Description       string    `json:"description" yaml:"description"`
	Position          int       `json:"position" yaml:"position"`
	UnlockRequirement int       `json:"unlock_requirement" yaml:"unlock_requirement"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
}

// Activity describes one pedagogical exercise; rows are seeded and read-only at runtime
type Activity struct {
	ID          int          `json:"id" yaml:"id"`
	IslandID    int          `json:"island_id" yaml:"island_id"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	Kind        ActivityKind `json:"kind" yaml:"kind"`
	Difficulty  int          `json:"difficulty" yaml:"difficulty"`
	Points      int          `json:"points" yaml:"points"`
	Position    int          `json:"position" yaml:"position"`
	Steps       int          `json:"steps" yaml:"steps"`
}

// StepResult records the outcome of a single step of a multi-step activity
type StepResult struct {
	Completed bool `json:"completed"`
	Score     int  `json:"score"`
}

// StepData maps step id ("1", "2", "3") to its result
type StepData map[string]StepResult

// AllComplete reports whether every one of the given steps is marked completed
func (sd StepData) AllComplete(steps int) bool {
	if steps <= 0 {
		return false
	}
	for i := 1; i <= steps; i++ {
		r, ok := sd[stepKey(i)]
		if !ok || !r.Completed {
			return false
		}
	}
	return true
}

func stepKey(step int) string {
	return strconv.Itoa(step)
}

// StepKey returns the StepData key for a step number
func StepKey(step int) string { return stepKey(step) }

// UserProgress tracks the state of one user on one activity
type UserProgress struct {
	ID                     int            `json:"id" yaml:"id"`
	UserID                 int            `json:"user_id" yaml:"user_id"`
	ActivityID             int            `json:"activity_id" yaml:"activity_id"`
	Status                 ProgressStatus `json:"status" yaml:"status"`
	Attempts               int            `json:"attempts" yaml:"attempts"`
	Score                  int            `json:"score" yaml:"score"`
	StepData               StepData       `json:"step_data" yaml:"step_data"`
	CompletionBonusAwarded bool           `json:"completion_bonus_awarded" yaml:"completion_bonus_awarded"`
	StartedAt              sql.NullTime   `json:"started_at" yaml:"started_at"`
	CompletedAt            sql.NullTime   `json:"completed_at" yaml:"completed_at"`
	UpdatedAt              time.Time      `json:"updated_at" yaml:"updated_at"`
}

// MarshalJSON customizes JSON marshaling for UserProgress to handle sql.NullTime properly
func (up UserProgress) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID          int            `json:"id"`
		UserID      int            `json:"user_id"`
		ActivityID  int            `json:"activity_id"`
		Status      ProgressStatus `json:"status"`
		Attempts    int            `json:"attempts"`
		Score       int            `json:"score"`
		StepData    StepData       `json:"step_data"`
		StartedAt   *time.Time     `json:"started_at"`
		CompletedAt *time.Time     `json:"completed_at"`
	}{
		ID:          up.ID,
		UserID:      up.UserID,
		ActivityID:  up.ActivityID,
		Status:      up.Status,
		Attempts:    up.Attempts,
		Score:       up.Score,
		StepData:    up.StepData,
		StartedAt:   nullTimeToPointer(up.StartedAt),
		CompletedAt: nullTimeToPointer(up.CompletedAt),
	})
}

// Badge is a persistent achievement definition
type Badge struct {
	ID               int             `json:"id" yaml:"id"`
	Name             string          `json:"name" yaml:"name"`
	Description      string          `json:"description" yaml:"description"`
	Icon             string          `json:"icon" yaml:"icon"`
	RequirementType  RequirementType `json:"requirement_type" yaml:"requirement_type"`
	RequirementValue int             `json:"requirement_value" yaml:"requirement_value"`
	RequirementKind  sql.NullString  `json:"requirement_kind" yaml:"requirement_kind"`
	Points           int             `json:"points" yaml:"points"`
}

// UserBadge records a badge earned by a user; awarding is monotonic
type UserBadge struct {
	ID       int       `json:"id" yaml:"id"`
	UserID   int       `json:"user_id" yaml:"user_id"`
	BadgeID  int       `json:"badge_id" yaml:"badge_id"`
	EarnedAt time.Time `json:"earned_at" yaml:"earned_at"`
}

// ActivityListing pairs an activity with the requesting user's progress
type ActivityListing struct {
	Activity Activity       `json:"activity"`
	Status   ProgressStatus `json:"status"`
	Score    int            `json:"score"`
	Attempts int            `json:"attempts"`
}

// IslandListing is one island in the map view, with its lock state for
// the requesting user
type IslandListing struct {
	Island     Island            `json:"island"`
	Locked     bool              `json:"locked"`
	Activities []ActivityListing `json:"activities"`
}

// SubmissionOutcome is the result of recording an activity or step
// submission: the updated progress row, the points credited and any
// badges awarded by this submission
type SubmissionOutcome struct {
	Progress     UserProgress `json:"progress"`
	Score        int          `json:"score"`
	PointsEarned int          `json:"points_earned"`
	Feedback     string       `json:"feedback"`
	Success      bool         `json:"success"`
	NewBadges    []Badge      `json:"new_badges"`
}

// UserStats aggregates a learner's standing for dashboards and the
// parent summary email
type UserStats struct {
	TotalPoints         int `json:"total_points"`
	CompletedActivities int `json:"completed_activities"`
	TotalActivities     int `json:"total_activities"`
	BadgeCount          int `json:"badge_count"`
	StreakDays          int `json:"streak_days"`
}

// LeaderboardEntry is one row of the points leaderboard
type LeaderboardEntry struct {
	UserID            int     `json:"user_id" yaml:"user_id"`
	Username          string  `json:"username" yaml:"username"`
	TotalPoints       int     `json:"total_points" yaml:"total_points"`
	BadgeCount        int     `json:"badge_count" yaml:"badge_count"`
	CompletionPercent float64 `json:"completion_percent" yaml:"completion_percent"`
	Rank              int     `json:"rank" yaml:"rank"`
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullInt32ToPointer(ni sql.NullInt32) *int32 {
	if ni.Valid {
		return &ni.Int32
	}
	return nil
}
