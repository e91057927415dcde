package models

import (
	"time"
)

// AchievementCondition names the milestone that unlocks an achievement.
type AchievementCondition string

const (
	ConditionFirstLogin         AchievementCondition = "first_login"
	ConditionFirstLesson        AchievementCondition = "complete_first_course"
	ConditionPerfectQuizScore   AchievementCondition = "perfect_quiz_score"
	ConditionStreak7            AchievementCondition = "streak_7"
	ConditionStreak30           AchievementCondition = "streak_30"
	ConditionCompleted10Quizzes AchievementCondition = "complete_10_quizzes"
)

// AchievementDefinition: static catalog entry
type AchievementDefinition struct {
	ID          string               `json:"achievement_id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Icon        string               `json:"icon"`
	Color       string               `json:"color"`
	Reward      Reward               `json:"reward"`
	Condition   AchievementCondition `json:"condition"`
}

// ProfileAchievement: per-profile unlock/claim state, one row per catalog entry
type ProfileAchievement struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"-"`
	ProfileID     string     `gorm:"type:uuid;not null;uniqueIndex:idx_profile_achievement,priority:1" json:"-"`
	AchievementID string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_profile_achievement,priority:2" json:"achievement_id"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
	Claimed       bool       `gorm:"not null;default:false" json:"claimed"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
}

// Claimable reports whether the achievement is unlocked and not yet claimed.
func (a ProfileAchievement) Claimable() bool {
	return a.UnlockedAt != nil && !a.Claimed
}

// AchievementCatalog is loaded once and never mutated.
var AchievementCatalog = []AchievementDefinition{
	{
		ID:          "first_login",
		Title:       "Welcome Aboard!",
		Description: "Complete your first login",
		Icon:        "hand-left-outline",
		Color:       "bg-blue-50",
		Reward:      Reward{Type: RewardTypeCoins, Amount: 50},
		Condition:   ConditionFirstLogin,
	},
	{
		ID:          "first_course_completed",
		Title:       "First Course Completed",
		Description: "Complete your first course",
		Icon:        "school-outline",
		Color:       "bg-green-50",
		Reward:      Reward{Type: RewardTypePoints, Amount: 100},
		Condition:   ConditionFirstLesson,
	},
	{
		ID:          "perfect_quiz_score",
		Title:       "Perfect Quiz Score",
		Description: "Score 100% on any quiz",
		Icon:        "ribbon-outline",
		Color:       "bg-purple-50",
		Reward:      Reward{Type: RewardTypeCoins, Amount: 200},
		Condition:   ConditionPerfectQuizScore,
	},
	{
		ID:          "7_day_streak",
		Title:       "7-Day Streak Achieved",
		Description: "Login for 7 consecutive days",
		Icon:        "flame-outline",
		Color:       "bg-yellow-50",
		Reward:      Reward{Type: RewardTypeSpinChance, Amount: 1},
		Condition:   ConditionStreak7,
	},
	{
		ID:          "30_day_streak",
		Title:       "30-Day Streak Master",
		Description: "Login for 30 consecutive days",
		Icon:        "trophy-outline",
		Color:       "bg-red-50",
		Reward:      Reward{Type: RewardTypeTrialAccess, Amount: 7},
		Condition:   ConditionStreak30,
	},
	{
		ID:          "10_quizzes_completed",
		Title:       "Quiz Master",
		Description: "Complete 10 quizzes",
		Icon:        "checkbox-outline",
		Color:       "bg-indigo-50",
		Reward:      Reward{Type: RewardTypePoints, Amount: 500},
		Condition:   ConditionCompleted10Quizzes,
	},
}

// FindAchievement looks up a catalog entry by id.
func FindAchievement(id string) (AchievementDefinition, bool) {
	for _, def := range AchievementCatalog {
		if def.ID == id {
			return def, true
		}
	}
	return AchievementDefinition{}, false
}

// AchievementByCondition looks up the catalog entry unlocked by cond.
func AchievementByCondition(cond AchievementCondition) (AchievementDefinition, bool) {
	for _, def := range AchievementCatalog {
		if def.Condition == cond {
			return def, true
		}
	}
	return AchievementDefinition{}, false
}
