package models

import "time"

type LessonStatus string

const (
	LessonStatusNotStarted LessonStatus = "not_started"
	LessonStatusInProgress LessonStatus = "in_progress"
	LessonStatusCompleted  LessonStatus = "completed"
)

// LessonProgress tracks one user's state on one lesson of a course.
type LessonProgress struct {
	ID             string       `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string       `gorm:"not null;uniqueIndex:idx_lesson_progress_key,priority:1" json:"user_id"`
	CourseID       string       `gorm:"not null;uniqueIndex:idx_lesson_progress_key,priority:2" json:"course_id"`
	LessonID       string       `gorm:"not null;uniqueIndex:idx_lesson_progress_key,priority:3" json:"lesson_id"`
	Status         LessonStatus `gorm:"type:varchar(16);not null;default:'not_started';index" json:"status"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	IsBookmarked   bool         `gorm:"not null;default:false" json:"is_bookmarked"`
	Notes          string       `gorm:"type:text" json:"notes"`

	Timestamps
}
