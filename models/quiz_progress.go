package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuizStatus is the tier of the latest attempt.
type QuizStatus string

const (
	QuizStatusNew        QuizStatus = "new"
	QuizStatusIncomplete QuizStatus = "incomplete"
	QuizStatusComplete   QuizStatus = "complete"
)

// QuizProgress is one row per user per quiz.
type QuizProgress struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string     `gorm:"not null;uniqueIndex:idx_quiz_progress_user_quiz,priority:1;index:idx_quiz_progress_user_course,priority:1" json:"user_id"`
	QuizID         string     `gorm:"not null;uniqueIndex:idx_quiz_progress_user_quiz,priority:2" json:"quiz_id"`
	ClassID        string     `gorm:"not null" json:"class_id"`
	CourseID       string     `gorm:"not null;index:idx_quiz_progress_user_course,priority:2" json:"course_id"`
	Status         QuizStatus `gorm:"type:varchar(16);not null;default:'new';index" json:"status"`
	AttemptCount   int        `gorm:"not null;default:0" json:"attempts"`
	BestScore      int        `gorm:"not null;default:0" json:"best_score"`
	BestPercentage float64    `gorm:"not null;default:0" json:"best_percentage"`
	// PointsEarned is the one-time perfect-score bonus; zero until the first 100%.
	PointsEarned int64      `gorm:"not null;default:0" json:"points_earned"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	Attempts []QuizAttempt `gorm:"foreignKey:QuizProgressID" json:"-"`

	Timestamps
}

// AttemptAnswer is one graded answer inside an attempt.
type AttemptAnswer struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer string `json:"selectedAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
}

// QuizAttempt is append-only. AttemptNumber is unique per progress row.
type QuizAttempt struct {
	ID             string                              `gorm:"primaryKey;type:uuid" json:"-"`
	QuizProgressID string                              `gorm:"type:uuid;not null;uniqueIndex:idx_quiz_attempt_number,priority:1" json:"-"`
	AttemptNumber  int                                 `gorm:"not null;uniqueIndex:idx_quiz_attempt_number,priority:2" json:"attempt_number"`
	Score          int                                 `gorm:"not null" json:"score"`
	TotalQuestions int                                 `gorm:"not null" json:"total_questions"`
	Percentage     float64                             `gorm:"not null" json:"percentage"`
	Answers        datatypes.JSONType[[]AttemptAnswer] `gorm:"type:jsonb" json:"answers"`
	TimeSpent      int                                 `gorm:"not null;default:0" json:"time_spent"` // seconds
	AttemptedAt    time.Time                           `gorm:"not null" json:"attempted_at"`
}
