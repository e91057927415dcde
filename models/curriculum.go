package models

import (
	"time"

	"gorm.io/datatypes"
)

// Class is one curriculum class with its courses embedded as JSON.
// Course content is read-only to the reward core.
type Class struct {
	ClassID        string                       `gorm:"primaryKey" json:"classId"`
	ClassName      string                       `gorm:"not null" json:"className"`
	EducationLevel string                       `gorm:"index" json:"educationLevel"`
	Courses        datatypes.JSONType[[]Course] `gorm:"type:jsonb" json:"courses"`
	CreatedAt      time.Time                    `json:"-" gorm:"autoCreateTime"`
	UpdatedAt      time.Time                    `json:"-" gorm:"autoUpdateTime"`
}

type Course struct {
	CourseID   string   `json:"courseId"`
	CourseName string   `json:"courseName"`
	Lessons    []Lesson `json:"lessons"`
	Quiz       *Quiz    `json:"quiz,omitempty"`
}

type Lesson struct {
	LessonID    string `json:"lessonId"`
	LessonTitle string `json:"lessonTitle"`
	ContentType string `json:"contentType,omitempty"`
	Duration    int    `json:"duration,omitempty"` // minutes
}

type Quiz struct {
	QuizID         string     `json:"quizId"`
	QuizTitle      string     `json:"quizTitle"`
	QuizImage      string     `json:"quizImage,omitempty"`
	TotalQuestions int        `json:"totalQuestions"`
	PassingScore   float64    `json:"passingScore"`
	TimeLimit      int        `json:"timeLimit"` // minutes
	Questions      []Question `json:"questions"`
}

// Question keeps the correct answer server-side; see Quiz.Public.
type Question struct {
	QuestionID    string   `json:"questionId"`
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options"`
	Visual        []string `json:"visual,omitempty"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// PublicQuestion is what clients see.
type PublicQuestion struct {
	QuestionID   string   `json:"questionId"`
	QuestionText string   `json:"questionText"`
	Options      []string `json:"options"`
	Visual       []string `json:"visual"`
}

type PublicQuiz struct {
	QuizID         string           `json:"quizId"`
	QuizTitle      string           `json:"quizTitle"`
	QuizImage      string           `json:"quizImage,omitempty"`
	TotalQuestions int              `json:"totalQuestions"`
	PassingScore   float64          `json:"passingScore"`
	TimeLimit      int              `json:"timeLimit"`
	Questions      []PublicQuestion `json:"questions"`
}

// Public strips correct answers.
func (q Quiz) Public() PublicQuiz {
	out := PublicQuiz{
		QuizID:         q.QuizID,
		QuizTitle:      q.QuizTitle,
		QuizImage:      q.QuizImage,
		TotalQuestions: len(q.Questions),
		PassingScore:   q.PassingScore,
		TimeLimit:      q.TimeLimit,
		Questions:      make([]PublicQuestion, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		visual := question.Visual
		if visual == nil {
			visual = []string{}
		}
		out.Questions = append(out.Questions, PublicQuestion{
			QuestionID:   question.QuestionID,
			QuestionText: question.QuestionText,
			Options:      question.Options,
			Visual:       visual,
		})
	}
	return out
}
