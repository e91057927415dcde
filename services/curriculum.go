package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"storra-backend/models"
	"storra-backend/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CurriculumService reads class, course, lesson and quiz definitions.
type CurriculumService struct {
	DB *gorm.DB
}

func NewCurriculumService(db *gorm.DB) *CurriculumService {
	return &CurriculumService{DB: db}
}

type CourseSummary struct {
	CourseID    string `json:"courseId"`
	CourseName  string `json:"courseName"`
	LessonCount int    `json:"lessonCount"`
	QuizID      string `json:"quizId,omitempty"`
}

type ClassSummary struct {
	ClassID        string          `json:"classId"`
	ClassName      string          `json:"className"`
	EducationLevel string          `json:"educationLevel"`
	Courses        []CourseSummary `json:"courses"`
}

func (s *CurriculumService) ListClasses(ctx context.Context) ([]ClassSummary, error) {
	var classes []models.Class
	if err := s.DB.WithContext(ctx).Order("class_id").Find(&classes).Error; err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	out := make([]ClassSummary, 0, len(classes))
	for _, class := range classes {
		courses := class.Courses.Data()
		summary := ClassSummary{
			ClassID:        class.ClassID,
			ClassName:      class.ClassName,
			EducationLevel: class.EducationLevel,
			Courses:        make([]CourseSummary, 0, len(courses)),
		}
		for _, course := range courses {
			cs := CourseSummary{CourseID: course.CourseID, CourseName: course.CourseName, LessonCount: len(course.Lessons)}
			if course.Quiz != nil {
				cs.QuizID = course.Quiz.QuizID
			}
			summary.Courses = append(summary.Courses, cs)
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *CurriculumService) FindClass(ctx context.Context, classID string) (*models.Class, error) {
	var class models.Class
	if err := s.DB.WithContext(ctx).Where("class_id = ?", classID).First(&class).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "Class %s not found", classID)
		}
		return nil, fmt.Errorf("failed to load class: %w", err)
	}
	return &class, nil
}

func (s *CurriculumService) FindCourse(ctx context.Context, classID, courseID string) (*models.Course, error) {
	class, err := s.FindClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	for _, course := range class.Courses.Data() {
		if course.CourseID == courseID {
			course := course
			return &course, nil
		}
	}
	return nil, NewError(KindNotFound, "Course %s not found", courseID)
}

// FindQuiz returns the quiz attached to a course, answers included.
func (s *CurriculumService) FindQuiz(ctx context.Context, classID, courseID, quizID string) (*models.Quiz, *models.Course, error) {
	course, err := s.FindCourse(ctx, classID, courseID)
	if err != nil {
		return nil, nil, err
	}
	if course.Quiz == nil || course.Quiz.QuizID != quizID {
		return nil, nil, NewError(KindNotFound, "Quiz %s not found", quizID)
	}
	return course.Quiz, course, nil
}

func (s *CurriculumService) FindLesson(ctx context.Context, classID, courseID, lessonID string) (*models.Lesson, error) {
	course, err := s.FindCourse(ctx, classID, courseID)
	if err != nil {
		return nil, err
	}
	for _, lesson := range course.Lessons {
		if lesson.LessonID == lessonID {
			lesson := lesson
			return &lesson, nil
		}
	}
	return nil, NewError(KindNotFound, "Lesson %s not found", lessonID)
}

// Import upserts classes from a JSON array. Existing classes are replaced.
func (s *CurriculumService) Import(ctx context.Context, r io.Reader) (int, error) {
	var classes []models.Class
	if err := json.NewDecoder(r).Decode(&classes); err != nil {
		return 0, NewError(KindInvalidInput, "Invalid curriculum document: %v", err)
	}
	if len(classes) == 0 {
		return 0, NewError(KindInvalidInput, "Curriculum document has no classes")
	}
	for i, class := range classes {
		if err := validateClass(class); err != nil {
			return 0, NewError(KindInvalidInput, "Class %d: %v", i, err)
		}
	}

	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "class_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"class_name", "education_level", "courses", "updated_at"}),
	}).Create(&classes).Error
	if err != nil {
		return 0, fmt.Errorf("failed to import curriculum: %w", err)
	}
	utils.Logger.Info("curriculum imported", zap.Int("classes", len(classes)))
	return len(classes), nil
}

func validateClass(class models.Class) error {
	if class.ClassID == "" || class.ClassName == "" {
		return errors.New("classId and className are required")
	}
	courseIDs := map[string]bool{}
	for _, course := range class.Courses.Data() {
		if course.CourseID == "" {
			return errors.New("courseId is required")
		}
		if courseIDs[course.CourseID] {
			return fmt.Errorf("duplicate courseId %s", course.CourseID)
		}
		courseIDs[course.CourseID] = true
		if course.Quiz == nil {
			continue
		}
		questionIDs := map[string]bool{}
		for _, q := range course.Quiz.Questions {
			if q.QuestionID == "" || questionIDs[q.QuestionID] {
				return fmt.Errorf("quiz %s: question ids must be unique and non-empty", course.Quiz.QuizID)
			}
			questionIDs[q.QuestionID] = true
		}
	}
	return nil
}
