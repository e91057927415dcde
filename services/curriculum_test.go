package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const curriculumDoc = `[
  {
    "classId": "primary-2",
    "className": "Primary 2",
    "educationLevel": "primary",
    "courses": [
      {
        "courseId": "eng",
        "courseName": "English",
        "lessons": [{"lessonId": "e1", "lessonTitle": "Vowels"}],
        "quiz": {
          "quizId": "eng-quiz",
          "quizTitle": "Letters",
          "passingScore": 70,
          "questions": [
            {"questionId": "q1", "questionText": "First letter?", "options": ["a", "b"], "correctAnswer": "a"}
          ]
        }
      }
    ]
  }
]`

func TestCurriculumImportAndLookup(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	curriculum := NewCurriculumService(db)

	n, err := curriculum.Import(ctx, strings.NewReader(curriculumDoc))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 1 {
		t.Fatalf("imported %d classes", n)
	}

	classes, err := curriculum.ListClasses(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(classes) != 1 || len(classes[0].Courses) != 1 || classes[0].Courses[0].QuizID != "eng-quiz" {
		t.Fatalf("classes = %+v", classes)
	}

	quiz, course, err := curriculum.FindQuiz(ctx, "primary-2", "eng", "eng-quiz")
	if err != nil {
		t.Fatalf("find quiz: %v", err)
	}
	if course.CourseName != "English" || quiz.Questions[0].CorrectAnswer != "a" {
		t.Fatalf("quiz = %+v", quiz)
	}
	public := quiz.Public()
	if public.TotalQuestions != 1 || public.Questions[0].QuestionID != "q1" {
		t.Fatalf("public quiz = %+v", public)
	}

	if _, err := curriculum.FindLesson(ctx, "primary-2", "eng", "e1"); err != nil {
		t.Fatalf("find lesson: %v", err)
	}
	if _, err := curriculum.FindCourse(ctx, "primary-2", "math"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown course: err = %v", err)
	}
	if _, err := curriculum.FindClass(ctx, "primary-9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown class: err = %v", err)
	}

	// Re-importing replaces the class in place.
	renamed := strings.Replace(curriculumDoc, `"className": "Primary 2"`, `"className": "Basic 2"`, 1)
	if _, err := curriculum.Import(ctx, strings.NewReader(renamed)); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	class, err := curriculum.FindClass(ctx, "primary-2")
	if err != nil {
		t.Fatalf("find class: %v", err)
	}
	if class.ClassName != "Basic 2" {
		t.Fatalf("class name = %q", class.ClassName)
	}
}

func TestCurriculumImportRejectsBadDocuments(t *testing.T) {
	curriculum := NewCurriculumService(newTestDB(t))
	docs := map[string]string{
		"not json":      `{`,
		"empty":         `[]`,
		"missing id":    `[{"className": "X"}]`,
		"duplicate qid": `[{"classId": "c", "className": "C", "courses": [{"courseId": "k", "quiz": {"quizId": "z", "questions": [{"questionId": "q"}, {"questionId": "q"}]}}]}]`,
	}
	for name, doc := range docs {
		if _, err := curriculum.Import(context.Background(), strings.NewReader(doc)); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}
}

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedCurriculum(t, db, 1)
	users := NewUserService(db, NewCurriculumService(db))

	created, err := users.EnsureUser(ctx, &Identity{UserID: "u1", Email: "old@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	refreshed, err := users.EnsureUser(ctx, &Identity{UserID: "u1", Email: "new@example.com", FullName: "Ada"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.ID != created.ID {
		t.Fatalf("user recreated")
	}
	stored, err := users.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Email != "new@example.com" || stored.FullName != "Ada" {
		t.Fatalf("stored = %+v", stored)
	}

	if _, err := users.EnsureUser(ctx, &Identity{}); !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("anonymous identity: err = %v", err)
	}
	if _, err := users.SelectClass(ctx, "u1", "primary-9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown class: err = %v", err)
	}
	if _, err := users.SelectClass(ctx, "u1", "primary-1"); err != nil {
		t.Fatalf("select class: %v", err)
	}
	classID, err := users.CurrentClass(ctx, "u1")
	if err != nil || classID != "primary-1" {
		t.Fatalf("current class = %q, %v", classID, err)
	}
}
