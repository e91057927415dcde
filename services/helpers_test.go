package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"storra-backend/models"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testClock is a settable time source.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLedger(t *testing.T, start time.Time) (*LedgerService, *testClock) {
	t.Helper()
	clock := &testClock{now: start}
	ledger := NewLedgerService(newTestDB(t), time.UTC)
	ledger.Now = clock.Now
	return ledger, clock
}

func mustProfile(t *testing.T, ledger *LedgerService, userID string) *models.RewardProfile {
	t.Helper()
	var p models.RewardProfile
	if err := ledger.DB.Where("external_user_id = ?", userID).First(&p).Error; err != nil {
		t.Fatalf("load profile %s: %v", userID, err)
	}
	return &p
}

func assertConsistent(t *testing.T, ledger *LedgerService, userID string) {
	t.Helper()
	audit, err := ledger.Audit(context.Background(), userID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !audit.Consistent {
		t.Fatalf("balances drifted from history: stored %+v, history %+v", audit.Stored, audit.FromHistory)
	}
}

func makeQuestions(n int) []models.Question {
	qs := make([]models.Question, 0, n)
	for i := 1; i <= n; i++ {
		qs = append(qs, models.Question{
			QuestionID:    fmt.Sprintf("q%d", i),
			QuestionText:  "Question",
			Options:       []string{"a", "b", "c"},
			CorrectAnswer: "a",
		})
	}
	return qs
}

// seedCurriculum stores one class with one course holding two lessons and an n-question quiz.
func seedCurriculum(t *testing.T, db *gorm.DB, questions int) {
	t.Helper()
	class := models.Class{
		ClassID:        "primary-1",
		ClassName:      "Primary 1",
		EducationLevel: "primary",
		Courses: datatypes.NewJSONType([]models.Course{{
			CourseID:   "math",
			CourseName: "Mathematics",
			Lessons: []models.Lesson{
				{LessonID: "l1", LessonTitle: "Counting"},
				{LessonID: "l2", LessonTitle: "Adding"},
			},
			Quiz: &models.Quiz{
				QuizID:       "math-quiz",
				QuizTitle:    "Numbers",
				PassingScore: 70,
				Questions:    makeQuestions(questions),
			},
		}}),
	}
	if err := db.Create(&class).Error; err != nil {
		t.Fatalf("seed class: %v", err)
	}
}

// seedUser mirrors a user who has picked the seeded class.
func seedUser(t *testing.T, users *UserService, userID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := users.EnsureUser(ctx, &Identity{UserID: userID, Email: userID + "@example.com", FullName: strings.ToUpper(userID)}); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if _, err := users.SelectClass(ctx, userID, "primary-1"); err != nil {
		t.Fatalf("select class: %v", err)
	}
}
