package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"storra-backend/models"
	"storra-backend/utils"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxNotesLength = 5000

type LessonService struct {
	DB         *gorm.DB
	Ledger     *LedgerService
	Curriculum *CurriculumService
	Users      *UserService
	notes      *bluemonday.Policy
}

func NewLessonService(db *gorm.DB, ledger *LedgerService, curriculum *CurriculumService, users *UserService) *LessonService {
	return &LessonService{
		DB:         db,
		Ledger:     ledger,
		Curriculum: curriculum,
		Users:      users,
		notes:      bluemonday.StrictPolicy(),
	}
}

func ensureLessonProgress(tx *gorm.DB, userID, courseID, lessonID string) (*models.LessonProgress, error) {
	row := models.LessonProgress{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		CourseID:       courseID,
		LessonID:       lessonID,
		Status:         models.LessonStatusNotStarted,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create lesson progress: %w", err)
	}
	var stored models.LessonProgress
	if err := tx.Where("external_user_id = ? AND course_id = ? AND lesson_id = ?", userID, courseID, lessonID).
		First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to load lesson progress: %w", err)
	}
	return &stored, nil
}

type LessonCompletion struct {
	Progress         models.LessonProgress `json:"progress"`
	AlreadyCompleted bool                  `json:"alreadyCompleted"`
	CompletedLessons int64                 `json:"completedLessons"`
	Unlocked         []string              `json:"unlockedAchievements"`
}

// checkLesson rejects lessons outside the course list of the user's class.
func (s *LessonService) checkLesson(ctx context.Context, userID, courseID, lessonID string) error {
	classID, err := s.Users.CurrentClass(ctx, userID)
	if err != nil {
		return err
	}
	_, err = s.Curriculum.FindLesson(ctx, classID, courseID, lessonID)
	return err
}

// Complete marks a lesson done. The first lesson a user ever completes unlocks an achievement.
func (s *LessonService) Complete(ctx context.Context, userID, courseID, lessonID string) (*LessonCompletion, error) {
	if err := s.checkLesson(ctx, userID, courseID, lessonID); err != nil {
		return nil, err
	}

	var result *LessonCompletion
	_, err := s.Ledger.Mutate(ctx, userID, func(l *Ledger) error {
		progress, err := ensureLessonProgress(l.Tx, userID, courseID, lessonID)
		if err != nil {
			return err
		}
		if progress.Status == models.LessonStatusCompleted {
			result = &LessonCompletion{Progress: *progress, AlreadyCompleted: true, Unlocked: []string{}}
			return nil
		}

		now := l.Now
		res := l.Tx.Model(&models.LessonProgress{}).
			Where("id = ? AND status <> ?", progress.ID, models.LessonStatusCompleted).
			Updates(map[string]interface{}{"status": models.LessonStatusCompleted, "completed_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to complete lesson: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		progress.Status = models.LessonStatusCompleted
		progress.CompletedAt = &now

		var completed int64
		if err := l.Tx.Model(&models.LessonProgress{}).
			Where("external_user_id = ? AND status = ?", userID, models.LessonStatusCompleted).
			Count(&completed).Error; err != nil {
			return fmt.Errorf("failed to count lessons: %w", err)
		}

		unlocked, err := unlockAchievements(l, AchievementEvent{Kind: EventLessonCompleted, CompletedLessons: completed})
		if err != nil {
			return err
		}
		if unlocked == nil {
			unlocked = []string{}
		}
		result = &LessonCompletion{Progress: *progress, CompletedLessons: completed, Unlocked: unlocked}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.AlreadyCompleted {
		utils.Logger.Info("lesson completed",
			zap.String("user_id", userID),
			zap.String("lesson_id", lessonID),
			zap.Int64("completed_lessons", result.CompletedLessons))
	}
	return result, nil
}

// ToggleBookmark flips the bookmark flag and returns the new state.
func (s *LessonService) ToggleBookmark(ctx context.Context, userID, courseID, lessonID string) (*models.LessonProgress, error) {
	if err := s.checkLesson(ctx, userID, courseID, lessonID); err != nil {
		return nil, err
	}

	var out *models.LessonProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		progress, err := ensureLessonProgress(tx, userID, courseID, lessonID)
		if err != nil {
			return err
		}
		next := !progress.IsBookmarked
		if err := tx.Model(&models.LessonProgress{}).Where("id = ?", progress.ID).
			Update("is_bookmarked", next).Error; err != nil {
			return fmt.Errorf("failed to toggle bookmark: %w", err)
		}
		progress.IsBookmarked = next
		out = progress
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateNotes stores plain-text notes. Markup is stripped; text such as "a < b & c" is kept as typed.
func (s *LessonService) UpdateNotes(ctx context.Context, userID, courseID, lessonID, notes string) (*models.LessonProgress, error) {
	clean := strings.TrimSpace(html.UnescapeString(s.notes.Sanitize(notes)))
	if utf8.RuneCountInString(clean) > maxNotesLength {
		return nil, NewError(KindInvalidInput, "Notes must be at most %d characters", maxNotesLength)
	}
	if err := s.checkLesson(ctx, userID, courseID, lessonID); err != nil {
		return nil, err
	}

	var out *models.LessonProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		progress, err := ensureLessonProgress(tx, userID, courseID, lessonID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.LessonProgress{}).Where("id = ?", progress.ID).
			Update("notes", clean).Error; err != nil {
			return fmt.Errorf("failed to save notes: %w", err)
		}
		progress.Notes = clean
		out = progress
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LessonService) Bookmarks(ctx context.Context, userID string) ([]models.LessonProgress, error) {
	rows := []models.LessonProgress{}
	if err := s.DB.WithContext(ctx).
		Where("external_user_id = ? AND is_bookmarked = ?", userID, true).
		Order("updated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}
	return rows, nil
}
