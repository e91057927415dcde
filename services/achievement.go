package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storra-backend/models"
	"storra-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementEventKind string

const (
	EventDailyLogin      AchievementEventKind = "daily_login"
	EventLessonCompleted AchievementEventKind = "lesson_completed"
	EventQuizCompleted   AchievementEventKind = "quiz_completed"
	EventQuizScored      AchievementEventKind = "quiz_scored"
)

// AchievementEvent is the progress update an action just made.
type AchievementEvent struct {
	Kind             AchievementEventKind
	Streak           int
	FirstLogin       bool
	CompletedLessons int64
	CompletedQuizzes int64
	Percentage       float64
}

// conditionsMet maps an event onto the catalog conditions it satisfies.
func conditionsMet(event AchievementEvent) []models.AchievementCondition {
	var met []models.AchievementCondition
	switch event.Kind {
	case EventDailyLogin:
		if event.FirstLogin {
			met = append(met, models.ConditionFirstLogin)
		}
		if event.Streak == 7 {
			met = append(met, models.ConditionStreak7)
		}
		if event.Streak == 30 {
			met = append(met, models.ConditionStreak30)
		}
	case EventLessonCompleted:
		if event.CompletedLessons == 1 {
			met = append(met, models.ConditionFirstLesson)
		}
	case EventQuizCompleted:
		if event.CompletedQuizzes == 10 {
			met = append(met, models.ConditionCompleted10Quizzes)
		}
	case EventQuizScored:
		if event.Percentage == 100 {
			met = append(met, models.ConditionPerfectQuizScore)
		}
	}
	return met
}

// seedAchievements inserts the missing catalog rows for a profile.
func seedAchievements(tx *gorm.DB, profileID string) error {
	rows := make([]models.ProfileAchievement, 0, len(models.AchievementCatalog))
	for _, def := range models.AchievementCatalog {
		rows = append(rows, models.ProfileAchievement{
			ID:            uuid.NewString(),
			ProfileID:     profileID,
			AchievementID: def.ID,
		})
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to seed achievements: %w", err)
	}
	return nil
}

// unlockAchievements stamps unlockedAt on every matching achievement that is still locked.
// Unlocking never credits anything; see AchievementService.Claim.
func unlockAchievements(l *Ledger, event AchievementEvent) ([]string, error) {
	met := conditionsMet(event)
	if len(met) == 0 {
		return nil, nil
	}
	if err := seedAchievements(l.Tx, l.Profile.ID); err != nil {
		return nil, err
	}

	unlocked := []string{}
	for _, cond := range met {
		def, ok := models.AchievementByCondition(cond)
		if !ok {
			continue
		}
		res := l.Tx.Model(&models.ProfileAchievement{}).
			Where("profile_id = ? AND achievement_id = ? AND unlocked_at IS NULL", l.Profile.ID, def.ID).
			Update("unlocked_at", l.Now)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to unlock achievement %s: %w", def.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		unlocked = append(unlocked, def.ID)
		utils.Logger.Info("achievement unlocked",
			zap.String("user_id", l.Profile.ExternalUserID),
			zap.String("achievement_id", def.ID))
	}
	return unlocked, nil
}

// AchievementView joins a catalog entry with the user's state.
type AchievementView struct {
	models.AchievementDefinition
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
	Claimed    bool       `json:"claimed"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
	Claimable  bool       `json:"claimable"`
}

func newAchievementView(def models.AchievementDefinition, row models.ProfileAchievement) AchievementView {
	return AchievementView{
		AchievementDefinition: def,
		UnlockedAt:            row.UnlockedAt,
		Claimed:               row.Claimed,
		ClaimedAt:             row.ClaimedAt,
		Claimable:             row.Claimable(),
	}
}

// listAchievements returns the whole catalog in catalog order with per-profile state.
func listAchievements(db *gorm.DB, profileID string) ([]AchievementView, error) {
	var rows []models.ProfileAchievement
	if err := db.Where("profile_id = ?", profileID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	byID := make(map[string]models.ProfileAchievement, len(rows))
	for _, row := range rows {
		byID[row.AchievementID] = row
	}

	views := make([]AchievementView, 0, len(models.AchievementCatalog))
	for _, def := range models.AchievementCatalog {
		views = append(views, newAchievementView(def, byID[def.ID]))
	}
	return views, nil
}

type AchievementService struct {
	Ledger *LedgerService
}

func NewAchievementService(ledger *LedgerService) *AchievementService {
	return &AchievementService{Ledger: ledger}
}

func (s *AchievementService) List(ctx context.Context, userID string) ([]AchievementView, error) {
	profile, err := s.Ledger.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return listAchievements(s.Ledger.DB.WithContext(ctx), profile.ID)
}

type AchievementClaimResult struct {
	Achievement AchievementView `json:"achievement"`
	Reward      models.Reward   `json:"reward"`
	Balances    models.Balances `json:"balances"`
}

// Claim credits an unlocked, unclaimed achievement's reward exactly once.
func (s *AchievementService) Claim(ctx context.Context, userID, achievementID string) (*AchievementClaimResult, error) {
	def, ok := models.FindAchievement(achievementID)
	if !ok {
		return nil, NewError(KindNotFound, "Achievement %s not found", achievementID)
	}

	var result *AchievementClaimResult
	profile, err := s.Ledger.Mutate(ctx, userID, func(l *Ledger) error {
		if err := seedAchievements(l.Tx, l.Profile.ID); err != nil {
			return err
		}
		var row models.ProfileAchievement
		if err := l.Tx.Where("profile_id = ? AND achievement_id = ?", l.Profile.ID, def.ID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewError(KindNotFound, "Achievement %s not found", achievementID)
			}
			return fmt.Errorf("failed to load achievement: %w", err)
		}
		if row.UnlockedAt == nil {
			return NewError(KindAchievementNotClaimable, "Achievement not unlocked yet")
		}
		if row.Claimed {
			return NewError(KindAchievementNotClaimable, "Achievement already claimed")
		}

		reward := def.Reward
		reward.Description = def.Title
		if err := l.Credit(reward, models.SourceAchievement); err != nil {
			return err
		}

		now := l.Now
		res := l.Tx.Model(&models.ProfileAchievement{}).
			Where("id = ? AND claimed = ?", row.ID, false).
			Updates(map[string]interface{}{"claimed": true, "claimed_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to mark achievement claimed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		row.Claimed = true
		row.ClaimedAt = &now

		result = &AchievementClaimResult{
			Achievement: newAchievementView(def, row),
			Reward:      reward,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Balances = profile.Balances
	rewardClaims.WithLabelValues(string(models.SourceAchievement)).Inc()
	utils.Logger.Info("achievement claimed",
		zap.String("user_id", userID),
		zap.String("achievement_id", def.ID))
	return result, nil
}
