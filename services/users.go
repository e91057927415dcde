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

const lastSeenResolution = time.Hour

// UserService keeps the local mirror of identity-provider users.
type UserService struct {
	DB         *gorm.DB
	Curriculum *CurriculumService
	Now        func() time.Time
	// Cache holds leaderboard snapshots, which carry names and class membership.
	Cache LeaderboardCache
}

func NewUserService(db *gorm.DB, curriculum *CurriculumService) *UserService {
	return &UserService{DB: db, Curriculum: curriculum, Now: time.Now}
}

// EnsureUser creates or refreshes the mirror row for a verified identity.
func (s *UserService) EnsureUser(ctx context.Context, identity *Identity) (*models.User, error) {
	if identity == nil || identity.UserID == "" {
		return nil, ErrAuthenticationRequired
	}
	db := s.DB.WithContext(ctx)
	now := s.Now()

	var user models.User
	err := db.Where("external_id = ?", identity.UserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			ID:         uuid.NewString(),
			ExternalID: identity.UserID,
			Email:      identity.Email,
			FullName:   identity.FullName,
			LastSeen:   &now,
		}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to create user: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			s.invalidateLeaderboard(ctx)
			utils.Logger.Info("user mirrored", zap.String("user_id", identity.UserID))
			return &user, nil
		}
		user = models.User{}
		err = db.Where("external_id = ?", identity.UserID).First(&user).Error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	updates := map[string]interface{}{}
	if identity.Email != "" && identity.Email != user.Email {
		updates["email"] = identity.Email
	}
	if identity.FullName != "" && identity.FullName != user.FullName {
		updates["full_name"] = identity.FullName
	}
	if user.LastSeen == nil || now.Sub(*user.LastSeen) > lastSeenResolution {
		updates["last_seen"] = now
	}
	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to refresh user: %w", err)
		}
		if _, renamed := updates["full_name"]; renamed {
			s.invalidateLeaderboard(ctx)
		}
	}
	return &user, nil
}

func (s *UserService) invalidateLeaderboard(ctx context.Context) {
	if s.Cache != nil {
		s.Cache.InvalidatePrefix(ctx, leaderboardCachePrefix)
	}
}

func (s *UserService) Get(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "User not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// CurrentClass returns the class a user studies, which scopes quiz and lesson lookups.
func (s *UserService) CurrentClass(ctx context.Context, externalID string) (string, error) {
	user, err := s.Get(ctx, externalID)
	if err != nil {
		return "", err
	}
	if user.CurrentClassID == nil || *user.CurrentClassID == "" {
		return "", NewError(KindInvalidInput, "User class information is missing")
	}
	return *user.CurrentClassID, nil
}

func (s *UserService) SelectClass(ctx context.Context, externalID, classID string) (*models.User, error) {
	if _, err := s.Curriculum.FindClass(ctx, classID); err != nil {
		return nil, err
	}
	user, err := s.Get(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(user).Update("current_class_id", classID).Error; err != nil {
		return nil, fmt.Errorf("failed to update class: %w", err)
	}
	s.invalidateLeaderboard(ctx)
	user.CurrentClassID = &classID
	return user, nil
}

func (s *UserService) UpdateProfilePicture(ctx context.Context, externalID, url string) (*models.User, error) {
	user, err := s.Get(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(user).Update("profile_picture_url", url).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile picture: %w", err)
	}
	user.ProfilePictureURL = &url
	return user, nil
}
