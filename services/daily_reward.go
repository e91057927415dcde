package services

import (
	"context"
	"fmt"
	"time"

	"storra-backend/models"
	"storra-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// RewardsForDay returns the login bundle for a day of the month. Days past 30 pay nothing.
func RewardsForDay(day int) []models.Reward {
	coins := func(amount int, description string) models.Reward {
		return models.Reward{Type: models.RewardTypeCoins, Amount: int64(amount), Description: description}
	}
	points := func(amount int, description string) models.Reward {
		return models.Reward{Type: models.RewardTypePoints, Amount: int64(amount), Description: description}
	}
	spins := func(amount int, description string) models.Reward {
		return models.Reward{Type: models.RewardTypeSpinChance, Amount: int64(amount), Description: description}
	}
	daily := fmt.Sprintf("Day %d login bonus", day)

	switch {
	case day < 1:
		return []models.Reward{}
	case day <= 6:
		return []models.Reward{coins(10*day, daily)}
	case day == 7:
		return []models.Reward{coins(100, "Week 1 completion bonus"), spins(1, "Free spin!")}
	case day <= 13:
		return []models.Reward{coins(15*(day-7), daily)}
	case day == 14:
		return []models.Reward{coins(150, "Week 2 completion bonus"), points(50, "Bonus points!")}
	case day <= 20:
		return []models.Reward{coins(20*(day-14), daily)}
	case day == 21:
		return []models.Reward{coins(200, "Week 3 completion bonus"), spins(2, "Double spin!")}
	case day <= 27:
		return []models.Reward{coins(25*(day-21), daily), points(10*(day-21), "Daily points")}
	case day <= 30:
		return []models.Reward{
			coins(50*(day-27), fmt.Sprintf("Day %d mega bonus", day)),
			points(25*(day-27), "Mega points"),
			spins(1, "Daily spin"),
		}
	default:
		return []models.Reward{}
	}
}

// DailyRewardService runs the calendar login scheme.
type DailyRewardService struct {
	Ledger *LedgerService
}

func NewDailyRewardService(ledger *LedgerService) *DailyRewardService {
	return &DailyRewardService{Ledger: ledger}
}

type DailyClaimResult struct {
	Day           int             `json:"day"`
	Rewards       []models.Reward `json:"rewards"`
	Streak        int             `json:"streak"`
	LongestStreak int             `json:"longest_streak"`
	Balances      models.Balances `json:"balances"`
	Unlocked      []string        `json:"unlocked_achievements"`
}

// Claim credits today's bundle once per calendar day and advances the streak.
func (s *DailyRewardService) Claim(ctx context.Context, userID string) (*DailyClaimResult, error) {
	var result *DailyClaimResult
	profile, err := s.Ledger.Mutate(ctx, userID, func(l *Ledger) error {
		p := l.Profile
		year, month, day := l.Now.Date()

		claimed, err := claimedOn(l, year, int(month), day)
		if err != nil {
			return err
		}
		if claimed {
			return ErrAlreadyClaimedToday
		}
		if p.LastLoginDate != nil && CalendarDaysBetween(*p.LastLoginDate, l.Now, l.Location) <= 0 {
			return ErrAlreadyClaimedToday
		}

		firstLogin := p.LastLoginDate == nil
		streak := NextStreak(l.Now, p.LastLoginDate, p.CurrentStreak, l.Location)

		rewards := RewardsForDay(day)
		for _, r := range rewards {
			if err := l.Credit(r, models.SourceDailyLogin); err != nil {
				return err
			}
		}

		// The unique (profile, year, month, day) index turns a racing second claim into a conflict.
		claim := models.DailyRewardClaim{
			ID:        uuid.NewString(),
			ProfileID: p.ID,
			Year:      year,
			Month:     int(month),
			Day:       day,
			Rewards:   datatypes.NewJSONType(rewards),
			Claimed:   true,
			ClaimedAt: l.Now,
		}
		if err := l.Tx.Create(&claim).Error; err != nil {
			return fmt.Errorf("failed to record daily claim: %w", err)
		}

		now := l.Now
		p.CurrentStreak = streak
		if streak > p.LongestStreak {
			p.LongestStreak = streak
		}
		p.LastLoginDate = &now

		unlocked, err := unlockAchievements(l, AchievementEvent{
			Kind:       EventDailyLogin,
			Streak:     streak,
			FirstLogin: firstLogin,
		})
		if err != nil {
			return err
		}

		result = &DailyClaimResult{
			Day:           day,
			Rewards:       rewards,
			Streak:        streak,
			LongestStreak: p.LongestStreak,
			Unlocked:      unlocked,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Balances = profile.Balances
	rewardClaims.WithLabelValues(string(models.SourceDailyLogin)).Inc()
	utils.Logger.Info("daily reward claimed",
		zap.String("user_id", userID),
		zap.Int("day", result.Day),
		zap.Int("streak", result.Streak))
	return result, nil
}

func claimedOn(l *Ledger, year, month, day int) (bool, error) {
	var count int64
	err := l.Tx.Model(&models.DailyRewardClaim{}).
		Where("profile_id = ? AND year = ? AND month = ? AND day = ? AND claimed = ?", l.Profile.ID, year, month, day, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check daily claim: %w", err)
	}
	return count > 0, nil
}

type DailyInfo struct {
	ClaimedToday  bool            `json:"claimedToday"`
	Streak        int             `json:"streak"`
	LongestStreak int             `json:"longestStreak"`
	TodayRewards  []models.Reward `json:"todayRewards"`
	Balances      models.Balances `json:"balance"`
}

// Info reports whether today is claimed without changing anything.
func (s *DailyRewardService) Info(ctx context.Context, userID string) (*DailyInfo, error) {
	profile, err := s.Ledger.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.Ledger.now()
	year, month, day := now.Date()

	var count int64
	if err := s.Ledger.DB.WithContext(ctx).Model(&models.DailyRewardClaim{}).
		Where("profile_id = ? AND year = ? AND month = ? AND day = ? AND claimed = ?", profile.ID, year, int(month), day, true).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check daily claim: %w", err)
	}

	return &DailyInfo{
		ClaimedToday:  count > 0,
		Streak:        profile.CurrentStreak,
		LongestStreak: profile.LongestStreak,
		TodayRewards:  RewardsForDay(day),
		Balances:      profile.Balances,
	}, nil
}

type CalendarDay struct {
	Day       int             `json:"day"`
	Rewards   []models.Reward `json:"rewards"`
	Claimed   bool            `json:"claimed"`
	ClaimedAt *time.Time      `json:"claimedAt,omitempty"`
}

type DailyCalendar struct {
	Month         int           `json:"month"`
	Year          int           `json:"year"`
	Calendar      []CalendarDay `json:"calendar"`
	CurrentStreak int           `json:"currentStreak"`
}

// Calendar lists every day of the current month with its bundle and claim state.
func (s *DailyRewardService) Calendar(ctx context.Context, userID string) (*DailyCalendar, error) {
	profile, err := s.Ledger.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.Ledger.now()
	year, month, _ := now.Date()
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, s.Ledger.Location).Day()

	var claims []models.DailyRewardClaim
	if err := s.Ledger.DB.WithContext(ctx).
		Where("profile_id = ? AND year = ? AND month = ? AND claimed = ?", profile.ID, year, int(month), true).
		Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("failed to load daily claims: %w", err)
	}
	byDay := make(map[int]time.Time, len(claims))
	for _, c := range claims {
		byDay[c.Day] = c.ClaimedAt
	}

	calendar := make([]CalendarDay, 0, daysInMonth)
	for day := 1; day <= daysInMonth; day++ {
		entry := CalendarDay{Day: day, Rewards: RewardsForDay(day)}
		if at, ok := byDay[day]; ok {
			at := at
			entry.Claimed = true
			entry.ClaimedAt = &at
		}
		calendar = append(calendar, entry)
	}

	return &DailyCalendar{
		Month:         int(month),
		Year:          year,
		Calendar:      calendar,
		CurrentStreak: profile.CurrentStreak,
	}, nil
}
