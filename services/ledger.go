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

const maxMutateAttempts = 3

// LedgerService owns reward profiles: balances, streak fields and the transaction history.
type LedgerService struct {
	DB       *gorm.DB
	Location *time.Location
	Now      func() time.Time
	// Cache is optional; when set, leaderboard snapshots are dropped whenever a ranked field changes.
	Cache LeaderboardCache
}

func NewLedgerService(db *gorm.DB, loc *time.Location) *LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerService{DB: db, Location: loc, Now: time.Now}
}

func (s *LedgerService) now() time.Time {
	return s.Now().In(s.Location)
}

// Ledger is the working set of one Mutate call. Balance changes go through Credit and Spend
// so that every change has a matching history entry.
type Ledger struct {
	Profile  *models.RewardProfile
	Tx       *gorm.DB
	Now      time.Time
	Location *time.Location

	version        int64
	pending        []models.RewardTransaction
	rankingChanged bool
}

// Credit adds a reward to the matching balance and appends an earn entry.
// Items are recorded with amount 0 and leave balances untouched.
func (l *Ledger) Credit(r models.Reward, source models.TransactionSource) error {
	if err := r.Validate(); err != nil {
		return err
	}
	// A new day's allowance lands before any bonus spins so the reset cannot wipe them.
	if r.Type == models.RewardTypeSpinChance && source != models.SourceSpinReset {
		if _, err := l.ResetSpinAllowance(); err != nil {
			return err
		}
	}

	amount := r.Amount
	if field := l.Profile.Balances.Of(r.Type); field != nil {
		*field += amount
	} else {
		amount = 0
	}
	if r.Type == models.RewardTypePoints && amount != 0 {
		l.rankingChanged = true
	}

	description := r.Description
	if description == "" {
		description = r.Label()
	}
	l.append(models.DirectionEarn, r.Type, amount, source, description)
	return nil
}

// Spend subtracts amount from a numeric balance and appends a spend entry.
func (l *Ledger) Spend(t models.RewardType, amount int64, source models.TransactionSource, description string) error {
	field := l.Profile.Balances.Of(t)
	if field == nil {
		return fmt.Errorf("cannot spend non-numeric reward type %q", t)
	}
	if amount <= 0 {
		return NewError(KindInvalidInput, "Spend amount must be positive")
	}
	if *field < amount {
		return NewError(KindInvalidInput, "Insufficient %s balance", t.DisplayName())
	}
	*field -= amount
	if t == models.RewardTypePoints {
		l.rankingChanged = true
	}
	l.append(models.DirectionSpend, t, amount, source, description)
	return nil
}

// ResetSpinAllowance sets spinChances to the daily allowance on the first touch of a calendar day.
// The delta is booked as a spin_reset entry. It reports whether a reset happened.
func (l *Ledger) ResetSpinAllowance() (bool, error) {
	p := l.Profile
	if p.LastSpinResetDate != nil && SameCalendarDay(*p.LastSpinResetDate, l.Now, l.Location) {
		return false, nil
	}

	const description = "Daily spin allowance"
	delta := int64(models.DailySpinAllowance) - p.SpinChances
	switch {
	case delta > 0:
		reward := models.Reward{Type: models.RewardTypeSpinChance, Amount: delta, Description: description}
		if err := l.Credit(reward, models.SourceSpinReset); err != nil {
			return false, err
		}
	case delta < 0:
		if err := l.Spend(models.RewardTypeSpinChance, -delta, models.SourceSpinReset, description); err != nil {
			return false, err
		}
	}
	now := l.Now
	p.LastSpinResetDate = &now
	return true, nil
}

func (l *Ledger) append(dir models.TransactionDirection, t models.RewardType, amount int64, source models.TransactionSource, description string) {
	l.pending = append(l.pending, models.RewardTransaction{
		ID:          uuid.NewString(),
		ProfileID:   l.Profile.ID,
		Direction:   dir,
		RewardType:  t,
		Amount:      amount,
		Source:      source,
		Description: description,
		// Entries of one action keep their order.
		Timestamp: l.Now.Add(time.Duration(len(l.pending)) * time.Microsecond),
	})
}

// Pending returns the entries appended so far in this mutation.
func (l *Ledger) Pending() []models.RewardTransaction {
	return l.pending
}

// commit appends pending entries and writes the profile only if nobody else has since.
func (l *Ledger) commit() error {
	if len(l.pending) > 0 {
		if err := l.Tx.Create(&l.pending).Error; err != nil {
			return fmt.Errorf("failed to append transactions: %w", err)
		}
	}

	p := l.Profile
	res := l.Tx.Model(&models.RewardProfile{}).
		Where("id = ? AND version = ?", p.ID, l.version).
		Updates(map[string]interface{}{
			"coins":                p.Coins,
			"points":               p.Points,
			"diamonds":             p.Diamonds,
			"spin_chances":         p.SpinChances,
			"trial_days_remaining": p.TrialDaysRemaining,
			"current_streak":       p.CurrentStreak,
			"longest_streak":       p.LongestStreak,
			"last_login_date":      p.LastLoginDate,
			"last_spin_reset_date": p.LastSpinResetDate,
			"completed_quizzes":    p.CompletedQuizzes,
			"perfect_scores":       p.PerfectScores,
			"version":              l.version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to save reward profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	p.Version = l.version + 1
	return nil
}

// Mutate loads (or lazily creates) the user's profile, runs fn against it and commits,
// all in one transaction. A lost race rolls everything back and fn runs again on fresh state.
// fn must assign, not accumulate, anything it captures.
func (s *LedgerService) Mutate(ctx context.Context, externalUserID string, fn func(l *Ledger) error) (*models.RewardProfile, error) {
	if externalUserID == "" {
		return nil, ErrAuthenticationRequired
	}

	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		var ledger *Ledger
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			profile, created, err := ensureProfile(tx, externalUserID)
			if err != nil {
				return err
			}
			ledger = &Ledger{
				Profile:        profile,
				Tx:             tx,
				Now:            s.now(),
				Location:       s.Location,
				version:        profile.Version,
				rankingChanged: created,
			}
			quizzes, perfect := profile.CompletedQuizzes, profile.PerfectScores
			if err := fn(ledger); err != nil {
				return err
			}
			if profile.CompletedQuizzes != quizzes || profile.PerfectScores != perfect {
				ledger.rankingChanged = true
			}
			return ledger.commit()
		})
		if err == nil {
			if ledger.rankingChanged {
				s.invalidateLeaderboard(ctx)
			}
			return ledger.Profile, nil
		}

		var domainErr *Error
		if errors.As(err, &domainErr) && !errors.Is(err, ErrConcurrentUpdate) {
			return nil, err
		}
		if !isConflict(err) {
			return nil, err
		}
		optimisticRetries.Inc()
		utils.Logger.Debug("reward profile conflict, retrying",
			zap.String("user_id", externalUserID), zap.Int("attempt", attempt))
	}
	return nil, ErrConcurrentUpdate
}

// EnsureProfile returns the user's profile, creating a zero-valued one on first touch.
func (s *LedgerService) EnsureProfile(ctx context.Context, externalUserID string) (*models.RewardProfile, error) {
	if externalUserID == "" {
		return nil, ErrAuthenticationRequired
	}
	var profile *models.RewardProfile
	var created bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		profile, created, err = ensureProfile(tx, externalUserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.invalidateLeaderboard(ctx)
	}
	return profile, nil
}

func (s *LedgerService) invalidateLeaderboard(ctx context.Context) {
	if s.Cache != nil {
		s.Cache.InvalidatePrefix(ctx, leaderboardCachePrefix)
	}
}

// ensureProfile loads the user's profile and reports whether this call created it.
func ensureProfile(tx *gorm.DB, externalUserID string) (*models.RewardProfile, bool, error) {
	var profile models.RewardProfile
	err := tx.Where("external_user_id = ?", externalUserID).First(&profile).Error
	if err == nil {
		return &profile, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to load reward profile: %w", err)
	}

	profile = models.RewardProfile{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&profile)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create reward profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Another request created it first.
		var winner models.RewardProfile
		if err := tx.Where("external_user_id = ?", externalUserID).First(&winner).Error; err != nil {
			return nil, false, fmt.Errorf("failed to load reward profile: %w", err)
		}
		return &winner, false, nil
	}
	if err := seedAchievements(tx, profile.ID); err != nil {
		return nil, false, err
	}
	utils.Logger.Info("reward profile created", zap.String("user_id", externalUserID))
	return &profile, true, nil
}

// Dashboard is the reward overview of one user.
type Dashboard struct {
	Balances           models.Balances            `json:"balances"`
	CurrentStreak      int                        `json:"current_streak"`
	LongestStreak      int                        `json:"longest_streak"`
	LastLoginDate      *time.Time                 `json:"last_login_date,omitempty"`
	CompletedQuizzes   int64                      `json:"completed_quizzes"`
	Achievements       []AchievementView          `json:"achievements"`
	RecentTransactions []models.RewardTransaction `json:"recent_transactions"`
}

const dashboardRecentTransactions = 20

func (s *LedgerService) Dashboard(ctx context.Context, externalUserID string) (*Dashboard, error) {
	profile, err := s.EnsureProfile(ctx, externalUserID)
	if err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	achievements, err := listAchievements(db, profile.ID)
	if err != nil {
		return nil, err
	}

	var recent []models.RewardTransaction
	if err := db.Where("profile_id = ?", profile.ID).
		Order("timestamp DESC").
		Limit(dashboardRecentTransactions).
		Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	return &Dashboard{
		Balances:           profile.Balances,
		CurrentStreak:      profile.CurrentStreak,
		LongestStreak:      profile.LongestStreak,
		LastLoginDate:      profile.LastLoginDate,
		CompletedQuizzes:   profile.CompletedQuizzes,
		Achievements:       achievements,
		RecentTransactions: recent,
	}, nil
}

// TransactionPage is one page of history, newest first.
type TransactionPage struct {
	Transactions []models.RewardTransaction `json:"transactions"`
	Meta         PageMeta                   `json:"meta"`
}

func (s *LedgerService) Transactions(ctx context.Context, externalUserID string, page, limit int) (*TransactionPage, error) {
	page, limit = normalizePage(page, limit, 20, 100)
	profile, err := s.EnsureProfile(ctx, externalUserID)
	if err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	var total int64
	if err := db.Model(&models.RewardTransaction{}).Where("profile_id = ?", profile.ID).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	txs := []models.RewardTransaction{}
	if err := db.Where("profile_id = ?", profile.ID).
		Order("timestamp DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return &TransactionPage{Transactions: txs, Meta: newPageMeta(total, page, limit)}, nil
}

// BalanceAudit compares stored balances with the sums of the history.
type BalanceAudit struct {
	UserID      string          `json:"user_id"`
	Stored      models.Balances `json:"stored"`
	FromHistory models.Balances `json:"from_history"`
	Consistent  bool            `json:"consistent"`
}

func (s *LedgerService) Audit(ctx context.Context, externalUserID string) (*BalanceAudit, error) {
	var profile models.RewardProfile
	db := s.DB.WithContext(ctx)
	if err := db.Where("external_user_id = ?", externalUserID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "Reward profile for %s not found", externalUserID)
		}
		return nil, fmt.Errorf("failed to load reward profile: %w", err)
	}

	var rows []struct {
		RewardType models.RewardType
		Total      int64
	}
	if err := db.Model(&models.RewardTransaction{}).
		Select("reward_type, CAST(COALESCE(SUM(CASE WHEN direction = ? THEN -amount ELSE amount END), 0) AS BIGINT) AS total", models.DirectionSpend).
		Where("profile_id = ?", profile.ID).
		Group("reward_type").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}

	var fromHistory models.Balances
	for _, row := range rows {
		if field := fromHistory.Of(row.RewardType); field != nil {
			*field = row.Total
		}
	}
	return &BalanceAudit{
		UserID:      externalUserID,
		Stored:      profile.Balances,
		FromHistory: fromHistory,
		Consistent:  fromHistory == profile.Balances,
	}, nil
}

// BalancesFromHistory folds signed entries into balances.
func BalancesFromHistory(txs []models.RewardTransaction) models.Balances {
	var out models.Balances
	for _, t := range txs {
		if field := out.Of(t.RewardType); field != nil {
			*field += t.Signed()
		}
	}
	return out
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

func newPageMeta(total int64, page, limit int) PageMeta {
	return PageMeta{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}
}

func normalizePage(page, limit, defaultLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
