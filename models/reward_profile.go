package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Balances are the numeric wallets of a reward profile. Never negative.
type Balances struct {
	Coins              int64 `json:"coins" gorm:"not null;default:0"`
	Points             int64 `json:"points" gorm:"not null;default:0"`
	Diamonds           int64 `json:"diamonds" gorm:"not null;default:0"`
	SpinChances        int64 `json:"spin_chances" gorm:"not null;default:0"`
	TrialDaysRemaining int64 `json:"trial_days_remaining" gorm:"not null;default:0"`
}

// RewardProfile is the per-user reward state, created lazily on the first reward action.
// Version guards every write: updates are conditional on the version that was read.
type RewardProfile struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"`

	Balances `gorm:"embedded"`

	CurrentStreak int        `json:"current_streak" gorm:"not null;default:0"`
	LongestStreak int        `json:"longest_streak" gorm:"not null;default:0"`
	LastLoginDate *time.Time `json:"last_login_date,omitempty"`

	LastSpinResetDate *time.Time `json:"last_spin_reset_date,omitempty"`

	// Counters feeding achievements and the leaderboard.
	CompletedQuizzes int64 `json:"completed_quizzes" gorm:"not null;default:0"`
	PerfectScores    int64 `json:"perfect_scores" gorm:"not null;default:0"`

	Version int64 `json:"-" gorm:"not null;default:0"`

	Timestamps
}

// RewardTransaction is one append-only ledger entry. Item rewards are stored with Amount 0.
type RewardTransaction struct {
	ID          string               `gorm:"primaryKey;type:uuid" json:"id"`
	ProfileID   string               `gorm:"type:uuid;not null;index:idx_reward_tx_profile_source,priority:1;index:idx_reward_tx_profile_type,priority:1" json:"-"`
	Direction   TransactionDirection `gorm:"type:varchar(8);not null" json:"type"`
	RewardType  RewardType           `gorm:"type:varchar(32);not null;index:idx_reward_tx_profile_type,priority:2" json:"reward_type"`
	Amount      int64                `gorm:"not null" json:"amount"`
	Source      TransactionSource    `gorm:"type:varchar(32);not null;index:idx_reward_tx_profile_source,priority:2" json:"source"`
	Description string               `gorm:"type:text" json:"description"`
	Timestamp   time.Time            `gorm:"not null;index" json:"timestamp"`
}

// Signed returns the amount with the direction applied.
func (t RewardTransaction) Signed() int64 {
	if t.Direction == DirectionSpend {
		return -t.Amount
	}
	return t.Amount
}

// DailyRewardClaim is one claimed calendar day. (profile, year, month, day) is unique.
type DailyRewardClaim struct {
	ID        string                       `gorm:"primaryKey;type:uuid" json:"id"`
	ProfileID string                       `gorm:"type:uuid;not null;uniqueIndex:idx_daily_claim_day,priority:1" json:"-"`
	Year      int                          `gorm:"not null;uniqueIndex:idx_daily_claim_day,priority:2" json:"year"`
	Month     int                          `gorm:"not null;uniqueIndex:idx_daily_claim_day,priority:3" json:"month"`
	Day       int                          `gorm:"not null;uniqueIndex:idx_daily_claim_day,priority:4" json:"day"`
	Rewards   datatypes.JSONType[[]Reward] `gorm:"type:jsonb" json:"rewards"`
	Claimed   bool                         `gorm:"not null;default:true" json:"claimed"`
	ClaimedAt time.Time                    `gorm:"not null" json:"claimed_at"`
}

// Of returns the balance field a kind moves, or nil for items and unknown kinds.
func (b *Balances) Of(t RewardType) *int64 {
	switch t {
	case RewardTypeCoins:
		return &b.Coins
	case RewardTypePoints:
		return &b.Points
	case RewardTypeDiamond:
		return &b.Diamonds
	case RewardTypeSpinChance:
		return &b.SpinChances
	case RewardTypeTrialAccess:
		return &b.TrialDaysRemaining
	case RewardTypeItem:
		return nil
	default:
		return nil
	}
}
