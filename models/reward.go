package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RewardType tags what a reward credits. Every switch over it must cover all kinds.
type RewardType string

const (
	RewardTypeCoins       RewardType = "coins"
	RewardTypePoints      RewardType = "points"
	RewardTypeDiamond     RewardType = "diamond"
	RewardTypeSpinChance  RewardType = "spin_chance"
	RewardTypeTrialAccess RewardType = "trial_access"
	// RewardTypeItem is a physical or narrative prize with no balance effect.
	RewardTypeItem RewardType = "item"
)

// RewardTypes lists every kind, in display order.
var RewardTypes = []RewardType{
	RewardTypeCoins,
	RewardTypePoints,
	RewardTypeDiamond,
	RewardTypeSpinChance,
	RewardTypeTrialAccess,
	RewardTypeItem,
}

// Valid reports whether t is a known kind.
func (t RewardType) Valid() bool {
	for _, known := range RewardTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Numeric reports whether the kind moves a balance.
func (t RewardType) Numeric() bool {
	return t.Valid() && t != RewardTypeItem
}

var titleCaser = cases.Title(language.English)

// DisplayName renders the kind for humans, e.g. "spin_chance" -> "Spin Chance".
func (t RewardType) DisplayName() string {
	return titleCaser.String(strings.ReplaceAll(string(t), "_", " "))
}

// Reward is one credit: a kind plus its payload. Items carry a Name and no Amount.
type Reward struct {
	Type        RewardType `json:"type"`
	Amount      int64      `json:"amount,omitempty"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Validate rejects unknown kinds, negative amounts and unnamed items.
func (r Reward) Validate() error {
	switch r.Type {
	case RewardTypeCoins, RewardTypePoints, RewardTypeDiamond, RewardTypeSpinChance, RewardTypeTrialAccess:
		if r.Amount < 0 {
			return fmt.Errorf("reward %s: negative amount %d", r.Type, r.Amount)
		}
		return nil
	case RewardTypeItem:
		if r.Name == "" {
			return fmt.Errorf("item reward without a name")
		}
		return nil
	default:
		return fmt.Errorf("unknown reward type %q", r.Type)
	}
}

// Label is a short human summary such as "100 Coins" or "Storra Shirt".
func (r Reward) Label() string {
	if r.Type == RewardTypeItem {
		return r.Name
	}
	return fmt.Sprintf("%d %s", r.Amount, r.Type.DisplayName())
}

// TransactionDirection signs a ledger entry.
type TransactionDirection string

const (
	DirectionEarn  TransactionDirection = "earn"
	DirectionSpend TransactionDirection = "spend"
)

// TransactionSource records which action produced a ledger entry.
type TransactionSource string

const (
	SourceDailyLogin   TransactionSource = "daily_login"
	SourceAchievement  TransactionSource = "achievement"
	SourceSpinWheel    TransactionSource = "spin_wheel"
	SourceSpinConsumed TransactionSource = "spin_consumed"
	SourceSpinReset    TransactionSource = "spin_reset"
	SourceQuizBonus    TransactionSource = "quiz_bonus"
)
