package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"storra-backend/models"
	"storra-backend/utils"

	"go.uber.org/zap"
)

// SpinThrottleThreshold is the number of past wheel wins after which only the small table is drawn.
const SpinThrottleThreshold = 10

// SpinWheel draws wheel entries. random must return values in [0, 1).
type SpinWheel struct {
	entries []models.SpinWheelEntry
	small   []models.SpinWheelEntry
	total   float64
	random  func() float64
}

// NewSpinWheel validates both tables. A nil random uses math/rand/v2.
func NewSpinWheel(entries, small []models.SpinWheelEntry, random func() float64) (*SpinWheel, error) {
	if len(entries) == 0 || len(small) == 0 {
		return nil, errors.New("spin wheel tables must not be empty")
	}
	var total float64
	for _, table := range [][]models.SpinWheelEntry{entries, small} {
		for _, e := range table {
			if e.Weight <= 0 {
				return nil, fmt.Errorf("spin entry %q: weight must be positive", e.Name)
			}
			if err := e.Reward().Validate(); err != nil {
				return nil, fmt.Errorf("spin entry %q: %w", e.Name, err)
			}
		}
	}
	for _, e := range entries {
		total += e.Weight
	}
	if random == nil {
		random = rand.Float64
	}
	return &SpinWheel{entries: entries, small: small, total: total, random: random}, nil
}

// Draw is weighted-bucket sampling: subtract weights in table order until the remainder reaches zero.
func (w *SpinWheel) Draw() models.SpinWheelEntry {
	r := w.random() * w.total
	for _, e := range w.entries {
		r -= e.Weight
		if r <= 0 {
			return e
		}
	}
	// Float rounding can leave a sliver past the last bucket.
	return w.entries[len(w.entries)-1]
}

// DrawSmall picks uniformly from the small table.
func (w *SpinWheel) DrawSmall() models.SpinWheelEntry {
	i := int(w.random() * float64(len(w.small)))
	if i >= len(w.small) {
		i = len(w.small) - 1
	}
	return w.small[i]
}

// Probability is an entry's share of the total weight.
func (w *SpinWheel) Probability(e models.SpinWheelEntry) float64 {
	return e.Weight / w.total
}

type PreviewEntry struct {
	models.SpinWheelEntry
	Mystery bool `json:"mystery"`
}

const previewCoinEntries = 3

// Preview shows the most common coin slices, the free spin and one rare slice as a mystery.
func (w *SpinWheel) Preview() []PreviewEntry {
	var coins, rare []models.SpinWheelEntry
	var freeSpin *models.SpinWheelEntry
	for i, e := range w.entries {
		switch e.Type {
		case models.RewardTypeCoins:
			coins = append(coins, e)
		case models.RewardTypeSpinChance:
			if freeSpin == nil {
				freeSpin = &w.entries[i]
			}
		case models.RewardTypeDiamond, models.RewardTypeItem:
			rare = append(rare, e)
		}
	}
	sort.SliceStable(coins, func(i, j int) bool { return coins[i].Weight > coins[j].Weight })
	if len(coins) > previewCoinEntries {
		coins = coins[:previewCoinEntries]
	}

	preview := make([]PreviewEntry, 0, len(coins)+2)
	for _, e := range coins {
		preview = append(preview, PreviewEntry{SpinWheelEntry: e})
	}
	if freeSpin != nil {
		preview = append(preview, PreviewEntry{SpinWheelEntry: *freeSpin})
	}
	if len(rare) > 0 {
		i := int(w.random() * float64(len(rare)))
		if i >= len(rare) {
			i = len(rare) - 1
		}
		preview = append(preview, PreviewEntry{SpinWheelEntry: rare[i], Mystery: true})
	}
	return preview
}

type SpinService struct {
	Ledger *LedgerService
	Wheel  *SpinWheel
}

func NewSpinService(ledger *LedgerService, wheel *SpinWheel) *SpinService {
	return &SpinService{Ledger: ledger, Wheel: wheel}
}

type SpinResult struct {
	Reward          models.SpinWheelEntry `json:"reward"`
	Throttled       bool                  `json:"throttled"`
	SpinChancesLeft int64                 `json:"spinChancesLeft"`
	Balances        models.Balances       `json:"balances"`
}

// Spin consumes one chance and credits a drawn reward.
func (s *SpinService) Spin(ctx context.Context, userID string) (*SpinResult, error) {
	var result *SpinResult
	profile, err := s.Ledger.Mutate(ctx, userID, func(l *Ledger) error {
		if _, err := l.ResetSpinAllowance(); err != nil {
			return err
		}
		if l.Profile.SpinChances <= 0 {
			return ErrAllowanceExhausted
		}
		// The chance is gone before the outcome is known.
		if err := l.Spend(models.RewardTypeSpinChance, 1, models.SourceSpinConsumed, "Spin the wheel"); err != nil {
			return err
		}

		previous, err := countWheelWins(l)
		if err != nil {
			return err
		}
		throttled := previous >= SpinThrottleThreshold
		var entry models.SpinWheelEntry
		if throttled {
			entry = s.Wheel.DrawSmall()
		} else {
			entry = s.Wheel.Draw()
		}
		if err := l.Credit(entry.Reward(), models.SourceSpinWheel); err != nil {
			return err
		}

		result = &SpinResult{Reward: entry, Throttled: throttled}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.SpinChancesLeft = profile.SpinChances
	result.Balances = profile.Balances
	spinOutcomes.WithLabelValues(string(result.Reward.Type), fmt.Sprint(result.Throttled)).Inc()
	utils.Logger.Info("wheel spun",
		zap.String("user_id", userID),
		zap.String("reward", result.Reward.Name),
		zap.Bool("throttled", result.Throttled))
	return result, nil
}

func countWheelWins(l *Ledger) (int64, error) {
	var count int64
	err := l.Tx.Model(&models.RewardTransaction{}).
		Where("profile_id = ? AND source = ?", l.Profile.ID, models.SourceSpinWheel).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count spins: %w", err)
	}
	return count, nil
}

// Preview never touches the profile.
func (s *SpinService) Preview() []PreviewEntry {
	return s.Wheel.Preview()
}

type SpinStatus struct {
	SpinChances int64     `json:"spinChances"`
	ResetsAt    time.Time `json:"resetsAt"`
	TotalSpins  int64     `json:"totalSpins"`
	Throttled   bool      `json:"throttled"`
}

// Status reports the allowance as the next spin would see it, without applying the reset.
func (s *SpinService) Status(ctx context.Context, userID string) (*SpinStatus, error) {
	profile, err := s.Ledger.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.Ledger.now()

	chances := profile.SpinChances
	if profile.LastSpinResetDate == nil || !SameCalendarDay(*profile.LastSpinResetDate, now, s.Ledger.Location) {
		chances = models.DailySpinAllowance
	}

	var total int64
	if err := s.Ledger.DB.WithContext(ctx).Model(&models.RewardTransaction{}).
		Where("profile_id = ? AND source = ?", profile.ID, models.SourceSpinWheel).
		Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count spins: %w", err)
	}

	return &SpinStatus{
		SpinChances: chances,
		ResetsAt:    NextMidnight(now, s.Ledger.Location),
		TotalSpins:  total,
		Throttled:   total >= SpinThrottleThreshold,
	}, nil
}
