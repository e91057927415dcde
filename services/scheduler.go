package services

import (
	"context"
	"fmt"

	"storra-backend/models"
	"storra-backend/utils"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartSpinRefillScheduler refills the spin allowances of yesterday's players at local midnight.
// Spins also reset lazily, so a missed run only delays what users see in their balances.
func (s *LedgerService) StartSpinRefillScheduler(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(s.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.CronJob("0 0 * * *", false),
		gocron.NewTask(func() {
			n, err := s.RefillSpinAllowances(ctx)
			if err != nil {
				utils.Logger.Error("spin refill failed", zap.Int("refilled", n), zap.Error(err))
				return
			}
			utils.Logger.Info("spin allowances refilled", zap.Int("refilled", n))
		}),
		gocron.WithName("daily-spin-refill"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule spin refill: %w", err)
	}

	sched.Start()
	return sched, nil
}

// RefillSpinAllowances applies today's reset to profiles that were reset yesterday and are
// not at the daily allowance. Idle profiles are left to the lazy reset on their next request,
// so the job never books an entry that the lazy reset would not have booked.
func (s *LedgerService) RefillSpinAllowances(ctx context.Context) (int, error) {
	today := StartOfDay(s.now(), s.Location)
	yesterday := today.AddDate(0, 0, -1)

	var userIDs []string
	if err := s.DB.WithContext(ctx).Model(&models.RewardProfile{}).
		Where("last_spin_reset_date >= ? AND last_spin_reset_date < ?", yesterday, today).
		Where("spin_chances <> ?", models.DailySpinAllowance).
		Pluck("external_user_id", &userIDs).Error; err != nil {
		return 0, fmt.Errorf("failed to list profiles: %w", err)
	}

	refilled := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return refilled, err
		}
		var reset bool
		_, err := s.Mutate(ctx, userID, func(l *Ledger) error {
			var err error
			reset, err = l.ResetSpinAllowance()
			return err
		})
		if err != nil {
			utils.Logger.Warn("spin refill skipped", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if reset {
			refilled++
		}
	}
	return refilled, nil
}
