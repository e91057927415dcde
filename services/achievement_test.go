package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"storra-backend/models"
)

func TestConditionsMet(t *testing.T) {
	tests := []struct {
		name  string
		event AchievementEvent
		want  []models.AchievementCondition
	}{
		{"first login", AchievementEvent{Kind: EventDailyLogin, FirstLogin: true, Streak: 1}, []models.AchievementCondition{models.ConditionFirstLogin}},
		{"ordinary login", AchievementEvent{Kind: EventDailyLogin, Streak: 3}, nil},
		{"week streak", AchievementEvent{Kind: EventDailyLogin, Streak: 7}, []models.AchievementCondition{models.ConditionStreak7}},
		{"month streak", AchievementEvent{Kind: EventDailyLogin, Streak: 30}, []models.AchievementCondition{models.ConditionStreak30}},
		{"first lesson", AchievementEvent{Kind: EventLessonCompleted, CompletedLessons: 1}, []models.AchievementCondition{models.ConditionFirstLesson}},
		{"second lesson", AchievementEvent{Kind: EventLessonCompleted, CompletedLessons: 2}, nil},
		{"tenth quiz", AchievementEvent{Kind: EventQuizCompleted, CompletedQuizzes: 10}, []models.AchievementCondition{models.ConditionCompleted10Quizzes}},
		{"perfect", AchievementEvent{Kind: EventQuizScored, Percentage: 100}, []models.AchievementCondition{models.ConditionPerfectQuizScore}},
		{"almost perfect", AchievementEvent{Kind: EventQuizScored, Percentage: 99}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := conditionsMet(tt.event); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("conditionsMet = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAchievementUnlockThenClaim(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	achievements := NewAchievementService(ledger)
	daily := NewDailyRewardService(ledger)

	if _, err := achievements.Claim(ctx, "u1", "first_login"); !errors.Is(err, ErrAchievementNotClaimable) {
		t.Fatalf("claim before unlock: err = %v", err)
	}

	if _, err := daily.Claim(ctx, "u1"); err != nil {
		t.Fatalf("daily claim: %v", err)
	}
	// Unlocking alone pays nothing beyond the daily bundle.
	if p := mustProfile(t, ledger, "u1"); p.Coins != 10 {
		t.Fatalf("coins after unlock = %d, want 10", p.Coins)
	}

	res, err := achievements.Claim(ctx, "u1", "first_login")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Balances.Coins != 60 || !res.Achievement.Claimed || res.Achievement.Claimable {
		t.Fatalf("claim result = %+v", res)
	}
	if res.Reward.Description != "Welcome Aboard!" {
		t.Fatalf("reward description = %q", res.Reward.Description)
	}

	if _, err := achievements.Claim(ctx, "u1", "first_login"); !errors.Is(err, ErrAchievementNotClaimable) {
		t.Fatalf("second claim: err = %v", err)
	}
	if _, err := achievements.Claim(ctx, "u1", "no_such_thing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown achievement: err = %v", err)
	}

	views, err := achievements.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != len(models.AchievementCatalog) {
		t.Fatalf("listed %d achievements", len(views))
	}
	for _, v := range views {
		wantClaimed := v.ID == "first_login"
		if v.Claimed != wantClaimed || (v.UnlockedAt != nil) != wantClaimed {
			t.Errorf("%s: claimed %v unlocked %v", v.ID, v.Claimed, v.UnlockedAt != nil)
		}
	}
	assertConsistent(t, ledger, "u1")
}

func TestAchievementSpinRewardKeepsAllowance(t *testing.T) {
	ctx := context.Background()
	ledger, clock := newTestLedger(t, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	achievements := NewAchievementService(ledger)
	daily := NewDailyRewardService(ledger)

	for i := 0; i < 7; i++ {
		if _, err := daily.Claim(ctx, "u1"); err != nil {
			t.Fatalf("day %d: %v", i+1, err)
		}
		clock.Advance(24 * time.Hour)
	}
	before := mustProfile(t, ledger, "u1").SpinChances

	res, err := achievements.Claim(ctx, "u1", "7_day_streak")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// The claim lands on a new day: the allowance resets first, then the bonus spin is added.
	if res.Balances.SpinChances != models.DailySpinAllowance+1 {
		t.Fatalf("spin chances = %d (was %d), want %d", res.Balances.SpinChances, before, models.DailySpinAllowance+1)
	}
	assertConsistent(t, ledger, "u1")
}
