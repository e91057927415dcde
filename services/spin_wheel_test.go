package services

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"storra-backend/models"
)

// fixedWheel builds the production wheel with a constant random source.
func fixedWheel(t *testing.T, value float64) *SpinWheel {
	t.Helper()
	w, err := NewSpinWheel(models.SpinWheelRewards, models.SmallSpinRewards, func() float64 { return value })
	if err != nil {
		t.Fatalf("new wheel: %v", err)
	}
	return w
}

func TestNewSpinWheelRejectsBadTables(t *testing.T) {
	if _, err := NewSpinWheel(nil, models.SmallSpinRewards, nil); err == nil {
		t.Fatal("empty wheel accepted")
	}
	zero := []models.SpinWheelEntry{{Name: "Nothing", Type: models.RewardTypeCoins, Amount: 1, Weight: 0}}
	if _, err := NewSpinWheel(zero, models.SmallSpinRewards, nil); err == nil {
		t.Fatal("zero weight accepted")
	}
	unnamed := []models.SpinWheelEntry{{Type: models.RewardTypeItem, Weight: 1}}
	if _, err := NewSpinWheel(models.SpinWheelRewards, unnamed, nil); err == nil {
		t.Fatal("unnamed item accepted")
	}
}

func TestSpinWheelDrawBuckets(t *testing.T) {
	const total = 152.5
	tests := []struct {
		cumulative float64
		want       string
	}{
		{0, "10 Coins"},
		{59, "10 Coins"},
		{61, "20 Coins"},
		{119, "50 Coins"},
		{121, "1 Diamond"},
		{136, "5 Diamonds"},
		{141, "Free Spin"},
		{150, "Storra Sticker"},
		{151.5, "Storra Shirt"},
		{152.2, "₦100 Airtime"},
	}
	for _, tt := range tests {
		w := fixedWheel(t, tt.cumulative/total)
		if got := w.Draw().Name; got != tt.want {
			t.Errorf("draw at %.1f: got %q, want %q", tt.cumulative, got, tt.want)
		}
	}

	// A random source at its upper limit still lands on a slice.
	if got := fixedWheel(t, 0.9999999999).Draw().Name; got != "₦100 Airtime" {
		t.Errorf("draw near 1: got %q", got)
	}
}

func TestSpinWheelDistributionConverges(t *testing.T) {
	src := rand.New(rand.NewPCG(1, 2))
	w, err := NewSpinWheel(models.SpinWheelRewards, models.SmallSpinRewards, src.Float64)
	if err != nil {
		t.Fatalf("new wheel: %v", err)
	}

	const draws = 100000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		counts[w.Draw().Name]++
	}
	for _, e := range models.SpinWheelRewards {
		got := float64(counts[e.Name]) / draws
		want := w.Probability(e)
		if math.Abs(got-want) > 0.01 {
			t.Errorf("%s: frequency %.4f, want %.4f", e.Name, got, want)
		}
	}
}

func TestSpinWheelDrawSmallIsUniform(t *testing.T) {
	if got := fixedWheel(t, 0.49).DrawSmall().Name; got != "10 Coins" {
		t.Errorf("0.49: got %q", got)
	}
	if got := fixedWheel(t, 0.5).DrawSmall().Name; got != "20 Coins" {
		t.Errorf("0.5: got %q", got)
	}
}

func TestSpinWheelPreview(t *testing.T) {
	preview := fixedWheel(t, 0).Preview()

	want := []struct {
		name    string
		mystery bool
	}{
		{"10 Coins", false},
		{"20 Coins", false},
		{"50 Coins", false},
		{"Free Spin", false},
		{"1 Diamond", true},
	}
	if len(preview) != len(want) {
		t.Fatalf("preview has %d entries, want %d", len(preview), len(want))
	}
	for i, w := range want {
		if preview[i].Name != w.name || preview[i].Mystery != w.mystery {
			t.Errorf("entry %d = %s (mystery %v), want %s (mystery %v)",
				i, preview[i].Name, preview[i].Mystery, w.name, w.mystery)
		}
	}
}

func TestSpinConsumesAllowance(t *testing.T) {
	ctx := context.Background()
	ledger, clock := newTestLedger(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	spin := NewSpinService(ledger, fixedWheel(t, 0))

	for i := 1; i <= models.DailySpinAllowance; i++ {
		res, err := spin.Spin(ctx, "u1")
		if err != nil {
			t.Fatalf("spin %d: %v", i, err)
		}
		if res.SpinChancesLeft != int64(models.DailySpinAllowance-i) {
			t.Fatalf("spin %d: %d left", i, res.SpinChancesLeft)
		}
		if res.Reward.Name != "10 Coins" || res.Throttled {
			t.Fatalf("spin %d: reward %q throttled %v", i, res.Reward.Name, res.Throttled)
		}
	}

	if _, err := spin.Spin(ctx, "u1"); !errors.Is(err, ErrAllowanceExhausted) {
		t.Fatalf("fourth spin: err = %v, want ErrAllowanceExhausted", err)
	}
	if p := mustProfile(t, ledger, "u1"); p.Coins != 30 || p.SpinChances != 0 {
		t.Fatalf("after exhaustion: coins %d chances %d", p.Coins, p.SpinChances)
	}

	clock.Advance(24 * time.Hour)
	res, err := spin.Spin(ctx, "u1")
	if err != nil {
		t.Fatalf("spin next day: %v", err)
	}
	if res.SpinChancesLeft != models.DailySpinAllowance-1 {
		t.Fatalf("next day: %d left", res.SpinChancesLeft)
	}
	assertConsistent(t, ledger, "u1")
}

func TestSpinItemPrizeKeepsBalances(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	spin := NewSpinService(ledger, fixedWheel(t, 151.5/152.5))

	res, err := spin.Spin(ctx, "u1")
	if err != nil {
		t.Fatalf("spin: %v", err)
	}
	if res.Reward.Name != "Storra Shirt" {
		t.Fatalf("reward = %q", res.Reward.Name)
	}
	if res.Balances.Coins != 0 || res.Balances.Diamonds != 0 {
		t.Fatalf("item changed balances: %+v", res.Balances)
	}

	p := mustProfile(t, ledger, "u1")
	var tx models.RewardTransaction
	if err := ledger.DB.Where("profile_id = ? AND source = ?", p.ID, models.SourceSpinWheel).First(&tx).Error; err != nil {
		t.Fatalf("load win: %v", err)
	}
	if tx.RewardType != models.RewardTypeItem || tx.Amount != 0 || tx.Description != "Won: Storra Shirt" {
		t.Fatalf("win entry = %+v", tx)
	}
	assertConsistent(t, ledger, "u1")
}

func TestSpinThrottlesHeavySpinners(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	spin := NewSpinService(ledger, fixedWheel(t, 0.99))

	res, err := spin.Spin(ctx, "u1")
	if err != nil {
		t.Fatalf("spin: %v", err)
	}
	if res.Throttled || res.Reward.Name != "Storra Sticker" {
		t.Fatalf("fresh spin: %q throttled %v", res.Reward.Name, res.Throttled)
	}

	// Nine more wins brings the history to the threshold.
	if _, err := ledger.Mutate(ctx, "u1", func(l *Ledger) error {
		for i := 0; i < SpinThrottleThreshold-1; i++ {
			if err := l.Credit(models.Reward{Type: models.RewardTypeCoins, Amount: 10}, models.SourceSpinWheel); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("seed wins: %v", err)
	}

	res, err = spin.Spin(ctx, "u1")
	if err != nil {
		t.Fatalf("throttled spin: %v", err)
	}
	if !res.Throttled || res.Reward.Name != "20 Coins" {
		t.Fatalf("throttled spin: %q throttled %v", res.Reward.Name, res.Throttled)
	}

	status, err := spin.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Throttled || status.TotalSpins != SpinThrottleThreshold+1 {
		t.Fatalf("status = %+v", status)
	}
	assertConsistent(t, ledger, "u1")
}

func TestSpinStatusIsReadOnly(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	ledger, clock := newTestLedger(t, start)
	spin := NewSpinService(ledger, fixedWheel(t, 0))

	status, err := spin.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.SpinChances != models.DailySpinAllowance || status.TotalSpins != 0 {
		t.Fatalf("fresh status = %+v", status)
	}
	if want := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC); !status.ResetsAt.Equal(want) {
		t.Fatalf("resets at %v, want %v", status.ResetsAt, want)
	}
	if p := mustProfile(t, ledger, "u1"); p.SpinChances != 0 || p.LastSpinResetDate != nil {
		t.Fatalf("status wrote the reset: %+v", p)
	}

	if _, err := spin.Spin(ctx, "u1"); err != nil {
		t.Fatalf("spin: %v", err)
	}
	status, err = spin.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.SpinChances != models.DailySpinAllowance-1 {
		t.Fatalf("after spin: %d chances", status.SpinChances)
	}

	clock.Advance(24 * time.Hour)
	status, err = spin.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.SpinChances != models.DailySpinAllowance {
		t.Fatalf("next day: %d chances", status.SpinChances)
	}
}
