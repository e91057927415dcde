package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"storra-backend/models"
)

func TestRankEntriesBreaksTiesByUserID(t *testing.T) {
	in := []models.LeaderboardEntry{
		{UserID: "u1", TotalPoints: 50},
		{UserID: "u3", TotalPoints: 200},
		{UserID: "u2", TotalPoints: 200},
		{UserID: "u4", TotalPoints: 0},
	}
	ranked := RankEntries(in)

	want := []string{"u2", "u3", "u1", "u4"}
	for i, id := range want {
		if ranked[i].UserID != id || ranked[i].Rank != i+1 {
			t.Fatalf("position %d = %s rank %d, want %s rank %d", i, ranked[i].UserID, ranked[i].Rank, id, i+1)
		}
	}
	if in[0].Rank != 0 {
		t.Fatal("RankEntries modified its input")
	}
}

// memoryCache is an in-process LeaderboardCache.
type memoryCache struct {
	mu            sync.Mutex
	entries       map[string][]byte
	invalidations int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *memoryCache) InvalidatePrefix(_ context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

func creditPoints(t *testing.T, ledger *LedgerService, userID string, amount int64) {
	t.Helper()
	_, err := ledger.Mutate(context.Background(), userID, func(l *Ledger) error {
		return l.Credit(models.Reward{Type: models.RewardTypePoints, Amount: amount}, models.SourceQuizBonus)
	})
	if err != nil {
		t.Fatalf("credit %s: %v", userID, err)
	}
}

func TestLeaderboardRanksHistoryTotals(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
	board := NewLeaderboardService(ledger.DB, nil, time.Minute)

	creditPoints(t, ledger, "u1", 50)
	creditPoints(t, ledger, "u2", 200)
	creditPoints(t, ledger, "u3", 200)
	if _, err := ledger.EnsureProfile(ctx, "u4"); err != nil {
		t.Fatalf("ensure u4: %v", err)
	}
	if _, err := ledger.Mutate(ctx, "u3", func(l *Ledger) error {
		return l.Spend(models.RewardTypePoints, 20, models.SourceQuizBonus, "Correction")
	}); err != nil {
		t.Fatalf("spend: %v", err)
	}

	page, err := board.Get(ctx, "u4", 1, 10, "")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []struct {
		id     string
		points int64
	}{{"u2", 200}, {"u3", 180}, {"u1", 50}, {"u4", 0}}
	if len(page.Entries) != len(want) {
		t.Fatalf("entries = %+v", page.Entries)
	}
	for i, w := range want {
		if page.Entries[i].UserID != w.id || page.Entries[i].TotalPoints != w.points {
			t.Errorf("rank %d = %s/%d, want %s/%d", i+1, page.Entries[i].UserID, page.Entries[i].TotalPoints, w.id, w.points)
		}
	}
	if page.Me == nil || page.Me.Rank != 4 {
		t.Fatalf("viewer row = %+v", page.Me)
	}

	second, err := board.Get(ctx, "u2", 2, 2, "")
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(second.Entries) != 2 || second.Entries[0].UserID != "u1" || second.Meta.TotalPages != 2 {
		t.Fatalf("page 2 = %+v", second)
	}
	if second.Me == nil || second.Me.Rank != 1 {
		t.Fatalf("viewer outside the page still gets a row: %+v", second.Me)
	}

	beyond, err := board.Get(ctx, "u2", 9, 2, "")
	if err != nil {
		t.Fatalf("page 9: %v", err)
	}
	if len(beyond.Entries) != 0 {
		t.Fatalf("page past the end = %+v", beyond.Entries)
	}
}

func TestLeaderboardClassFilter(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
	seedCurriculum(t, ledger.DB, 2)
	users := NewUserService(ledger.DB, NewCurriculumService(ledger.DB))
	seedUser(t, users, "u1")
	board := NewLeaderboardService(ledger.DB, nil, time.Minute)

	creditPoints(t, ledger, "u1", 10)
	creditPoints(t, ledger, "u2", 99)

	page, err := board.Get(ctx, "u1", 1, 50, "primary-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(page.Entries) != 1 || page.Entries[0].UserID != "u1" || page.Entries[0].FullName != "U1" {
		t.Fatalf("class leaderboard = %+v", page.Entries)
	}
}

func TestLeaderboardCacheInvalidatedOnPointChanges(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
	cache := newMemoryCache()
	ledger.Cache = cache
	board := NewLeaderboardService(ledger.DB, cache, time.Minute)

	creditPoints(t, ledger, "u1", 10)
	if _, err := board.Get(ctx, "u1", 1, 10, ""); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if _, ok := cache.Get(ctx, "leaderboard:all"); !ok {
		t.Fatal("ranking was not cached")
	}

	before := cache.invalidations
	if _, err := ledger.Mutate(ctx, "u1", func(l *Ledger) error {
		return l.Credit(models.Reward{Type: models.RewardTypeCoins, Amount: 5}, models.SourceDailyLogin)
	}); err != nil {
		t.Fatalf("coins: %v", err)
	}
	if cache.invalidations != before {
		t.Fatal("coin credit invalidated the leaderboard")
	}

	creditPoints(t, ledger, "u1", 15)
	if cache.invalidations != before+1 {
		t.Fatal("point credit did not invalidate the leaderboard")
	}
	page, err := board.Get(ctx, "u1", 1, 10, "")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if page.Entries[0].TotalPoints != 25 {
		t.Fatalf("stale total %d", page.Entries[0].TotalPoints)
	}
}

func TestLeaderboardRanksUsersWithoutRewards(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
	seedCurriculum(t, ledger.DB, 2)
	users := NewUserService(ledger.DB, NewCurriculumService(ledger.DB))
	seedUser(t, users, "u1")
	board := NewLeaderboardService(ledger.DB, nil, time.Minute)

	page, err := board.Get(ctx, "u1", 1, 10, "")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(page.Entries) != 1 || page.Entries[0].TotalPoints != 0 || page.Entries[0].FullName != "U1" {
		t.Fatalf("entries = %+v", page.Entries)
	}
	if page.Me == nil || page.Me.Rank != 1 {
		t.Fatalf("viewer row = %+v", page.Me)
	}

	creditPoints(t, ledger, "u2", 5)
	page, err = board.Get(ctx, "u1", 1, 10, "")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(page.Entries) != 2 || page.Entries[0].UserID != "u2" || page.Me == nil || page.Me.Rank != 2 {
		t.Fatalf("page = %+v me %+v", page.Entries, page.Me)
	}
}

func TestLeaderboardCacheFollowsRankedFields(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
	cache := newMemoryCache()
	ledger.Cache = cache
	seedCurriculum(t, ledger.DB, 2)
	users := NewUserService(ledger.DB, NewCurriculumService(ledger.DB))
	users.Cache = cache
	seedUser(t, users, "u1")
	board := NewLeaderboardService(ledger.DB, cache, time.Minute)

	get := func(viewer, classID string) *LeaderboardPage {
		t.Helper()
		page, err := board.Get(ctx, viewer, 1, 50, classID)
		if err != nil {
			t.Fatalf("leaderboard: %v", err)
		}
		return page
	}
	get("u1", "")

	// A first reward action creates the profile.
	if _, err := ledger.Mutate(ctx, "u2", func(l *Ledger) error {
		return l.Credit(models.Reward{Type: models.RewardTypeCoins, Amount: 5}, models.SourceDailyLogin)
	}); err != nil {
		t.Fatalf("coins: %v", err)
	}
	if page := get("u2", ""); page.Me == nil || len(page.Entries) != 2 {
		t.Fatalf("new profile missing: entries %+v me %+v", page.Entries, page.Me)
	}

	if _, err := ledger.Mutate(ctx, "u1", func(l *Ledger) error {
		l.Profile.CompletedQuizzes++
		return nil
	}); err != nil {
		t.Fatalf("quiz counter: %v", err)
	}
	if page := get("u1", ""); page.Me == nil || page.Me.QuizzesCompleted != 1 {
		t.Fatalf("stale quiz counter: %+v", page.Me)
	}

	if _, err := users.EnsureUser(ctx, &Identity{UserID: "u2", FullName: "U2"}); err != nil {
		t.Fatalf("ensure u2: %v", err)
	}
	if page := get("u2", "primary-1"); len(page.Entries) != 1 || page.Me != nil {
		t.Fatalf("class board before joining = %+v", page.Entries)
	}
	if _, err := users.SelectClass(ctx, "u2", "primary-1"); err != nil {
		t.Fatalf("select class: %v", err)
	}
	if page := get("u2", "primary-1"); len(page.Entries) != 2 || page.Me == nil {
		t.Fatalf("class board after joining = %+v", page.Entries)
	}
}
