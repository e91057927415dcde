package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"storra-backend/models"
	"storra-backend/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const leaderboardCachePrefix = "leaderboard:"

// LeaderboardCache stores ranked snapshots until a ranked field changes.
type LeaderboardCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	InvalidatePrefix(ctx context.Context, prefix string)
}

// RankEntries orders by points descending, then user id ascending, and assigns ranks 1..n.
// Equal totals still get distinct ranks so the order is stable across queries.
func RankEntries(entries []models.LeaderboardEntry) []models.LeaderboardEntry {
	ranked := make([]models.LeaderboardEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalPoints != ranked[j].TotalPoints {
			return ranked[i].TotalPoints > ranked[j].TotalPoints
		}
		return ranked[i].UserID < ranked[j].UserID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

type LeaderboardService struct {
	DB    *gorm.DB
	Cache LeaderboardCache
	TTL   time.Duration
}

func NewLeaderboardService(db *gorm.DB, cache LeaderboardCache, ttl time.Duration) *LeaderboardService {
	return &LeaderboardService{DB: db, Cache: cache, TTL: ttl}
}

type LeaderboardPage struct {
	Entries []models.LeaderboardEntry `json:"entries"`
	Me      *models.LeaderboardEntry  `json:"me,omitempty"`
	Meta    PageMeta                  `json:"meta"`
}

// Get returns one page of the ranking, optionally limited to a class, plus the viewer's own row.
func (s *LeaderboardService) Get(ctx context.Context, viewerID string, page, limit int, classID string) (*LeaderboardPage, error) {
	page, limit = normalizePage(page, limit, 50, 100)
	ranked, err := s.ranked(ctx, classID)
	if err != nil {
		return nil, err
	}

	out := &LeaderboardPage{
		Entries: []models.LeaderboardEntry{},
		Meta:    newPageMeta(int64(len(ranked)), page, limit),
	}
	if start := (page - 1) * limit; start < len(ranked) {
		end := start + limit
		if end > len(ranked) {
			end = len(ranked)
		}
		out.Entries = ranked[start:end]
	}
	for i := range ranked {
		if ranked[i].UserID == viewerID {
			me := ranked[i]
			out.Me = &me
			break
		}
	}
	return out, nil
}

func (s *LeaderboardService) ranked(ctx context.Context, classID string) ([]models.LeaderboardEntry, error) {
	key := leaderboardCachePrefix + "all"
	if classID != "" {
		key = leaderboardCachePrefix + "class:" + classID
	}

	if s.Cache != nil {
		if raw, ok := s.Cache.Get(ctx, key); ok {
			var cached []models.LeaderboardEntry
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			utils.Logger.Warn("discarding unreadable leaderboard snapshot", zap.String("key", key))
		}
	}

	totals, err := s.pointTotals(ctx, classID)
	if err != nil {
		return nil, err
	}
	ranked := RankEntries(totals)

	if s.Cache != nil {
		if raw, err := json.Marshal(ranked); err == nil {
			s.Cache.Set(ctx, key, raw, s.TTL)
		}
	}
	return ranked, nil
}

// pointTotals sums signed point entries per user. Balances are not consulted.
// Every mirrored user is ranked, including those who have not earned anything yet.
func (s *LeaderboardService) pointTotals(ctx context.Context, classID string) ([]models.LeaderboardEntry, error) {
	db := s.DB.WithContext(ctx)
	participants := db.Raw(`SELECT external_user_id AS user_id FROM reward_profiles WHERE deleted_at IS NULL
		UNION SELECT external_id AS user_id FROM users WHERE deleted_at IS NULL`)

	q := db.Table("(?) AS ids", participants).
		Select(`ids.user_id AS user_id,
			COALESCE(u.full_name, '') AS full_name,
			COALESCE(p.completed_quizzes, 0) AS quizzes_completed,
			COALESCE(p.perfect_scores, 0) AS perfect_scores,
			CAST(COALESCE(SUM(CASE WHEN t.direction = ? THEN -t.amount ELSE t.amount END), 0) AS BIGINT) AS total_points`,
			models.DirectionSpend).
		Joins("LEFT JOIN reward_profiles AS p ON p.external_user_id = ids.user_id AND p.deleted_at IS NULL").
		Joins("LEFT JOIN reward_transactions AS t ON t.profile_id = p.id AND t.reward_type = ?", models.RewardTypePoints).
		Joins("LEFT JOIN users AS u ON u.external_id = ids.user_id AND u.deleted_at IS NULL")
	if classID != "" {
		q = q.Where("u.current_class_id = ?", classID)
	}

	var rows []models.LeaderboardEntry
	if err := q.Group("ids.user_id, u.full_name, p.completed_quizzes, p.perfect_scores").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to compute leaderboard: %w", err)
	}
	return rows, nil
}
