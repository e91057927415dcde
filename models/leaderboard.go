package models

// LeaderboardEntry is derived at query time, never stored.
type LeaderboardEntry struct {
	Rank             int    `json:"rank"`
	UserID           string `json:"userId"`
	FullName         string `json:"fullName,omitempty"`
	TotalPoints      int64  `json:"totalPoints"`
	QuizzesCompleted int64  `json:"quizzesCompleted"`
	PerfectScores    int64  `json:"perfectScores"`
}
