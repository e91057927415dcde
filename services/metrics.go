package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rewardClaims = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storra_reward_claims_total",
		Help: "Rewards credited through daily or achievement claims.",
	}, []string{"source"})

	spinOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storra_spin_outcomes_total",
		Help: "Wheel spins by reward type and whether the small table was used.",
	}, []string{"reward_type", "throttled"})

	quizSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storra_quiz_submissions_total",
		Help: "Graded quiz attempts by resulting status.",
	}, []string{"status"})

	optimisticRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storra_profile_conflicts_total",
		Help: "Reward profile writes retried after a concurrent update.",
	})
)
