package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storra-backend/models"
	"storra-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// PerfectScoreBonus is paid once per quiz, on the first 100% attempt.
	PerfectScoreBonus = 5

	completeThreshold = 70
	passingThreshold  = 50
)

// SubmittedAnswer is one answer as sent by a client.
type SubmittedAnswer struct {
	QuestionID     string `json:"questionId" validate:"required"`
	SelectedAnswer string `json:"selectedAnswer"`
}

// QuizGrade is the outcome of grading one submission.
type QuizGrade struct {
	Score          int
	TotalQuestions int
	Percentage     float64
	Answers        []models.AttemptAnswer
}

// Perfect reports a 100% result.
func (g QuizGrade) Perfect() bool {
	return g.TotalQuestions > 0 && g.Score == g.TotalQuestions
}

// GradeQuiz compares each answer to the stored correct answer. Any unknown or repeated
// question id rejects the whole submission. Unanswered questions count as wrong.
func GradeQuiz(quiz models.Quiz, answers []SubmittedAnswer) (*QuizGrade, error) {
	if len(answers) == 0 {
		return nil, NewError(KindInvalidInput, "Answers are required")
	}
	if len(quiz.Questions) == 0 {
		return nil, NewError(KindInvalidInput, "Quiz %s has no questions", quiz.QuizID)
	}

	byID := make(map[string]models.Question, len(quiz.Questions))
	for _, q := range quiz.Questions {
		byID[q.QuestionID] = q
	}

	seen := make(map[string]bool, len(answers))
	graded := make([]models.AttemptAnswer, 0, len(answers))
	correct := 0
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return nil, NewError(KindUnknownQuestionReference, "Question %s not found", a.QuestionID)
		}
		if seen[a.QuestionID] {
			return nil, NewError(KindInvalidInput, "Question %s answered more than once", a.QuestionID)
		}
		seen[a.QuestionID] = true

		isCorrect := a.SelectedAnswer == q.CorrectAnswer
		if isCorrect {
			correct++
		}
		graded = append(graded, models.AttemptAnswer{
			QuestionID:     a.QuestionID,
			SelectedAnswer: a.SelectedAnswer,
			CorrectAnswer:  q.CorrectAnswer,
			IsCorrect:      isCorrect,
		})
	}

	total := len(quiz.Questions)
	return &QuizGrade{
		Score:          correct,
		TotalQuestions: total,
		// Multiply first so whole percentages stay exact.
		Percentage: float64(correct*100) / float64(total),
		Answers:    graded,
	}, nil
}

// StatusForPercentage maps a result onto its stored tier.
func StatusForPercentage(pct float64) models.QuizStatus {
	if pct >= completeThreshold {
		return models.QuizStatusComplete
	}
	return models.QuizStatusIncomplete
}

// MessageForPercentage is the feedback line for a result.
func MessageForPercentage(pct float64, bonusAwarded bool) string {
	switch {
	case pct == 100 && bonusAwarded:
		return fmt.Sprintf("Perfect score! You earned %d bonus points!", PerfectScoreBonus)
	case pct == 100:
		return "Perfect score!"
	case pct >= completeThreshold:
		return "Quiz completed!"
	case pct >= passingThreshold:
		return "Nice one, but try to improve your score"
	default:
		return "You need to retake this quiz"
	}
}

type QuizService struct {
	DB         *gorm.DB
	Ledger     *LedgerService
	Curriculum *CurriculumService
	Users      *UserService
}

func NewQuizService(db *gorm.DB, ledger *LedgerService, curriculum *CurriculumService, users *UserService) *QuizService {
	return &QuizService{DB: db, Ledger: ledger, Curriculum: curriculum, Users: users}
}

// ensureQuizProgress returns the user's row for a quiz, creating it with status new.
func ensureQuizProgress(tx *gorm.DB, userID, classID, courseID, quizID string) (*models.QuizProgress, error) {
	progress := models.QuizProgress{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		QuizID:         quizID,
		ClassID:        classID,
		CourseID:       courseID,
		Status:         models.QuizStatusNew,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&progress).Error; err != nil {
		return nil, fmt.Errorf("failed to create quiz progress: %w", err)
	}
	// Re-read into a fresh value: a set primary key would become part of the query.
	var stored models.QuizProgress
	if err := tx.Where("external_user_id = ? AND quiz_id = ?", userID, quizID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to load quiz progress: %w", err)
	}
	return &stored, nil
}

type QuizProgressSummary struct {
	QuizID         string            `json:"quizId"`
	CourseID       string            `json:"courseId"`
	Status         models.QuizStatus `json:"status"`
	Attempts       int               `json:"attempts"`
	BestScore      int               `json:"bestScore"`
	BestPercentage float64           `json:"bestPercentage"`
	PointsEarned   int64             `json:"pointsEarned"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
}

func summarizeProgress(p models.QuizProgress) QuizProgressSummary {
	return QuizProgressSummary{
		QuizID:         p.QuizID,
		CourseID:       p.CourseID,
		Status:         p.Status,
		Attempts:       p.AttemptCount,
		BestScore:      p.BestScore,
		BestPercentage: p.BestPercentage,
		PointsEarned:   p.PointsEarned,
		CompletedAt:    p.CompletedAt,
	}
}

type QuizView struct {
	Quiz       models.PublicQuiz   `json:"quiz"`
	CourseName string              `json:"courseName"`
	Progress   QuizProgressSummary `json:"progress"`
}

// GetQuiz returns the quiz without answers and starts tracking the user's progress on it.
func (s *QuizService) GetQuiz(ctx context.Context, userID, courseID, quizID string) (*QuizView, error) {
	classID, err := s.Users.CurrentClass(ctx, userID)
	if err != nil {
		return nil, err
	}
	quiz, course, err := s.Curriculum.FindQuiz(ctx, classID, courseID, quizID)
	if err != nil {
		return nil, err
	}
	progress, err := ensureQuizProgress(s.DB.WithContext(ctx), userID, classID, courseID, quizID)
	if err != nil {
		return nil, err
	}
	return &QuizView{
		Quiz:       quiz.Public(),
		CourseName: course.CourseName,
		Progress:   summarizeProgress(*progress),
	}, nil
}

type QuizSubmission struct {
	AttemptNumber  int                    `json:"attemptNumber"`
	Score          int                    `json:"score"`
	TotalQuestions int                    `json:"totalQuestions"`
	Percentage     float64                `json:"percentage"`
	Status         models.QuizStatus      `json:"status"`
	Passed         bool                   `json:"passed"`
	PassingScore   float64                `json:"passingScore"`
	PointsEarned   int64                  `json:"pointsEarned"`
	BestPercentage float64                `json:"bestPercentage"`
	Message        string                 `json:"message"`
	Answers        []models.AttemptAnswer `json:"answers"`
	Unlocked       []string               `json:"unlockedAchievements"`
	Balances       models.Balances        `json:"balances"`
}

// Submit grades an attempt, logs it and applies the one-time perfect-score bonus.
func (s *QuizService) Submit(ctx context.Context, userID, courseID, quizID string, answers []SubmittedAnswer, timeSpent int) (*QuizSubmission, error) {
	if len(answers) == 0 {
		return nil, NewError(KindInvalidInput, "Answers are required")
	}
	if timeSpent < 0 {
		timeSpent = 0
	}
	classID, err := s.Users.CurrentClass(ctx, userID)
	if err != nil {
		return nil, err
	}
	quiz, _, err := s.Curriculum.FindQuiz(ctx, classID, courseID, quizID)
	if err != nil {
		return nil, err
	}
	grade, err := GradeQuiz(*quiz, answers)
	if err != nil {
		return nil, err
	}

	var result *QuizSubmission
	profile, err := s.Ledger.Mutate(ctx, userID, func(l *Ledger) error {
		progress, err := ensureQuizProgress(l.Tx, userID, classID, courseID, quizID)
		if err != nil {
			return err
		}

		attemptNumber := progress.AttemptCount + 1
		attempt := models.QuizAttempt{
			ID:             uuid.NewString(),
			QuizProgressID: progress.ID,
			AttemptNumber:  attemptNumber,
			Score:          grade.Score,
			TotalQuestions: grade.TotalQuestions,
			Percentage:     grade.Percentage,
			Answers:        datatypes.NewJSONType(grade.Answers),
			TimeSpent:      timeSpent,
			AttemptedAt:    l.Now,
		}
		if err := l.Tx.Create(&attempt).Error; err != nil {
			return fmt.Errorf("failed to record attempt: %w", err)
		}

		status := StatusForPercentage(grade.Percentage)
		updates := map[string]interface{}{
			"status":        status,
			"attempt_count": attemptNumber,
		}
		best := progress.BestPercentage
		if grade.Percentage > progress.BestPercentage {
			best = grade.Percentage
			updates["best_score"] = grade.Score
			updates["best_percentage"] = grade.Percentage
		}

		var bonus int64
		if grade.Perfect() && progress.PointsEarned == 0 {
			bonus = PerfectScoreBonus
			updates["points_earned"] = bonus
			reward := models.Reward{
				Type:        models.RewardTypePoints,
				Amount:      bonus,
				Description: "Perfect score on " + quiz.QuizTitle,
			}
			if err := l.Credit(reward, models.SourceQuizBonus); err != nil {
				return err
			}
			l.Profile.PerfectScores++
		}

		firstCompletion := status == models.QuizStatusComplete && progress.CompletedAt == nil
		if firstCompletion {
			updates["completed_at"] = l.Now
			l.Profile.CompletedQuizzes++
		}

		res := l.Tx.Model(&models.QuizProgress{}).
			Where("id = ? AND attempt_count = ?", progress.ID, progress.AttemptCount).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update quiz progress: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}

		unlocked := []string{}
		if firstCompletion {
			ids, err := unlockAchievements(l, AchievementEvent{
				Kind:             EventQuizCompleted,
				CompletedQuizzes: l.Profile.CompletedQuizzes,
			})
			if err != nil {
				return err
			}
			unlocked = append(unlocked, ids...)
		}
		if grade.Perfect() {
			ids, err := unlockAchievements(l, AchievementEvent{Kind: EventQuizScored, Percentage: grade.Percentage})
			if err != nil {
				return err
			}
			unlocked = append(unlocked, ids...)
		}

		result = &QuizSubmission{
			AttemptNumber:  attemptNumber,
			Score:          grade.Score,
			TotalQuestions: grade.TotalQuestions,
			Percentage:     grade.Percentage,
			Status:         status,
			Passed:         grade.Percentage >= quiz.PassingScore,
			PassingScore:   quiz.PassingScore,
			PointsEarned:   bonus,
			BestPercentage: best,
			Message:        MessageForPercentage(grade.Percentage, bonus > 0),
			Answers:        grade.Answers,
			Unlocked:       unlocked,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Balances = profile.Balances
	quizSubmissions.WithLabelValues(string(result.Status)).Inc()
	utils.Logger.Info("quiz submitted",
		zap.String("user_id", userID),
		zap.String("quiz_id", quizID),
		zap.Int("attempt", result.AttemptNumber),
		zap.Float64("percentage", result.Percentage))
	return result, nil
}

// CourseProgress lists the user's quiz progress rows for a course.
func (s *QuizService) CourseProgress(ctx context.Context, userID, courseID string) ([]QuizProgressSummary, error) {
	var rows []models.QuizProgress
	if err := s.DB.WithContext(ctx).
		Where("external_user_id = ? AND course_id = ?", userID, courseID).
		Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load quiz progress: %w", err)
	}
	out := make([]QuizProgressSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, summarizeProgress(row))
	}
	return out, nil
}

// Attempts returns the attempt log of one quiz, oldest first.
func (s *QuizService) Attempts(ctx context.Context, userID, quizID string) ([]models.QuizAttempt, error) {
	var progress models.QuizProgress
	err := s.DB.WithContext(ctx).
		Preload("Attempts", func(db *gorm.DB) *gorm.DB { return db.Order("attempt_number") }).
		Where("external_user_id = ? AND quiz_id = ?", userID, quizID).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []models.QuizAttempt{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}
	return progress.Attempts, nil
}

type QuizStats struct {
	TotalQuizzes  int     `json:"totalQuizzes"`
	Completed     int     `json:"completed"`
	Incomplete    int     `json:"incomplete"`
	New           int     `json:"new"`
	TotalAttempts int     `json:"totalAttempts"`
	TotalPoints   int64   `json:"totalPoints"`
	PerfectScores int     `json:"perfectScores"`
	AverageScore  float64 `json:"averageScore"`
}

// SummarizeQuizStats aggregates progress rows. AverageScore is the mean best percentage.
func SummarizeQuizStats(rows []models.QuizProgress) QuizStats {
	var stats QuizStats
	var bestSum float64
	for _, row := range rows {
		stats.TotalQuizzes++
		stats.TotalAttempts += row.AttemptCount
		stats.TotalPoints += row.PointsEarned
		switch row.Status {
		case models.QuizStatusComplete:
			stats.Completed++
		case models.QuizStatusIncomplete:
			stats.Incomplete++
		default:
			stats.New++
		}
		if row.BestPercentage == 100 {
			stats.PerfectScores++
		}
		bestSum += row.BestPercentage
	}
	if stats.TotalQuizzes > 0 {
		stats.AverageScore = bestSum / float64(stats.TotalQuizzes)
	}
	return stats
}

func (s *QuizService) Stats(ctx context.Context, userID string) (*QuizStats, error) {
	var rows []models.QuizProgress
	if err := s.DB.WithContext(ctx).Where("external_user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load quiz progress: %w", err)
	}
	stats := SummarizeQuizStats(rows)
	return &stats, nil
}
