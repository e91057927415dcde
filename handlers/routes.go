package handlers

import (
	"context"
	"mime/multipart"

	"storra-backend/middleware"
	"storra-backend/services"

	"github.com/gofiber/fiber/v2"
)

// ObjectUploader stores an uploaded file and returns its public URL.
type ObjectUploader interface {
	UploadFile(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
}

// Services bundles what the HTTP layer calls into.
type Services struct {
	Ledger       *services.LedgerService
	Daily        *services.DailyRewardService
	Achievements *services.AchievementService
	Spin         *services.SpinService
	Quizzes      *services.QuizService
	Lessons      *services.LessonService
	Leaderboard  *services.LeaderboardService
	Curriculum   *services.CurriculumService
	Users        *services.UserService
	Verifier     services.IdentityVerifier
	// Storage is nil when R2 is not configured.
	Storage ObjectUploader
}

type RouteOptions struct {
	ServiceToken       string
	RateLimitPerMinute int
}

// authenticatedPrefixes are the path prefixes that require a signed-in user.
var authenticatedPrefixes = []string{"/user", "/rewards", "/spin", "/classes", "/quizzes", "/lessons", "/leaderboard"}

// SetupRoutes registers every route. Public and token-guarded routes come first so bearer
// auth does not run for them. Paths outside the known prefixes fall through to a JSON 404.
func SetupRoutes(app *fiber.App, svc *Services, opts RouteOptions) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	admin := app.Group("/s/admin", middleware.ServiceTokenMiddleware(opts.ServiceToken))
	SetupAdminRoutes(admin, svc)

	app.Get("/rewards/stream", middleware.QueryTokenAuth(svc.Verifier, svc.Users), func(c *fiber.Ctx) error {
		if err := svc.Ledger.StreamTransactions(c); err != nil {
			return respondError(c, err)
		}
		return nil
	})

	app.Use(authenticatedPrefixes, middleware.RequireUser(svc.Verifier, svc.Users))
	limiter := middleware.RateLimit(opts.RateLimitPerMinute)

	SetupProfileRoutes(app, svc)
	SetupRewardRoutes(app, svc, limiter)
	SetupSpinRoutes(app, svc, limiter)
	SetupQuizRoutes(app, svc, limiter)
	SetupLessonRoutes(app, svc)
	SetupLeaderboardRoutes(app, svc)

	app.Use(func(c *fiber.Ctx) error {
		return respondError(c, services.NewError(services.KindNotFound, "Route %s %s not found", c.Method(), c.Path()))
	})
}
