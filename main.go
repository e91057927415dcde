package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storra-backend/config"
	"storra-backend/handlers"
	"storra-backend/models"
	"storra-backend/services"
	"storra-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not up yet.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	if err := utils.InitLogger(cfg); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer utils.Logger.Sync()
	log := utils.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	curriculum := services.NewCurriculumService(db)
	if cfg.CurriculumSeedFile != "" {
		seedCurriculum(ctx, curriculum, cfg.CurriculumSeedFile)
	}

	ledger := services.NewLedgerService(db, cfg.Location())
	var cache services.LeaderboardCache
	if cfg.RedisAddr != "" {
		redisCache, err := utils.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("redis unavailable, leaderboard runs uncached", zap.Error(err))
		} else {
			defer redisCache.Close()
			cache = redisCache
			ledger.Cache = redisCache
		}
	}

	wheel, err := services.NewSpinWheel(models.SpinWheelRewards, models.SmallSpinRewards, nil)
	if err != nil {
		log.Fatal("invalid spin wheel", zap.Error(err))
	}

	var verifier services.IdentityVerifier
	if cfg.SupabaseJWTSecret != "" {
		verifier = services.NewJWTVerifier(cfg.SupabaseJWTSecret)
	} else {
		verifier = services.NewSupabaseAuthClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, utils.HTTPClient)
	}

	users := services.NewUserService(db, curriculum)
	users.Cache = cache
	svc := &handlers.Services{
		Ledger:       ledger,
		Daily:        services.NewDailyRewardService(ledger),
		Achievements: services.NewAchievementService(ledger),
		Spin:         services.NewSpinService(ledger, wheel),
		Quizzes:      services.NewQuizService(db, ledger, curriculum, users),
		Lessons:      services.NewLessonService(db, ledger, curriculum, users),
		Leaderboard:  services.NewLeaderboardService(db, cache, cfg.LeaderboardCacheTTL),
		Curriculum:   curriculum,
		Users:        users,
		Verifier:     verifier,
	}
	if cfg.StorageEnabled() {
		storage, err := utils.NewR2Storage(ctx, cfg)
		if err != nil {
			log.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		svc.Storage = storage
	} else {
		log.Warn("R2 credentials not set, profile picture uploads disabled")
	}

	sched, err := ledger.StartSpinRefillScheduler(ctx)
	if err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Shutdown()

	app := fiber.New(fiber.Config{
		BodyLimit: utils.MaxAvatarBytes + 1<<20,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.SetupRoutes(app, svc, handlers.RouteOptions{
		ServiceToken:       cfg.ServiceToken,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	log.Info("server running",
		zap.String("port", cfg.Port),
		zap.String("reward_timezone", cfg.RewardTimezone),
		zap.String("cors_origins", cfg.Origins()))

	<-ctx.Done()
	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}

func seedCurriculum(ctx context.Context, curriculum *services.CurriculumService, path string) {
	f, err := os.Open(path)
	if err != nil {
		utils.Logger.Fatal("failed to open curriculum seed", zap.String("path", path), zap.Error(err))
	}
	defer f.Close()
	n, err := curriculum.Import(ctx, f)
	if err != nil {
		utils.Logger.Fatal("failed to seed curriculum", zap.String("path", path), zap.Error(err))
	}
	utils.Logger.Info("curriculum seeded", zap.Int("classes", n))
}
