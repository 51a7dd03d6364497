package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/storynest/storynest-backend/internal/clients/redis"
	"github.com/storynest/storynest-backend/internal/db"
	"github.com/storynest/storynest-backend/internal/handlers"
	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/middleware"
	"github.com/storynest/storynest-backend/internal/observability"
	"github.com/storynest/storynest-backend/internal/repos"
	"github.com/storynest/storynest-backend/internal/server"
	"github.com/storynest/storynest-backend/internal/services"
	"github.com/storynest/storynest-backend/internal/utils"
)

const serviceName = "storynest-backend"

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownOtel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
	})
	if shutdownOtel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOtel(ctx)
		}()
	}

	// Env
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	contentTTLHours := utils.GetEnvAsInt("CONTENT_CACHE_TTL_HOURS", 24, log)
	debounceMinutes := utils.GetEnvAsInt("GENERATION_DEBOUNCE_MINUTES", 5, log)
	genTimeoutSeconds := utils.GetEnvAsInt("GENERATION_TIMEOUT_SECONDS", 120, log)
	typicalGenSeconds := utils.GetEnvAsInt("GENERATION_TYPICAL_SECONDS", 45, log)
	port := utils.GetEnv("PORT", "8080", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	studentRepo := repos.NewStudentRepo(thePG, log)
	planRepo := repos.NewPlanRepo(thePG, log)
	storyRepo := repos.NewStoryRepo(thePG, log)
	planDayRepo := repos.NewPlanDayRepo(thePG, log)
	contentRepo := repos.NewActivityContentRepo(thePG, log)
	progressRepo := repos.NewActivityProgressRepo(thePG, log)

	// Generation lease (optional: falls back to the durable window check)
	var lease services.GenerationLease
	if redisLease, err := redis.NewGenerationLease(log); err != nil {
		log.Warn("Redis generation lease disabled", "error", err)
	} else {
		lease = redisLease
		defer redisLease.Close()
	}

	// External generator
	generator, err := services.NewOpenAIGenerator(log)
	if err != nil {
		log.Fatal("Generator init failed", "error", err)
	}

	// Services
	log.Info("Setting up services...")
	authService := services.NewAuthService(log, jwtSecretKey)
	fallback := services.NewStaticFallbackProvider()
	validator := services.NewAnswerValidator()
	cacheService := services.NewContentCacheService(log, contentRepo, generator, fallback, time.Duration(contentTTLHours)*time.Hour)
	planService := services.NewPlanService(log, planRepo, studentRepo, time.Duration(typicalGenSeconds)*time.Second)
	planGeneration := services.NewPlanGenerationService(
		thePG, log,
		studentRepo, planRepo, storyRepo, planDayRepo,
		generator, lease,
		time.Duration(debounceMinutes)*time.Minute,
		time.Duration(genTimeoutSeconds)*time.Second,
	)
	dayService := services.NewDayService(thePG, log, planService, planRepo, planDayRepo, storyRepo, progressRepo, cacheService, validator)

	// Handlers + middleware
	log.Info("Setting up handlers...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)
	planHandler := handlers.NewPlanHandler(log, planService, planGeneration)
	dayHandler := handlers.NewDayHandler(log, dayService)
	activityHandler := handlers.NewActivityHandler(log, dayService)

	router := server.NewRouter(server.RouterConfig{
		ServiceName:     serviceName,
		AuthMiddleware:  authMiddleware,
		PlanHandler:     planHandler,
		DayHandler:      dayHandler,
		ActivityHandler: activityHandler,
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
