package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/storynest/storynest-backend/internal/handlers"
	"github.com/storynest/storynest-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName     string
	AuthMiddleware  *middleware.AuthMiddleware
	PlanHandler     *handlers.PlanHandler
	DayHandler      *handlers.DayHandler
	ActivityHandler *handlers.ActivityHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.AttachTraceContext())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	{
		api.POST("/plans", cfg.PlanHandler.CreatePlan)
		api.GET("/plans/status/:id", cfg.PlanHandler.GetPlanStatus)
		api.GET("/plans/:id", cfg.PlanHandler.GetPlan)
		api.GET("/plans/:id/day/:index", cfg.DayHandler.GetDay)
		api.POST("/plans/:id/day/:index/answers", cfg.DayHandler.SubmitAnswers)
		api.POST("/activities/regenerate/:planId/:dayIndex/:activityType", cfg.ActivityHandler.Regenerate)
	}

	return router
}
