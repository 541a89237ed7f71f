package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jsacert/exam-engine/internal/config"
	"github.com/jsacert/exam-engine/internal/handler"
	"github.com/jsacert/exam-engine/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session  *handler.SessionHandler
	Question *handler.QuestionHandler
	User     *handler.UserHandler
	Stats    *handler.StatsHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	// ─── Users ─────────────────────────────────────────────────────────
	users := api.Group("/users")
	{
		users.POST("", handlers.User.RegisterUser)
		users.GET("/:user_id", handlers.User.GetUser)
		users.GET("/:user_id/sessions/active", handlers.Session.GetActiveSession)
		users.GET("/:user_id/retake-eligibility", handlers.Session.GetRetakeEligibility)
	}

	// ─── Sessions ──────────────────────────────────────────────────────
	sessions := api.Group("/sessions")
	{
		sessions.POST("", handlers.Session.CreateSession)
		sessions.GET("/:session_id", handlers.Session.GetSession)
		sessions.PUT("/:session_id/position", handlers.Session.SetPosition)
		sessions.GET("/:session_id/questions/:index", handlers.Question.GetSessionQuestion)
		sessions.POST("/:session_id/questions/:index/flag", handlers.Session.ToggleFlag)
		sessions.DELETE("/:session_id/flags", handlers.Session.ClearFlags)
		sessions.PUT("/:session_id/answers/single", handlers.Session.AnswerSingleChoice)
		sessions.POST("/:session_id/answers/toggle", handlers.Session.ToggleMultiChoice)
		sessions.DELETE("/:session_id/answers", handlers.Session.ResetAnswers)
		sessions.GET("/:session_id/progress", handlers.Session.GetProgress)
		sessions.POST("/:session_id/submit", handlers.Session.Submit)
		sessions.POST("/:session_id/abandon", handlers.Session.Abandon)
		sessions.POST("/:session_id/restart", handlers.Session.RestartPractice)
	}

	// ─── Question bank ─────────────────────────────────────────────────
	api.GET("/questions/:question_id", handlers.Question.GetQuestion)

	// ─── Admin ─────────────────────────────────────────────────────────
	api.GET("/admin/stats", handlers.Stats.GetStats)

	return router
}
