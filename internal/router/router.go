package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-engine/internal/config"
	"github.com/stemsi/exstem-engine/internal/handler"
	"github.com/stemsi/exstem-engine/internal/middleware"
	"github.com/stemsi/exstem-engine/internal/response"
	"github.com/stemsi/exstem-engine/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	Grading *handler.GradingHandler
	WS      *handler.WSHandler
	Monitor *handler.MonitorHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background goroutines owned by the router, such as the rate
// limiter sweep.
func SetupRouter(
	ctx context.Context,
	verifier *service.TokenVerifier,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	studentAuth := middleware.StudentJWT(verifier, cfg.AuthRequired)

	// ─── 1. Student Group (optional JWT) ───────────────────────────────
	exams := router.Group("/api/v1/exams/:exam_id")
	exams.Use(studentAuth, middleware.NoStore())
	{
		exams.GET("/take", handlers.Attempt.TakeExam)
		exams.POST("/start", handlers.Attempt.StartAttempt)
		exams.GET("/result/:student_id", handlers.Attempt.GetResult)
		exams.GET("/attempts", handlers.Attempt.GetHistory)
		exams.POST("/attempts/:attempt_id/submit", handlers.Attempt.SubmitAttempt)

		answer := []gin.HandlerFunc{handlers.Attempt.SaveAnswer}
		if cfg.AutosaveRatePerMinute > 0 {
			limiter := middleware.NewRateLimiter(ctx, cfg.AutosaveRatePerMinute, time.Minute, middleware.StudentKey)
			answer = append([]gin.HandlerFunc{limiter.Middleware()}, answer...)
		}
		exams.POST("/attempts/:attempt_id/answer", answer...)
	}

	// ─── 2. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(studentAuth)
	{
		ws.GET("/exams/:exam_id/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 3. Admin Group (admin JWT) ────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(verifier))
	{
		adminAPI.POST("/attempts/:attempt_id/grades", handlers.Grading.GradeAnswers)
		adminAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)
		adminAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
