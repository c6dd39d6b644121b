package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/notefold/notefold-backend/internal/config"
	"github.com/notefold/notefold-backend/internal/handler"
	"github.com/notefold/notefold-backend/internal/middleware"
	"github.com/notefold/notefold-backend/internal/response"
	"github.com/notefold/notefold-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Note       *handler.NoteHandler
	Submission *handler.SubmissionHandler
	Grading    *handler.GradingHandler
	Stats      *handler.StatsHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Rendered document trees get large; compress when the client supports it.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Notes Group (Any Authenticated User) ───────────────────────
	notes := router.Group("/api/v1/notes")
	notes.Use(middleware.RequireJWT(authService))
	{
		notes.GET("/:note_id/document", handlers.Note.GetDocument)
	}

	// ─── 3. Student Group (Student JWT) ────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.POST("/tests/:test_id/submission", handlers.Submission.Start)
		studentAPI.GET("/tests/:test_id/paper", handlers.Submission.GetPaper)
		studentAPI.PUT("/tests/:test_id/answer", handlers.Submission.SaveAnswer)
		studentAPI.POST("/tests/:test_id/complete", handlers.Submission.Complete)
	}

	// ─── 4. Teacher Group (Teacher JWT) ────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		teacherAPI.POST("/tests/:test_id/fix-submissions", handlers.Grading.FixSubmissions)
		teacherAPI.POST("/tests/:test_id/recalculate", handlers.Grading.RecalculateScores)
		teacherAPI.POST("/tests/:test_id/reopen-all", handlers.Grading.ReopenAll)
		teacherAPI.POST("/tests/:test_id/submissions/:submission_id/reopen", handlers.Grading.ReopenSubmission)
		teacherAPI.GET("/tests/:test_id/stats", handlers.Stats.GetTestStats)
		teacherAPI.POST("/notes/:note_id/refresh-cache", handlers.Note.RefreshCache)
	}

	// ─── 5. WebSocket Group (Teacher WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireTeacherWSAuth(authService))
	{
		ws.GET("/teacher/tests/:test_id/monitor", handlers.WS.MonitorTest)
	}

	return router
}
