package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/config"
	"github.com/stemsi/exstem-ems/internal/handler"
	"github.com/stemsi/exstem-ems/internal/middleware"
	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/response"
	"github.com/stemsi/exstem-ems/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentMgmt   *handler.StudentManagementHandler
	Question      *handler.QuestionHandler
	Exam          *handler.ExamHandler
	Result        *handler.ResultHandler
	StudentPortal *handler.StudentPortalHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.AccessLog(log))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	authenticated := []gin.HandlerFunc{
		middleware.RequireJWT(authService),
		middleware.RequireLiveSession(authService),
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authLimiter := middleware.NewRateLimiter(30, time.Minute)
	auth := router.Group("/api/v1/auth")
	auth.Use(middleware.NoStore())
	{
		auth.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)

		auth.POST("/logout", append(authenticated, handlers.Auth.Logout)...)
		auth.GET("/me", append(authenticated, handlers.Auth.Me)...)
	}

	// ─── 2. Teacher Group (JWT + Live Session + Role) ──────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(authenticated...)
	teacherAPI.Use(middleware.RequireRole(model.RoleTeacher))
	{
		teacherAPI.GET("/students", handlers.StudentMgmt.ListStudents)
		teacherAPI.POST("/students", handlers.StudentMgmt.CreateStudent)
		teacherAPI.GET("/students/:username", handlers.StudentMgmt.GetStudent)
		teacherAPI.PUT("/students/:username", handlers.StudentMgmt.UpdateStudent)
		teacherAPI.DELETE("/students/:username", handlers.StudentMgmt.DeleteStudent)

		teacherAPI.GET("/questions", handlers.Question.ListQuestions)
		teacherAPI.POST("/questions", handlers.Question.CreateQuestion)
		teacherAPI.POST("/questions/import", handlers.Question.ImportQuestions)
		teacherAPI.GET("/questions/:id", handlers.Question.GetQuestion)
		teacherAPI.PUT("/questions/:id", handlers.Question.UpdateQuestion)
		teacherAPI.DELETE("/questions/:id", handlers.Question.DeleteQuestion)

		teacherAPI.GET("/exams", handlers.Exam.ListExams)
		teacherAPI.POST("/exams", handlers.Exam.CreateExam)
		teacherAPI.GET("/exams/:id", handlers.Exam.GetExam)
		teacherAPI.PUT("/exams/:id", handlers.Exam.UpdateExam)
		teacherAPI.DELETE("/exams/:id", handlers.Exam.DeleteExam)

		teacherAPI.GET("/results", handlers.Result.ListResults)
		teacherAPI.GET("/results/export", middleware.Brotli(5), handlers.Result.ExportResults)
		teacherAPI.GET("/results/:seq", handlers.Result.GetResult)
	}

	// ─── 3. Student Group (JWT + Live Session + Role) ──────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(authenticated...)
	studentAPI.Use(middleware.RequireRole(model.RoleStudent))
	{
		studentAPI.GET("/exams", handlers.StudentPortal.ListExams)
		studentAPI.GET("/exams/:id", handlers.StudentPortal.GetExam)
		studentAPI.GET("/results", handlers.StudentPortal.MyResults)
		studentAPI.GET("/results/:seq", handlers.StudentPortal.MyResultDetail)

		attempt := studentAPI.Group("")
		attempt.Use(middleware.NoStore())
		{
			attempt.POST("/exams/:id/attempt", handlers.StudentPortal.StartAttempt)
			attempt.GET("/attempt", handlers.StudentPortal.GetAttempt)
			attempt.PUT("/attempt/answer", handlers.StudentPortal.Answer)
			attempt.PUT("/attempt/cursor", handlers.StudentPortal.MoveCursor)
			attempt.POST("/attempt/submit", handlers.StudentPortal.Submit)
		}
	}

	// ─── 4. WebSocket Group (token query) ──────────────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(authenticated...)
	wsGroup.Use(middleware.RequireRole(model.RoleStudent))
	{
		wsGroup.GET("/student/attempt/stream", handlers.WS.AttemptStream)
	}

	return router
}
