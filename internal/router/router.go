package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/stemsi/signquest-backend/internal/config"
	"github.com/stemsi/signquest-backend/internal/handler"
	"github.com/stemsi/signquest-backend/internal/middleware"
	"github.com/stemsi/signquest-backend/internal/response"
	"github.com/stemsi/signquest-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Student *handler.StudentHandler
	Room    *handler.RoomHandler
	Teacher *handler.TeacherHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the background sweeps of the rate limiters.
func SetupRouter(
	ctx context.Context,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(otelgin.Middleware(cfg.OtelServiceName))
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// Login and registration: 30 requests per minute per IP.
	authLimiter := middleware.NewRateLimiter(ctx, 30, time.Minute, middleware.ByClientIP)
	// Room mutations: 120 per minute per player.
	roomLimiter := middleware.NewRateLimiter(ctx, 120, time.Minute, middleware.ByPlayer)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/register", handlers.Auth.StudentRegister)
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/teacher/login", handlers.Auth.TeacherLogin)
	}

	// ─── 2. Student Group (Student JWT) ────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.GET("/profile", handlers.Student.GetProfile)
		studentAPI.POST("/progress", handlers.Student.SubmitProgress)
		studentAPI.GET("/achievements", handlers.Student.GetAchievements)
		studentAPI.GET("/history", handlers.Student.GetHistory)
		studentAPI.GET("/leaderboard", middleware.CacheControl(int(cfg.LeaderboardTTL.Seconds())), handlers.Student.GetLeaderboard)
		studentAPI.POST("/signs/check", handlers.Student.CheckSign)
	}

	// ─── 3. Room Group (Student JWT, Rate Limited) ─────────────────────
	rooms := router.Group("/api/v1/rooms")
	rooms.Use(middleware.RequireStudentJWT(authService), roomLimiter.Middleware())
	{
		rooms.POST("", handlers.Room.CreateRoom)

		room := rooms.Group("/:code")
		room.Use(middleware.RequireRoomCode("code"))
		{
			room.GET("", handlers.Room.GetRoom)
			room.POST("/join", handlers.Room.JoinRoom)
			room.POST("/leave", handlers.Room.LeaveRoom)
			room.POST("/start", handlers.Room.StartGame)
			room.POST("/end", handlers.Room.EndGame)
			room.POST("/question", handlers.Room.ChangeQuestion)
			room.GET("/messages", handlers.Room.GetMessages)
			room.POST("/messages/trim", handlers.Room.TrimMessages)
		}
	}

	// ─── 4. Teacher Group (Teacher JWT) ────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		teacherAPI.GET("/students", handlers.Teacher.ListStudents)
		teacherAPI.GET("/students/export", handlers.Teacher.ExportProgress)
		teacherAPI.DELETE("/students/:username", handlers.Teacher.RemoveStudent)
	}

	// ─── 5. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/rooms/:code/stream", middleware.RequireRoomCode("code"), handlers.WS.MatchStream)
	}

	return router
}
