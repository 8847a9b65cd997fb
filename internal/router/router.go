package router

import (
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/docexam/docexam-backend/internal/handler"
	"github.com/docexam/docexam-backend/internal/middleware"
	"github.com/docexam/docexam-backend/internal/response"
	"github.com/docexam/docexam-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	Pool    *handler.PoolHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
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

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/healthz", handlers.System.Healthz)

	// Session creation is the expensive call (pool sampling now, a grading
	// run later); it gets its own limiter.
	createLimiter := middleware.NewRateLimiter(cfg.CreateRatePerMinute, time.Minute)

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/token", handlers.Auth.Token)
		auth.GET("/me", middleware.RequireOwnerJWT(authService), handlers.Auth.GetProfile)
	}

	// ─── 2. Sessions Group (Owner JWT) ─────────────────────────────────
	// Live session responses carry an authoritative countdown and must
	// never be served from a cache.
	sessions := router.Group("/api/v1/sessions")
	sessions.Use(middleware.RequireOwnerJWT(authService), middleware.NoStore())
	{
		sessions.POST("", createLimiter.Middleware(), handlers.Session.CreateSession)
		sessions.GET("", handlers.Session.ListSessions)
		sessions.GET("/:session_id/state", handlers.Session.GetState)
		sessions.PUT("/:session_id/answers", handlers.Session.SubmitAnswer)
		sessions.POST("/:session_id/submit", handlers.Session.Submit)
		sessions.GET("/:session_id/result", handlers.Session.GetResult)
	}

	// ─── 3. Pool Group (Owner JWT) ─────────────────────────────────────
	pool := router.Group("/api/v1/pool")
	pool.Use(middleware.RequireOwnerJWT(authService), middleware.CacheControl(30))
	{
		pool.GET("/:scope/stats", handlers.Pool.GetScopeStats)
	}

	// ─── 4. Ops Group (Owner JWT) ──────────────────────────────────────
	ops := router.Group("/api/v1/ops")
	ops.Use(middleware.RequireOwnerJWT(authService))
	{
		ops.GET("/metrics", handlers.System.SystemMetricsSSE)
	}

	// ─── 5. WebSocket Group (Owner WS Auth) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireOwnerWSAuth(authService))
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
