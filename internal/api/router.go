package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/wager-game/internal/middleware"
	"github.com/wfunc/wager-game/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	services       *service.Services
	authHandler    *AuthHandler
	wagerHandler   *WagerHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, config *service.Config, log *zap.Logger) *Router {
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	services := service.NewServices(db, config, log)

	authHandler := NewAuthHandler(services.Auth)
	wagerHandler := NewWagerHandler(services.Wager, log)
	wsHandler := NewWebSocketHandler(services.Events, log)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth)

	router := &Router{
		engine:         engine,
		db:             db,
		services:       services,
		authHandler:    authHandler,
		wagerHandler:   wagerHandler,
		wsHandler:      wsHandler,
		authMiddleware: authMiddleware,
		log:            log,
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由（不需要认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/refresh", r.authHandler.RefreshToken)
		}

		// 对局会话路由（需要权威认证）
		sessions := v1.Group("/sessions")
		sessions.Use(r.authMiddleware.RequireAuth())
		{
			sessions.POST("", r.wagerHandler.CreateSession)
			sessions.GET("", r.wagerHandler.ListSessions)
			sessions.GET("/:session_id", r.wagerHandler.GetSession)
			sessions.POST("/:session_id/join", r.wagerHandler.JoinSession)
			sessions.POST("/:session_id/kills", r.wagerHandler.RecordKill)
			sessions.POST("/:session_id/spawns", r.wagerHandler.PayToSpawn)
			sessions.POST("/:session_id/refund", r.wagerHandler.RefundWager)
			sessions.POST("/:session_id/distribute", r.wagerHandler.DistributeWinnings)
			sessions.GET("/:session_id/payouts", r.wagerHandler.GetPayouts)
		}
	}

	// WebSocket事件流
	ws := r.engine.Group("/ws")
	ws.Use(r.authMiddleware.RequireAuth())
	{
		ws.GET("/sessions/:session_id", r.wsHandler.SessionEvents)
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// GetServices 获取服务集合
func (r *Router) GetServices() *service.Services {
	return r.services
}
