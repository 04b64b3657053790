package api

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authHandlers "backend/api/handlers/auth"
	budgetHandlers "backend/api/handlers/budget"
	cartHandlers "backend/api/handlers/cart"
	companyHandlers "backend/api/handlers/company"
	fileHandlers "backend/api/handlers/files"
	notificationHandlers "backend/api/handlers/notifications"
	productHandlers "backend/api/handlers/products"
	purchaseHandlers "backend/api/handlers/purchases"
	userHandlers "backend/api/handlers/users"
	"backend/internal/auth"
	"backend/internal/config"
	"backend/internal/logger"
	"backend/internal/metrics"
	middlewarepkg "backend/internal/middleware"
	"backend/internal/worker"
)

// SetupRouter 组装路由、后台任务服务器和调度器
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *worker.Server, *worker.Scheduler, *AppContainer, error) {
	router := gin.New()

	// Redis 客户端（令牌黑名单）
	var redisClient *redis.Client
	redisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Redis 不可用，令牌黑名单与注销失效功能将降级", zap.Error(err))
		redisClient = nil
	}

	// 生产模式必须显式配置密钥，防止使用弱默认值
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		if strings.EqualFold(cfg.Server.Mode, "release") {
			logger.Fatal("JWT 密钥未配置，生产环境禁止使用默认密钥")
		}
		cfg.Auth.JWTSecret = "default_jwt_secret_key_change_in_production"
		logger.Warn("JWT 密钥未配置，已回退为开发默认值，请在生产环境设置强随机密钥")
	}

	container, err := NewAppContainer(db, cfg, redisClient)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(middlewarepkg.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())
	router.Use(metrics.PrometheusMiddleware())

	// 公开端点（不需要认证）
	router.GET("/health", HealthCheck(db))
	router.GET("/ready", ReadinessCheck(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Handlers
	authHandler := authHandlers.NewHandler(container.Users, container.Companies)
	companyHandler := companyHandlers.NewHandler(container.Companies)
	userHandler := userHandlers.NewHandler(container.Users)
	productHandler := productHandlers.NewHandler(container.Products)
	cartHandler := cartHandlers.NewHandler(container.Carts)
	budgetHandler := budgetHandlers.NewHandler(container.Budgets)
	purchaseHandler := purchaseHandlers.NewHandler(container.Purchases)
	notificationHandler := notificationHandlers.NewHandler(container.Notifications, container.Hub)
	fileHandler := fileHandlers.NewHandler(container.Store)

	// 签名文件下载（签名即授权，不走 JWT）
	router.GET("/files/*path", fileHandler.Download)

	// 认证 API（公开，不需要 JWT），按来源 IP 限流，降低口令爆破风险
	loginLimiter := middlewarepkg.NewRateLimiter(middlewarepkg.DefaultRateLimiterConfig())
	authGroup := router.Group("/api/auth")
	authGroup.Use(middlewarepkg.RateLimitMiddleware(loginLimiter))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// 角色守卫
	managerGuard := auth.RequireRole(auth.RoleManager)
	adminGuard := auth.RequireRole(auth.RoleAdmin)

	// 路由注册器，方便同时挂载 /api 与 /api/v1
	registerAPIRoutes := func(apiGroup *gin.RouterGroup) {
		apiGroup.POST("/auth/logout", authHandler.Logout)

		// WebSocket 通知推送
		apiGroup.GET("/ws/notifications", notificationHandler.Connect)

		// 公司管理
		companyGroup := apiGroup.Group("/company")
		{
			companyGroup.GET("", companyHandler.Get)
			companyGroup.PUT("", adminGuard, companyHandler.Rename)
			companyGroup.PUT("/profile", adminGuard, companyHandler.UpdateProfile)
		}

		// 成员管理
		usersGroup := apiGroup.Group("/users")
		{
			usersGroup.GET("/me", userHandler.Me)
			usersGroup.PUT("/me/password", userHandler.ChangePassword)
			usersGroup.GET("", userHandler.List)
			usersGroup.GET("/:id", userHandler.Get)
			usersGroup.POST("/invite", adminGuard, userHandler.Invite)
			usersGroup.PUT("/:id/role", adminGuard, userHandler.UpdateRole)
			usersGroup.DELETE("/:id", adminGuard, userHandler.Deactivate)
			usersGroup.POST("/:id/reactivate", adminGuard, userHandler.Reactivate)
		}

		// 商品管理
		productsGroup := apiGroup.Group("/products")
		{
			productsGroup.GET("/categories", productHandler.ListCategories)
			productsGroup.POST("/categories", managerGuard, productHandler.CreateCategory)
			productsGroup.PUT("/categories/:id", managerGuard, productHandler.UpdateCategory)
			productsGroup.DELETE("/categories/:id", managerGuard, productHandler.DeleteCategory)

			productsGroup.GET("", productHandler.List)
			productsGroup.GET("/:id", productHandler.Get)
			productsGroup.POST("", managerGuard, productHandler.Create)
			productsGroup.PUT("/:id", managerGuard, productHandler.Update)
			productsGroup.DELETE("/:id", managerGuard, productHandler.Deactivate)
			productsGroup.POST("/:id/image", managerGuard, productHandler.UploadImage)
		}

		// 购物车
		cartGroup := apiGroup.Group("/cart")
		{
			cartGroup.GET("", cartHandler.List)
			cartGroup.DELETE("", cartHandler.Clear)
			cartGroup.POST("/items", cartHandler.Add)
			cartGroup.PUT("/items/:id", cartHandler.UpdateQuantity)
			cartGroup.DELETE("/items/:id", cartHandler.Remove)
		}

		// 采购申请
		purchasesGroup := apiGroup.Group("/purchases")
		{
			purchasesGroup.POST("", purchaseHandler.Create)
			purchasesGroup.POST("/immediate", adminGuard, purchaseHandler.CreateImmediate)
			purchasesGroup.GET("", purchaseHandler.List)
			purchasesGroup.GET("/dashboard", purchaseHandler.Dashboard)
			purchasesGroup.GET("/export", managerGuard, purchaseHandler.Export)
			purchasesGroup.GET("/:id", purchaseHandler.Get)
			purchasesGroup.POST("/:id/approve", managerGuard, purchaseHandler.Approve)
			purchasesGroup.POST("/:id/reject", managerGuard, purchaseHandler.Reject)
			purchasesGroup.POST("/:id/cancel", purchaseHandler.Cancel)
		}

		// 预算管理
		budgetGroup := apiGroup.Group("/budget")
		{
			budgetGroup.GET("/current", budgetHandler.Current)
			budgetGroup.PUT("", adminGuard, budgetHandler.UpsertMonth)
			budgetGroup.GET("/criteria", managerGuard, budgetHandler.GetCriteria)
			budgetGroup.PUT("/criteria", adminGuard, budgetHandler.UpsertCriteria)
		}

		// 通知
		notificationsGroup := apiGroup.Group("/notifications")
		{
			notificationsGroup.GET("", notificationHandler.List)
			notificationsGroup.GET("/unread-count", notificationHandler.UnreadCount)
			notificationsGroup.POST("/read-all", notificationHandler.MarkAllRead)
			notificationsGroup.POST("/:id/read", notificationHandler.MarkRead)
		}
	}

	authChain := []gin.HandlerFunc{
		auth.AuthMiddleware(container.JWTService, container.Users),
		middlewarepkg.GinTenantContextMiddleware(logger.Get()),
	}

	// 主 API 组
	api := router.Group("/api")
	api.Use(authChain...)
	registerAPIRoutes(api)

	// 版本化 API 组
	apiV1 := router.Group("/api/v1")
	apiV1.Use(authChain...)
	registerAPIRoutes(apiV1)

	// 后台任务服务器与调度器
	workerServer := worker.NewServer(cfg.Redis, container.Budgets, container.Notifications, logger.Get())
	scheduler, err := worker.NewScheduler(cfg.Redis, cfg.Scheduler, logger.Get())
	if err != nil {
		return nil, nil, nil, nil, err
	}

	return router, workerServer, scheduler, container, nil
}

// RequestLogger 请求日志中间件
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", middlewarepkg.GetRequestID(c)),
		)
	}
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowedOrigins := getEnvList("CORS_ALLOW_ORIGINS")
		origin := c.GetHeader("Origin")
		switch {
		case len(allowedOrigins) == 0:
			// 开发缺省：全部放行
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && stringInSlice(origin, allowedOrigins):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		default:
			// 未匹配则不设置 Allow-Origin，浏览器将拦截
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Max-Age", "600")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ReadinessResponse 就绪检查响应
type ReadinessResponse struct {
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Database string `json:"database,omitempty"`
}

// HealthCheck 健康检查
// @Summary 服务健康检查
// @Description 返回基础健康状态，可供监控探针使用
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func HealthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "snackstore",
		})
	}
}

// ReadinessCheck 就绪检查
// @Summary 服务就绪检查
// @Description 包含数据库连通性结果，用于判断可接收请求
// @Tags System
// @Produce json
// @Success 200 {object} ReadinessResponse
// @Failure 503 {object} ReadinessResponse
// @Router /ready [get]
func ReadinessCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(503, gin.H{
				"status": "not_ready",
				"reason": "database connection error",
			})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(503, gin.H{
				"status": "not_ready",
				"reason": "database ping failed",
			})
			return
		}

		c.JSON(200, gin.H{
			"status":   "ready",
			"database": "connected",
		})
	}
}

// getEnvList 读取逗号分隔的环境变量列表
func getEnvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var res []string
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			res = append(res, v)
		}
	}
	return res
}

// stringInSlice 判断字符串是否存在
func stringInSlice(target string, list []string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
