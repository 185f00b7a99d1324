package router

import (
	"fmt"
	"strings"

	"github.com/franzbiely/flash-sale-system/internal/cache"
	"github.com/franzbiely/flash-sale-system/internal/config"
	opshandlers "github.com/franzbiely/flash-sale-system/internal/http/handlers/ops"
	publichandlers "github.com/franzbiely/flash-sale-system/internal/http/handlers/public"
	"github.com/franzbiely/flash-sale-system/internal/logger"
	"github.com/franzbiely/flash-sale-system/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	opsHandler := opshandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "fs"
	}
	redisClient := cache.Client()
	requestRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:purchase_request", redisPrefix),
		WindowSeconds: cfg.Security.RequestRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.RequestRateLimit.MaxAttempts,
		Message:       "抢购申请过于频繁，请稍后再试",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 公开浏览接口
		public := apiV1.Group("/public")
		{
			public.GET("/sales", publicHandler.GetActiveSales)
			public.GET("/products/:slug", publicHandler.GetProductBySlug)
		}

		// 抢购流水线接口
		purchase := apiV1.Group("/purchase")
		{
			purchase.POST("/request",
				RateLimitMiddleware(redisClient, requestRule, KeyByIPAndJSONField("email")),
				publicHandler.RequestPurchase)
			purchase.POST("/verify", publicHandler.VerifyPurchase)
			purchase.GET("/status", publicHandler.GetPurchaseStatus)
		}

		// 运维接口
		opsGroup := apiV1.Group("/ops")
		opsGroup.Use(opsHandler.TokenGuard())
		{
			opsGroup.GET("/queue/stats", opsHandler.GetQueueStats)
		}
	}

	return r
}
