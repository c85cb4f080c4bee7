package api

import (
	"net/http"

	"SFHelp_Agent/internal/config"
	"SFHelp_Agent/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置和返回一个 Gin 引擎实例。
func SetupRouter(h *Handler, rlCfg config.RateLimiterConfig) *gin.Engine {
	// 使用默认中间件 (logger, recovery) 创建一个 Gin 引擎。
	r := gin.Default()

	r.GET("/healthz", h.Health)

	apiV1 := r.Group("/api/v1")
	if rlCfg.Enabled {
		apiV1.Use(RateLimitMiddleware(ratelimiter.NewTokenBucket(rlCfg.Rate, rlCfg.Capacity)))
	}
	{
		apiV1.POST("/chat", h.Chat)
		apiV1.POST("/search", h.Search)
		apiV1.GET("/products", h.ListProducts)
	}

	return r
}

// RateLimitMiddleware 创建一个基于令牌桶的限流中间件。
func RateLimitMiddleware(limiter ratelimiter.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
