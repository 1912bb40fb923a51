package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/jroosing/hydradns/internal/api/handlers"
	"github.com/jroosing/hydradns/internal/api/middleware"
	_ "github.com/jroosing/hydradns/internal/api/docs" // swagger docs
	"github.com/jroosing/hydradns/internal/config"
)

// RegisterRoutes mounts the management API described in spec.md §6: upstream
// selection strategy, cache control, rewrite rule CRUD, upstream server CRUD,
// the DNS query tool, and host status.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	if cfg != nil && cfg.API.APIKey != "" {
		api.Use(middleware.RequireAPIKey(cfg.API.APIKey))
	}

	api.GET("/status", h.Status)

	api.GET("/strategy", h.GetStrategy)
	api.PUT("/strategy", h.PutStrategy)

	api.GET("/cache/config", h.GetCacheConfig)
	api.PUT("/cache/config", h.PutCacheConfig)
	api.POST("/cache/clear", h.ClearCache)
	api.GET("/cache/stats", h.CacheStats)

	api.GET("/rules", h.ListRules)
	api.POST("/rules", h.CreateRule)
	api.DELETE("/rules/:id", h.DeleteRule)
	api.PUT("/rules/:id/enabled", h.SetRuleEnabled)

	api.GET("/upstreams", h.ListUpstreams)
	api.POST("/upstreams", h.CreateUpstream)
	api.PUT("/upstreams/:id", h.UpdateUpstream)
	api.DELETE("/upstreams/:id", h.DeleteUpstream)
	api.GET("/upstreams/stats", h.UpstreamStats)

	api.POST("/query", h.Query)
}
