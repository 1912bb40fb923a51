package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/hydradns/internal/api/models"
	"github.com/jroosing/hydradns/internal/cache"
)

// GetCacheConfig godoc
// @Summary Current cache configuration
// @Tags cache
// @Produce json
// @Success 200 {object} models.CacheConfigResponse
// @Router /cache/config [get]
func (h *Handler) GetCacheConfig(c *gin.Context) {
	cfg := h.Cache.GetConfig()
	c.JSON(http.StatusOK, models.CacheConfigResponse{
		DefaultTTLSeconds: int(cfg.DefaultTTL / time.Second),
		MaxEntries:        cfg.MaxEntries,
	})
}

// PutCacheConfig godoc
// @Summary Replace the cache configuration
// @Tags cache
// @Accept json
// @Produce json
// @Success 200 {object} models.CacheConfigResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /cache/config [put]
func (h *Handler) PutCacheConfig(c *gin.Context) {
	var req models.CacheConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	cfg := cache.Config{
		DefaultTTL: time.Duration(req.DefaultTTLSeconds) * time.Second,
		MaxEntries: req.MaxEntries,
	}
	h.Cache.SetConfig(cfg)
	c.JSON(http.StatusOK, models.CacheConfigResponse{
		DefaultTTLSeconds: req.DefaultTTLSeconds,
		MaxEntries:        req.MaxEntries,
	})
}

// ClearCache godoc
// @Summary Evict every cache entry
// @Tags cache
// @Success 204
// @Router /cache/clear [post]
func (h *Handler) ClearCache(c *gin.Context) {
	h.Cache.Clear()
	c.Status(http.StatusNoContent)
}

// CacheStats godoc
// @Summary Cache hit/miss counters
// @Tags cache
// @Produce json
// @Success 200 {object} models.CacheStatsResponse
// @Router /cache/stats [get]
func (h *Handler) CacheStats(c *gin.Context) {
	stats := h.Cache.Stats()
	c.JSON(http.StatusOK, models.CacheStatsResponse{
		Entries: stats.Entries,
		Hits:    stats.Hits,
		Misses:  stats.Misses,
		HitRate: stats.HitRate(),
	})
}
