package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/hydradns/internal/api/models"
	"github.com/jroosing/hydradns/internal/core"
)

// GetStrategy godoc
// @Summary Current upstream selection strategy
// @Tags strategy
// @Produce json
// @Success 200 {object} models.StrategyResponse
// @Router /strategy [get]
func (h *Handler) GetStrategy(c *gin.Context) {
	c.JSON(http.StatusOK, models.StrategyResponse{Strategy: h.Proxy.Strategy().String()})
}

// PutStrategy godoc
// @Summary Change the upstream selection strategy
// @Tags strategy
// @Accept json
// @Produce json
// @Success 200 {object} models.StrategyResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /strategy [put]
func (h *Handler) PutStrategy(c *gin.Context) {
	var req models.StrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	strat, ok := core.ParseStrategy(req.Strategy)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unknown strategy: " + req.Strategy})
		return
	}
	h.Proxy.SetStrategy(strat)
	c.JSON(http.StatusOK, models.StrategyResponse{Strategy: strat.String()})
}
