package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/hydradns/internal/api/models"
	"github.com/jroosing/hydradns/internal/core"
)

// ListUpstreams godoc
// @Summary List upstream servers
// @Tags upstreams
// @Produce json
// @Success 200 {array} models.UpstreamResponse
// @Router /upstreams [get]
func (h *Handler) ListUpstreams(c *gin.Context) {
	servers := h.Upstream.List()
	out := make([]models.UpstreamResponse, 0, len(servers))
	for _, s := range servers {
		out = append(out, upstreamToResponse(s))
	}
	c.JSON(http.StatusOK, out)
}

// CreateUpstream godoc
// @Summary Add an upstream server
// @Tags upstreams
// @Accept json
// @Produce json
// @Success 201 {object} models.UpstreamResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /upstreams [post]
func (h *Handler) CreateUpstream(c *gin.Context) {
	var req models.UpstreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	s, err := upstreamFromRequest(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	h.Upstream.Add(s)
	h.persistUpstream(func() error { return h.snap.SaveUpstream(context.Background(), s) })
	c.JSON(http.StatusCreated, upstreamToResponse(s))
}

// UpdateUpstream godoc
// @Summary Replace an upstream server's configuration
// @Tags upstreams
// @Accept json
// @Produce json
// @Success 200 {object} models.UpstreamResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /upstreams/{id} [put]
func (h *Handler) UpdateUpstream(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid upstream id"})
		return
	}
	var req models.UpstreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	req.ID = id
	s, err := upstreamFromRequest(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	h.Upstream.Add(s) // Add replaces an existing ID in place
	h.persistUpstream(func() error { return h.snap.SaveUpstream(context.Background(), s) })
	c.JSON(http.StatusOK, upstreamToResponse(s))
}

// DeleteUpstream godoc
// @Summary Remove an upstream server
// @Tags upstreams
// @Success 204
// @Router /upstreams/{id} [delete]
func (h *Handler) DeleteUpstream(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid upstream id"})
		return
	}
	h.Upstream.Remove(id)
	h.persistUpstream(func() error { return h.snap.DeleteUpstream(context.Background(), id) })
	c.Status(http.StatusNoContent)
}

// UpstreamStats godoc
// @Summary Live upstream health/latency counters
// @Tags upstreams
// @Produce json
// @Success 200 {array} models.UpstreamStatsResponse
// @Router /upstreams/stats [get]
func (h *Handler) UpstreamStats(c *gin.Context) {
	servers := h.Upstream.List()
	byID := make(map[int64]core.UpstreamServer, len(servers))
	for _, s := range servers {
		byID[s.ID] = s
	}
	stats := h.Upstream.GetAllStats()
	out := make([]models.UpstreamStatsResponse, 0, len(stats))
	for id, st := range stats {
		s := byID[id]
		out = append(out, models.UpstreamStatsResponse{
			ID:                  id,
			Name:                s.Name,
			Address:             s.Address,
			Healthy:             st.Healthy,
			Queries:             st.Queries,
			Failures:            st.Failures,
			ConsecutiveFailures: st.ConsecutiveFailures,
			AvgResponseTimeMs:   st.AvgResponseTimeMs(),
			LastCheckedUnix:     st.LastChecked.Unix(),
		})
	}
	c.JSON(http.StatusOK, out)
}

func upstreamToResponse(s core.UpstreamServer) models.UpstreamResponse {
	return models.UpstreamResponse{
		ID:       s.ID,
		Name:     s.Name,
		Address:  s.Address,
		Protocol: protocolToString(s.Proto),
		Weight:   s.Weight,
		Enabled:  s.Enabled,
	}
}

func upstreamFromRequest(req models.UpstreamRequest) (core.UpstreamServer, error) {
	proto, ok := protocolFromString(req.Protocol)
	if !ok {
		return core.UpstreamServer{}, errInvalid("protocol", req.Protocol)
	}
	return core.UpstreamServer{
		ID:      req.ID,
		Name:    req.Name,
		Address: req.Address,
		Proto:   proto,
		Weight:  req.Weight,
		Enabled: req.Enabled,
	}, nil
}

func protocolToString(p core.Protocol) string {
	switch p {
	case core.ProtoUDP:
		return "udp"
	case core.ProtoDoT:
		return "dot"
	case core.ProtoDoH:
		return "doh"
	case core.ProtoDoQ:
		return "doq"
	default:
		return "unknown"
	}
}

func protocolFromString(s string) (core.Protocol, bool) {
	switch s {
	case "udp":
		return core.ProtoUDP, true
	case "dot":
		return core.ProtoDoT, true
	case "doh":
		return core.ProtoDoH, true
	case "doq":
		return core.ProtoDoQ, true
	default:
		return 0, false
	}
}
