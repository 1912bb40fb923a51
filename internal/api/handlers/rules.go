package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/hydradns/internal/api/models"
	"github.com/jroosing/hydradns/internal/core"
)

// ListRules godoc
// @Summary List rewrite rules
// @Tags rules
// @Produce json
// @Success 200 {array} models.RuleResponse
// @Router /rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	rules := h.Rewrite.ListRules()
	out := make([]models.RuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, ruleToResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

// CreateRule godoc
// @Summary Add a rewrite rule
// @Tags rules
// @Accept json
// @Produce json
// @Success 201 {object} models.RuleResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /rules [post]
func (h *Handler) CreateRule(c *gin.Context) {
	var req models.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	rule, err := ruleFromRequest(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.Rewrite.AddRule(rule); err != nil {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
		return
	}
	h.persistRule(func() error { return h.snap.SaveRule(context.Background(), rule) })
	c.JSON(http.StatusCreated, ruleToResponse(rule))
}

// DeleteRule godoc
// @Summary Remove a rewrite rule
// @Tags rules
// @Produce json
// @Success 204
// @Router /rules/{id} [delete]
func (h *Handler) DeleteRule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid rule id"})
		return
	}
	h.Rewrite.RemoveRule(id)
	h.persistRule(func() error { return h.snap.DeleteRule(context.Background(), id) })
	c.Status(http.StatusNoContent)
}

// SetRuleEnabled godoc
// @Summary Enable or disable a rewrite rule
// @Tags rules
// @Accept json
// @Produce json
// @Success 200
// @Failure 404 {object} models.ErrorResponse
// @Router /rules/{id}/enabled [put]
func (h *Handler) SetRuleEnabled(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid rule id"})
		return
	}
	var req models.RuleEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if !h.Rewrite.SetEnabled(id, req.Enabled) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "rule not found"})
		return
	}
	h.persistRule(func() error { return h.snap.SetRuleEnabled(context.Background(), id, req.Enabled) })
	c.Status(http.StatusOK)
}

func ruleToResponse(r core.RewriteRule) models.RuleResponse {
	return models.RuleResponse{
		ID:        r.ID,
		Pattern:   r.Pattern,
		MatchType: matchTypeToString(r.MatchType),
		Action:    actionKindToString(r.Action.Kind),
		IP:        r.Action.IP,
		CNAME:     r.Action.CNAME,
		Priority:  r.Priority,
		Enabled:   r.Enabled,
	}
}

func ruleFromRequest(req models.RuleRequest) (core.RewriteRule, error) {
	mt, ok := matchTypeFromString(req.MatchType)
	if !ok {
		return core.RewriteRule{}, errInvalid("match_type", req.MatchType)
	}
	ak, ok := actionKindFromString(req.Action)
	if !ok {
		return core.RewriteRule{}, errInvalid("action", req.Action)
	}
	return core.RewriteRule{
		ID:        req.ID,
		Pattern:   req.Pattern,
		MatchType: mt,
		Action:    core.RuleAction{Kind: ak, IP: req.IP, CNAME: req.CNAME},
		Priority:  req.Priority,
		Enabled:   req.Enabled,
	}, nil
}

func matchTypeToString(t core.MatchType) string {
	switch t {
	case core.MatchExact:
		return "exact"
	case core.MatchSuffix:
		return "suffix"
	case core.MatchWildcard:
		return "wildcard"
	case core.MatchRegex:
		return "regex"
	default:
		return "unknown"
	}
}

func matchTypeFromString(s string) (core.MatchType, bool) {
	switch s {
	case "exact":
		return core.MatchExact, true
	case "suffix":
		return core.MatchSuffix, true
	case "wildcard":
		return core.MatchWildcard, true
	case "regex":
		return core.MatchRegex, true
	default:
		return 0, false
	}
}

func actionKindToString(a core.ActionKind) string {
	switch a {
	case core.ActionMapToIP:
		return "map_to_ip"
	case core.ActionMapToCNAME:
		return "map_to_cname"
	case core.ActionBlock:
		return "block"
	case core.ActionReturnNXDomain:
		return "nxdomain"
	default:
		return "unknown"
	}
}

func actionKindFromString(s string) (core.ActionKind, bool) {
	switch s {
	case "map_to_ip":
		return core.ActionMapToIP, true
	case "map_to_cname":
		return core.ActionMapToCNAME, true
	case "block":
		return core.ActionBlock, true
	case "nxdomain":
		return core.ActionReturnNXDomain, true
	default:
		return 0, false
	}
}

type invalidFieldError struct {
	field, value string
}

func (e invalidFieldError) Error() string {
	return "invalid " + e.field + ": " + e.value
}

func errInvalid(field, value string) error {
	return invalidFieldError{field: field, value: value}
}
