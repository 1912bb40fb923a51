// Package handlers implements the REST API endpoint handlers for HydraDNS:
// strategy, cache, rewrite rules, upstream servers, the DNS query tool, and
// host status, mirroring spec.md §6's Management API contract one-to-one.
//
// @title HydraDNS Management API
// @version 1.0
// @description REST API for managing the HydraDNS resolution pipeline: rewrite rules, upstream servers, cache, and selection strategy.
//
// @contact.name HydraDNS Support
// @contact.url https://github.com/jroosing/hydradns
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:8080
// @BasePath /api
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package handlers

import (
	"log/slog"
	"time"

	"github.com/jroosing/hydradns/internal/cache"
	"github.com/jroosing/hydradns/internal/proxy"
	"github.com/jroosing/hydradns/internal/resolver"
	"github.com/jroosing/hydradns/internal/rewrite"
	"github.com/jroosing/hydradns/internal/snapshot"
	"github.com/jroosing/hydradns/internal/upstream"
)

// Handler contains the resolution pipeline's live components, shared across
// all API endpoint handlers.
type Handler struct {
	logger    *slog.Logger
	startTime time.Time

	Rewrite  *rewrite.Engine
	Cache    *cache.Manager
	Upstream *upstream.Manager
	Proxy    *proxy.Manager
	Resolver *resolver.Resolver

	snap *snapshot.Store // optional; nil means no persistence (spec.md §8)
}

// New creates a Handler wired to the pipeline components a running server
// constructs at startup.
func New(logger *slog.Logger, rw *rewrite.Engine, c *cache.Manager, u *upstream.Manager, p *proxy.Manager, r *resolver.Resolver) *Handler {
	return &Handler{
		logger:    logger,
		startTime: time.Now(),
		Rewrite:   rw,
		Cache:     c,
		Upstream:  u,
		Proxy:     p,
		Resolver:  r,
	}
}

// SetSnapshot attaches a snapshot store: rule and upstream-server mutations
// made through the API are mirrored to it. Optional; the pipeline works
// correctly with it left nil.
func (h *Handler) SetSnapshot(s *snapshot.Store) {
	h.snap = s
}

// persistRule mirrors a rule mutation to the snapshot store, if one is
// attached. Errors are logged, never surfaced to the API caller: persistence
// is a convenience, not part of the core contract.
func (h *Handler) persistRule(save func() error) {
	if h.snap == nil {
		return
	}
	if err := save(); err != nil && h.logger != nil {
		h.logger.Warn("snapshot: persist rule failed", "err", err)
	}
}

// persistUpstream mirrors an upstream-server mutation to the snapshot
// store, if one is attached.
func (h *Handler) persistUpstream(save func() error) {
	if h.snap == nil {
		return
	}
	if err := save(); err != nil && h.logger != nil {
		h.logger.Warn("snapshot: persist upstream failed", "err", err)
	}
}
