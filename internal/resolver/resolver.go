// Package resolver implements the resolution pipeline's single entry point
// (spec §4.6): rewrite, then cache, then forward. Only the total elapsed
// time is recorded (ResolveResult's ResponseTimeMs); stages are not timed
// separately.
package resolver

import (
	"context"
	"time"

	"github.com/jroosing/hydradns/internal/cache"
	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/proxy"
	"github.com/jroosing/hydradns/internal/rewrite"
)

// Resolver orchestrates the rewrite -> cache -> forward pipeline. It holds
// shared, non-owning references to the three subsystems; none of them know
// about each other or about the resolver itself.
type Resolver struct {
	Rewrite  *rewrite.Engine
	Cache    *cache.Manager
	Upstream *proxy.Manager

	disabled map[core.RecordType]struct{}
}

// New constructs a resolver wired to the given subsystems.
func New(rw *rewrite.Engine, c *cache.Manager, p *proxy.Manager) *Resolver {
	return &Resolver{Rewrite: rw, Cache: c, Upstream: p, disabled: make(map[core.RecordType]struct{})}
}

// SetDisabledRecordTypes replaces the set of record types that are
// short-circuited to an empty NoError response (spec.md §6,
// disabled_record_types).
func (r *Resolver) SetDisabledRecordTypes(types []core.RecordType) {
	m := make(map[core.RecordType]struct{}, len(types))
	for _, t := range types {
		m[t] = struct{}{}
	}
	r.disabled = m
}

// Resolve runs the pipeline for a single query, per spec.md §4.6.
func (r *Resolver) Resolve(ctx context.Context, query core.DnsQuery) (core.ResolveResult, error) {
	t0 := time.Now()

	if _, blocked := r.disabled[query.Type]; blocked {
		return result(core.DnsResponse{ID: query.ID, RCode: core.RCodeNoError}, core.ResolveMetadata{}, t0), nil
	}

	if resp, ok := r.Rewrite.MatchQuery(query); ok {
		resp.ID = query.ID
		return result(resp, core.ResolveMetadata{RewriteApplied: true}, t0), nil
	}

	key := core.CacheKey{Name: query.Name, Type: query.Type}
	if resp, ok := r.Cache.Get(key); ok {
		resp.ID = query.ID
		return result(resp, core.ResolveMetadata{CacheHit: true}, t0), nil
	}

	outcome, err := r.Upstream.Forward(ctx, query)
	if err != nil {
		return core.ResolveResult{}, err
	}

	r.Cache.Set(key, outcome.Response)

	resp := outcome.Response
	resp.ID = query.ID
	return result(resp, core.ResolveMetadata{UpstreamUsed: outcome.UpstreamUsed}, t0), nil
}

func result(resp core.DnsResponse, meta core.ResolveMetadata, t0 time.Time) core.ResolveResult {
	meta.ResponseTimeMs = uint64(time.Since(t0).Milliseconds())
	return core.ResolveResult{Response: resp, Metadata: meta}
}
