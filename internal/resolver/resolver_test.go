package resolver

import (
	"context"
	"testing"

	"github.com/jroosing/hydradns/internal/cache"
	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/proxy"
	"github.com/jroosing/hydradns/internal/rewrite"
	"github.com/jroosing/hydradns/internal/upstream"
	"github.com/stretchr/testify/require"
)

func TestRewriteShortCircuitsBeforeCache(t *testing.T) {
	rw := rewrite.New()
	require.NoError(t, rw.AddRule(core.RewriteRule{
		ID: 1, Pattern: "blocked.test", MatchType: core.MatchExact,
		Action: core.RuleAction{Kind: core.ActionBlock}, Priority: 1, Enabled: true,
	}))
	r := New(rw, cache.New(cache.Config{}), proxy.New(upstream.New(), core.StrategyRoundRobin))

	res, err := r.Resolve(context.Background(), core.DnsQuery{ID: 99, Name: "blocked.test", Type: core.TypeA})
	require.NoError(t, err)
	require.True(t, res.Metadata.RewriteApplied)
	require.False(t, res.Metadata.CacheHit)
	require.Equal(t, uint16(99), res.Response.ID)
	require.Equal(t, core.RCodeNXDomain, res.Response.RCode)
}

func TestCacheHitSkipsUpstream(t *testing.T) {
	c := cache.New(cache.Config{})
	key := core.CacheKey{Name: "cached.test", Type: core.TypeA}
	c.Set(key, core.DnsResponse{RCode: core.RCodeNoError, Answers: []core.Record{
		{Name: "cached.test", Type: core.TypeA, TTL: 60, Value: "1.2.3.4"},
	}})

	r := New(rewrite.New(), c, proxy.New(upstream.New(), core.StrategyRoundRobin))
	res, err := r.Resolve(context.Background(), core.DnsQuery{ID: 7, Name: "cached.test", Type: core.TypeA})
	require.NoError(t, err)
	require.True(t, res.Metadata.CacheHit)
	require.Equal(t, uint16(7), res.Response.ID)
}

func TestDisabledRecordTypeShortCircuits(t *testing.T) {
	r := New(rewrite.New(), cache.New(cache.Config{}), proxy.New(upstream.New(), core.StrategyRoundRobin))
	r.SetDisabledRecordTypes([]core.RecordType{core.TypeAAAA})

	res, err := r.Resolve(context.Background(), core.DnsQuery{ID: 1, Name: "anything.test", Type: core.TypeAAAA})
	require.NoError(t, err)
	require.Equal(t, core.RCodeNoError, res.Response.RCode)
	require.Empty(t, res.Response.Answers)
	require.False(t, res.Metadata.CacheHit)
	require.False(t, res.Metadata.RewriteApplied)
}

func TestForwardFailsWhenNoUpstreams(t *testing.T) {
	r := New(rewrite.New(), cache.New(cache.Config{}), proxy.New(upstream.New(), core.StrategyRoundRobin))
	_, err := r.Resolve(context.Background(), core.DnsQuery{ID: 1, Name: "nowhere.test", Type: core.TypeA})
	require.ErrorIs(t, err, core.ErrNoHealthyUpstreams)
}
