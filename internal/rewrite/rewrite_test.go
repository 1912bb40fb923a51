package rewrite

import (
	"testing"

	"github.com/jroosing/hydradns/internal/core"
	"github.com/stretchr/testify/require"
)

func TestExactBlockRule(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(core.RewriteRule{
		ID: 1, Pattern: "blocked.test", MatchType: core.MatchExact,
		Action: core.RuleAction{Kind: core.ActionBlock}, Priority: 10, Enabled: true,
	}))

	resp, ok := e.MatchQuery(core.DnsQuery{ID: 0x1234, Name: "blocked.test", Type: core.TypeA})
	require.True(t, ok)
	require.Equal(t, uint16(0x1234), resp.ID)
	require.Equal(t, core.RCodeNXDomain, resp.RCode)
	require.Empty(t, resp.Answers)
}

func TestSuffixMatchIncludesSubdomains(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(core.RewriteRule{
		ID: 1, Pattern: "ads.test", MatchType: core.MatchSuffix,
		Action: core.RuleAction{Kind: core.ActionBlock}, Priority: 10, Enabled: true,
	}))

	_, ok := e.MatchQuery(core.DnsQuery{Name: "tracker.ads.test", Type: core.TypeA})
	require.True(t, ok)
	_, ok = e.MatchQuery(core.DnsQuery{Name: "notads.test.evil.com", Type: core.TypeA})
	require.False(t, ok)
}

func TestWildcardMatch(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(core.RewriteRule{
		ID: 1, Pattern: "*.internal.test", MatchType: core.MatchWildcard,
		Action: core.RuleAction{Kind: core.ActionBlock}, Priority: 10, Enabled: true,
	}))
	_, ok := e.MatchQuery(core.DnsQuery{Name: "a.b.internal.test", Type: core.TypeA})
	require.True(t, ok)
}

func TestMapToIPOnlyAppliesToMatchingQueryType(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(core.RewriteRule{
		ID: 1, Pattern: "host.test", MatchType: core.MatchExact,
		Action: core.RuleAction{Kind: core.ActionMapToIP, IP: "10.0.0.1"}, Priority: 10, Enabled: true,
	}))

	resp, ok := e.MatchQuery(core.DnsQuery{Name: "host.test", Type: core.TypeA})
	require.True(t, ok)
	require.Equal(t, "10.0.0.1", resp.Answers[0].Value)

	_, ok = e.MatchQuery(core.DnsQuery{Name: "host.test", Type: core.TypeAAAA})
	require.False(t, ok, "an IPv4 MapToIp rule must not answer an AAAA query")
}

func TestPriorityThenIDOrdering(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(core.RewriteRule{
		ID: 2, Pattern: "host.test", MatchType: core.MatchExact,
		Action: core.RuleAction{Kind: core.ActionMapToIP, IP: "10.0.0.2"}, Priority: 5, Enabled: true,
	}))
	require.NoError(t, e.AddRule(core.RewriteRule{
		ID: 1, Pattern: "host.test", MatchType: core.MatchExact,
		Action: core.RuleAction{Kind: core.ActionMapToIP, IP: "10.0.0.1"}, Priority: 10, Enabled: true,
	}))

	resp, ok := e.MatchQuery(core.DnsQuery{Name: "host.test", Type: core.TypeA})
	require.True(t, ok)
	require.Equal(t, "10.0.0.1", resp.Answers[0].Value, "higher priority rule should win regardless of insertion order")
}

func TestDuplicateRuleIDRejected(t *testing.T) {
	e := New()
	rule := core.RewriteRule{ID: 1, Pattern: "a.test", MatchType: core.MatchExact, Action: core.RuleAction{Kind: core.ActionBlock}, Enabled: true}
	require.NoError(t, e.AddRule(rule))
	require.ErrorIs(t, e.AddRule(rule), core.ErrDuplicateRuleID)
}

func TestDisabledRuleDoesNotMatch(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(core.RewriteRule{
		ID: 1, Pattern: "host.test", MatchType: core.MatchExact,
		Action: core.RuleAction{Kind: core.ActionBlock}, Priority: 10, Enabled: false,
	}))
	_, ok := e.MatchQuery(core.DnsQuery{Name: "host.test", Type: core.TypeA})
	require.False(t, ok)
}
