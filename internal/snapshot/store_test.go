package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/hydradns/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRuleRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rule := core.RewriteRule{
		ID:        1,
		Pattern:   "ads.example.com",
		MatchType: core.MatchSuffix,
		Action:    core.RuleAction{Kind: core.ActionBlock},
		Priority:  10,
		Enabled:   true,
	}
	require.NoError(t, s.SaveRule(ctx, rule))

	rules, err := s.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, rule.Pattern, rules[0].Pattern)
	assert.Equal(t, core.MatchSuffix, rules[0].MatchType)
	assert.Equal(t, core.ActionBlock, rules[0].Action.Kind)

	require.NoError(t, s.SetRuleEnabled(ctx, 1, false))
	rules, err = s.LoadRules(ctx)
	require.NoError(t, err)
	assert.False(t, rules[0].Enabled)

	require.NoError(t, s.DeleteRule(ctx, 1))
	rules, err = s.LoadRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestUpstreamRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	up := core.UpstreamServer{ID: 1, Name: "google", Address: "8.8.8.8:53", Proto: core.ProtoUDP, Weight: 1, Enabled: true}
	require.NoError(t, s.SaveUpstream(ctx, up))

	ups, err := s.LoadUpstreams(ctx)
	require.NoError(t, err)
	require.Len(t, ups, 1)
	assert.Equal(t, "google", ups[0].Name)

	require.NoError(t, s.DeleteUpstream(ctx, 1))
	ups, err = s.LoadUpstreams(ctx)
	require.NoError(t, err)
	assert.Empty(t, ups)
}
