package upstream

import (
	"testing"
	"time"

	"github.com/jroosing/hydradns/internal/core"
	"github.com/stretchr/testify/require"
)

func TestSelectReturnsFalseWhenEmpty(t *testing.T) {
	m := New()
	_, ok := m.Select(core.StrategyRoundRobin)
	require.False(t, ok)
}

func TestThreeConsecutiveFailuresMarkUnhealthy(t *testing.T) {
	m := New()
	m.Add(core.UpstreamServer{ID: 1, Name: "a", Enabled: true, Weight: 1})

	for i := 0; i < 3; i++ {
		m.RecordFailure(1)
	}
	_, ok := m.Select(core.StrategyRoundRobin)
	require.False(t, ok, "server must not be selectable after 3 consecutive failures")
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	m := New()
	m.Add(core.UpstreamServer{ID: 1, Name: "a", Enabled: true, Weight: 1})
	m.RecordFailure(1)
	m.RecordFailure(1)
	m.RecordSuccess(1, 20*time.Millisecond)

	stats := m.GetAllStats()[1]
	require.Equal(t, uint32(0), stats.ConsecutiveFailures)
	require.InDelta(t, 20.0, stats.EMAResponseTimeMs, 0.01)
}

func TestEMAUpdatesWithAlpha(t *testing.T) {
	m := New()
	m.Add(core.UpstreamServer{ID: 1, Name: "a", Enabled: true, Weight: 1})
	m.RecordSuccess(1, 100*time.Millisecond) // seeds ema = 100
	m.RecordSuccess(1, 0)                    // ema = 0.2*0 + 0.8*100 = 80

	stats := m.GetAllStats()[1]
	require.InDelta(t, 80.0, stats.EMAResponseTimeMs, 0.5)
}

func TestRoundRobinCyclesServers(t *testing.T) {
	m := New()
	m.Add(core.UpstreamServer{ID: 1, Name: "a", Enabled: true, Weight: 1})
	m.Add(core.UpstreamServer{ID: 2, Name: "b", Enabled: true, Weight: 1})

	first, _ := m.Select(core.StrategyRoundRobin)
	second, _ := m.Select(core.StrategyRoundRobin)
	third, _ := m.Select(core.StrategyRoundRobin)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, first.ID, third.ID)
}

func TestFastestLatencyPicksLowestEMA(t *testing.T) {
	m := New()
	m.Add(core.UpstreamServer{ID: 1, Name: "slow", Enabled: true, Weight: 1})
	m.Add(core.UpstreamServer{ID: 2, Name: "fast", Enabled: true, Weight: 1})
	m.RecordSuccess(1, 200*time.Millisecond)
	m.RecordSuccess(2, 20*time.Millisecond)

	s, ok := m.Select(core.StrategyFastestLatency)
	require.True(t, ok)
	require.Equal(t, int64(2), s.ID)
}

func TestMarkHealthyRestoresSelectability(t *testing.T) {
	m := New()
	m.Add(core.UpstreamServer{ID: 1, Name: "a", Enabled: true, Weight: 1})
	m.RecordFailure(1)
	m.RecordFailure(1)
	m.RecordFailure(1)
	m.MarkHealthy(1)

	_, ok := m.Select(core.StrategyRoundRobin)
	require.True(t, ok)
}
