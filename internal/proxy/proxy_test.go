package proxy

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/dns"
	"github.com/jroosing/hydradns/internal/upstream"
	"github.com/jroosing/hydradns/internal/wire"
)

// deadUDPAddr returns a loopback UDP address nothing is listening on: it
// binds an ephemeral port and immediately closes it, so a query sent there
// fails fast with connection refused instead of timing out.
func deadUDPAddr(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	addr := conn.LocalAddr().String()
	require.NoError(t, conn.Close())
	return addr
}

// fakeUpstreamUDP starts a loopback UDP listener that answers every query
// with a fixed A record, grounded on the reference forwarding resolver's
// tests (original_source/backend/src/dns/proxy/forwarding_tests.rs) but
// exercised here against a real socket instead of a mocked transport, since
// proxy.Manager dispatches to concrete net.UDPConn-based transports.
func fakeUpstreamUDP(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 512)
		for {
			n, raddr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			q, err := wire.DecodeQuery(buf[:n])
			if err != nil {
				continue
			}
			resp := core.DnsResponse{
				ID:    q.ID,
				RCode: core.RCodeNoError,
				Answers: []core.Record{
					{Name: q.Name, Type: core.TypeA, Class: 1, TTL: 60, Value: "203.0.113.9"},
				},
			}
			question := dns.Question{Name: q.Name, Type: uint16(q.Type), Class: uint16(dns.ClassIN)}
			respBytes, err := wire.EncodeResponse(resp, 0, question, true)
			if err != nil {
				continue
			}
			_, _ = conn.WriteToUDP(respBytes, raddr)
		}
	}()
	return conn.LocalAddr().String()
}

func newTestQuery() core.DnsQuery {
	return core.DnsQuery{ID: 42, Name: "example.com.", Type: core.TypeA, Class: 1, RecursionDesired: true}
}

// TestForwardFailsOverToHealthyCandidate exercises spec.md §4.5/§8's
// Failover scenario: the first two candidates fail and the third succeeds,
// with every attempt reported back to the upstream manager.
func TestForwardFailsOverToHealthyCandidate(t *testing.T) {
	goodAddr := fakeUpstreamUDP(t)
	badAddr1 := deadUDPAddr(t)
	badAddr2 := deadUDPAddr(t)

	um := upstream.New()
	um.Add(core.UpstreamServer{ID: 1, Name: "bad-1", Address: badAddr1, Proto: core.ProtoUDP, Weight: 1, Enabled: true})
	um.Add(core.UpstreamServer{ID: 2, Name: "bad-2", Address: badAddr2, Proto: core.ProtoUDP, Weight: 1, Enabled: true})
	um.Add(core.UpstreamServer{ID: 3, Name: "good", Address: goodAddr, Proto: core.ProtoUDP, Weight: 1, Enabled: true})

	mgr := New(um, core.StrategyRoundRobin)
	defer mgr.Close()

	out, err := mgr.Forward(context.Background(), newTestQuery())
	require.NoError(t, err)
	require.Equal(t, "good", out.UpstreamUsed)
	require.Len(t, out.Response.Answers, 1)
	require.Equal(t, "203.0.113.9", out.Response.Answers[0].Value)

	stats := um.GetAllStats()
	require.Equal(t, uint64(1), stats[1].Failures)
	require.Equal(t, uint64(1), stats[2].Failures)
	require.Equal(t, uint64(1), stats[3].Queries)
	require.Equal(t, uint64(0), stats[3].Failures)
}

// TestForwardReturnsErrAllUpstreamsFailedWhenEveryAttemptFails confirms a
// fully-failed failover surfaces core.ErrAllUpstreamsFailed with every
// candidate's failure recorded.
func TestForwardReturnsErrAllUpstreamsFailedWhenEveryAttemptFails(t *testing.T) {
	um := upstream.New()
	um.Add(core.UpstreamServer{ID: 1, Name: "bad-1", Address: deadUDPAddr(t), Proto: core.ProtoUDP, Weight: 1, Enabled: true})
	um.Add(core.UpstreamServer{ID: 2, Name: "bad-2", Address: deadUDPAddr(t), Proto: core.ProtoUDP, Weight: 1, Enabled: true})

	mgr := New(um, core.StrategyRoundRobin)
	defer mgr.Close()

	_, err := mgr.Forward(context.Background(), newTestQuery())
	require.ErrorIs(t, err, core.ErrAllUpstreamsFailed)

	stats := um.GetAllStats()
	require.Equal(t, uint64(1), stats[1].Failures)
	require.Equal(t, uint64(1), stats[2].Failures)
}

// TestForwardCapsAttemptsAtMaxAttempts confirms a candidate list longer than
// MaxAttempts only tries the first MaxAttempts of them (spec.md §4.5: "up to
// min(3, candidates.len())").
func TestForwardCapsAttemptsAtMaxAttempts(t *testing.T) {
	um := upstream.New()
	for id := int64(1); id <= 4; id++ {
		um.Add(core.UpstreamServer{ID: id, Name: "bad", Address: deadUDPAddr(t), Proto: core.ProtoUDP, Weight: 1, Enabled: true})
	}

	mgr := New(um, core.StrategyRoundRobin)
	defer mgr.Close()

	_, err := mgr.Forward(context.Background(), newTestQuery())
	require.ErrorIs(t, err, core.ErrAllUpstreamsFailed)

	tried := 0
	for _, s := range um.GetAllStats() {
		tried += int(s.Queries)
	}
	require.Equal(t, MaxAttempts, tried)
}

func TestForwardReturnsErrNoHealthyUpstreamsWhenEmpty(t *testing.T) {
	mgr := New(upstream.New(), core.StrategyRoundRobin)
	defer mgr.Close()

	_, err := mgr.Forward(context.Background(), newTestQuery())
	require.ErrorIs(t, err, core.ErrNoHealthyUpstreams)
}

func TestProbeSucceedsAgainstHealthyUpstream(t *testing.T) {
	mgr := New(upstream.New(), core.StrategyRoundRobin)
	defer mgr.Close()

	s := core.UpstreamServer{ID: 1, Name: "good", Address: fakeUpstreamUDP(t), Proto: core.ProtoUDP, Enabled: true}
	require.NoError(t, mgr.Probe(context.Background(), s))
}

func TestProbeFailsAgainstDeadUpstream(t *testing.T) {
	mgr := New(upstream.New(), core.StrategyRoundRobin)
	defer mgr.Close()

	s := core.UpstreamServer{ID: 1, Name: "bad", Address: deadUDPAddr(t), Proto: core.ProtoUDP, Enabled: true}
	require.Error(t, mgr.Probe(context.Background(), s))
}
