package frontend

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jroosing/hydradns/internal/cache"
	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/dns"
	"github.com/jroosing/hydradns/internal/proxy"
	"github.com/jroosing/hydradns/internal/resolver"
	"github.com/jroosing/hydradns/internal/rewrite"
	"github.com/jroosing/hydradns/internal/upstream"
	"github.com/jroosing/hydradns/internal/wire"
)

// fakeUpstreamUDP starts a loopback UDP listener answering every query with
// a fixed A record, so the shared Handler can be exercised end to end
// without a real upstream resolver (same technique as internal/proxy's
// failover tests, grounded on original_source's protocol-consistency tests
// at original_source/backend/src/dns/server/protocol_consistency_tests.rs).
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
					{Name: q.Name, Type: core.TypeA, Class: 1, TTL: 300, Value: "203.0.113.9"},
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

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	um := upstream.New()
	um.Add(core.UpstreamServer{ID: 1, Name: "fake", Address: fakeUpstreamUDP(t), Proto: core.ProtoUDP, Weight: 1, Enabled: true})

	pm := proxy.New(um, core.StrategyRoundRobin)
	t.Cleanup(pm.Close)

	res := resolver.New(rewrite.New(), cache.New(cache.Config{DefaultTTL: 60 * time.Second, MaxEntries: 100}), pm)
	return &Handler{Resolver: res, Timeout: 2 * time.Second}
}

// TestHandleProducesIdenticalAnswersAcrossTransports exercises spec.md §8's
// Protocol consistency property: every front-end (UDP, DoT, DoH, DoQ) decodes
// through wire.DecodeQueryFull and encodes through wire.EncodeResponse via
// this same Handler, differing only in transport label and allowTruncate
// (UDP truncates at 512 bytes, the stream transports don't). For an answer
// well under 512 bytes all four must produce the same answer section.
func TestHandleProducesIdenticalAnswersAcrossTransports(t *testing.T) {
	h := newTestHandler(t)

	q := core.DnsQuery{ID: 0x1234, Name: "example.com.", Type: core.TypeA, Class: 1, RecursionDesired: true}
	reqBytes, err := wire.EncodeQuery(q)
	require.NoError(t, err)

	transports := []struct {
		name          string
		allowTruncate bool
	}{
		{"udp", true},
		{"dot", false},
		{"doh", false},
		{"doq", false},
	}

	var want []core.Record
	for i, tr := range transports {
		res := h.Handle(context.Background(), tr.name, "127.0.0.1", reqBytes, tr.allowTruncate)
		require.NotEmpty(t, res.ResponseBytes, "transport %s", tr.name)

		resp, err := wire.DecodeResponse(res.ResponseBytes)
		require.NoError(t, err, "transport %s", tr.name)
		require.Equal(t, core.RCodeNoError, resp.RCode, "transport %s", tr.name)

		if i == 0 {
			want = resp.Answers
			continue
		}
		require.Equal(t, want, resp.Answers, "transport %s answers diverged from udp", tr.name)
	}
}

// TestHandleUnsupportedOpcodeReturnsNotImp covers spec.md §4.1/§7: a
// well-formed but non-QUERY opcode must answer NotImp, not FormErr.
func TestHandleUnsupportedOpcodeReturnsNotImp(t *testing.T) {
	h := newTestHandler(t)

	p := dns.Packet{
		Header:    dns.Header{ID: 7, Flags: uint16(1) << 11}, // opcode 1 (IQUERY)
		Questions: []dns.Question{{Name: "example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}},
	}
	reqBytes, err := p.Marshal()
	require.NoError(t, err)

	res := h.Handle(context.Background(), "udp", "127.0.0.1", reqBytes, true)
	require.Equal(t, "notimp", res.Source)

	resp, err := wire.DecodeResponse(res.ResponseBytes)
	require.NoError(t, err)
	require.Equal(t, core.RCodeNotImp, resp.RCode)
}

// TestHandleUnreadableHeaderIsDropped checks that a message too short to
// hold a DNS header is dropped as a parse error rather than answered.
func TestHandleUnreadableHeaderIsDropped(t *testing.T) {
	h := newTestHandler(t)

	res := h.Handle(context.Background(), "udp", "127.0.0.1", []byte{0x00, 0x01}, true)
	require.Equal(t, "parse-error", res.Source)
}
