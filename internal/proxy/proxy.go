// Package proxy implements the resolution pipeline's proxy manager (spec
// §4.5): strategy-based upstream candidate selection, per-attempt health
// bookkeeping, and transport dispatch to the four upstream protocols.
//
// Protocol dispatch is a plain exhaustive switch on core.Protocol rather than
// an interface with one implementation per transport, so the hot path never
// pays for a dynamic dispatch it doesn't need.
package proxy

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/upstream"
	"github.com/jroosing/hydradns/internal/wire"
)

// DefaultTimeout is the per-attempt upstream timeout (spec.md §4.5: "with a
// timeout (default 5s)").
const DefaultTimeout = 5 * time.Second

// MaxAttempts bounds how many candidates a single query will try (spec.md
// §4.5: "up to min(3, candidates.len())").
const MaxAttempts = 3

// probeName is the fixed, widely-resolvable name Probe queries (spec.md
// §4.4: "sends an A query for a fixed probe name every 30s").
const probeName = "dns.health.probe."

// Outcome is the result of a successful forward: the decoded response plus
// the bookkeeping the resolver needs to populate ResolveMetadata.
type Outcome struct {
	Response     core.DnsResponse
	UpstreamUsed string
	ElapsedMs    uint64
}

// Manager forwards queries to upstream servers chosen by the upstream
// manager, retrying across candidates on transport failure.
type Manager struct {
	upstreams *upstream.Manager
	strategy  atomic.Int32 // core.Strategy, read/written without locking the upstream manager
	timeout   time.Duration

	udp *udpTransport
	dot *dotTransport
	doh *dohTransport
	doq *doqTransport
}

// New constructs a proxy manager forwarding through upstreams, starting with
// strategy as the active selection strategy.
func New(upstreams *upstream.Manager, strategy core.Strategy) *Manager {
	m := &Manager{
		upstreams: upstreams,
		timeout:   DefaultTimeout,
		udp:       newUDPTransport(),
		dot:       newDoTTransport(),
		doh:       newDoHTransport(),
		doq:       newDoQTransport(),
	}
	m.strategy.Store(int32(strategy))
	return m
}

// SetStrategy changes the active selection strategy used by Forward.
func (m *Manager) SetStrategy(s core.Strategy) {
	m.strategy.Store(int32(s))
}

// Strategy returns the currently active selection strategy.
func (m *Manager) Strategy() core.Strategy {
	return core.Strategy(m.strategy.Load())
}

// Close releases any pooled transport connections.
func (m *Manager) Close() {
	m.udp.close()
	m.dot.close()
}

// Forward sends query to upstream servers per spec.md §4.5: it borrows the
// current strategy, asks the upstream manager for the healthy candidates it
// orders, and tries up to MaxAttempts of them in order. The first successful
// attempt's response is returned; every attempt (success or failure) is
// reported back to the upstream manager so its health/latency bookkeeping
// stays current.
func (m *Manager) Forward(ctx context.Context, query core.DnsQuery) (Outcome, error) {
	strategy := m.Strategy()
	candidates := m.upstreams.ListHealthy(strategy)
	if len(candidates) == 0 {
		return Outcome{}, core.ErrNoHealthyUpstreams
	}

	attempts := len(candidates)
	if attempts > MaxAttempts {
		attempts = MaxAttempts
	}

	queryBytes, err := wire.EncodeQuery(query)
	if err != nil {
		return Outcome{}, err
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		s := candidates[i]

		t0 := time.Now()
		respBytes, err := m.send(ctx, s, queryBytes)
		elapsed := time.Since(t0)
		if err != nil {
			m.upstreams.RecordFailure(s.ID)
			lastErr = err
			continue
		}

		resp, err := wire.DecodeResponse(respBytes)
		if err != nil {
			m.upstreams.RecordFailure(s.ID)
			lastErr = err
			continue
		}

		m.upstreams.RecordSuccess(s.ID, elapsed)
		return Outcome{
			Response:     resp,
			UpstreamUsed: s.Name,
			ElapsedMs:    uint64(elapsed.Milliseconds()),
		}, nil
	}

	if lastErr == nil {
		lastErr = core.ErrAllUpstreamsFailed
	}
	return Outcome{}, fmt.Errorf("%w: %v", core.ErrAllUpstreamsFailed, lastErr)
}

// send dispatches a single attempt to s over its configured protocol.
func (m *Manager) send(ctx context.Context, s core.UpstreamServer, query []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	switch s.Proto {
	case core.ProtoUDP:
		return m.udp.query(ctx, s.Address, query)
	case core.ProtoDoT:
		return m.dot.query(ctx, s.Address, query)
	case core.ProtoDoH:
		return m.doh.query(ctx, s.Address, query)
	case core.ProtoDoQ:
		return m.doq.query(ctx, s.Address, query)
	default:
		return nil, fmt.Errorf("%w: unknown upstream protocol %d", core.ErrInternal, s.Proto)
	}
}

// Probe sends a minimal query to s and reports whether it answered, for use
// as an upstream.ProbeFunc by the health probe.
func (m *Manager) Probe(ctx context.Context, s core.UpstreamServer) error {
	q := core.DnsQuery{ID: 0, Name: probeName, Type: core.TypeA, Class: 1, RecursionDesired: true}
	queryBytes, err := wire.EncodeQuery(q)
	if err != nil {
		return err
	}
	_, err = m.send(ctx, s, queryBytes)
	return err
}
