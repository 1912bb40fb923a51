// Package upstream implements the resolution pipeline's upstream manager
// (spec §4.4): ownership of the configured upstream server set and their
// live health/latency statistics, plus strategy-based selection.
//
// The health bookkeeping is a from-scratch design (spec.md requires a
// consecutive-failure-counter model with EMA latency tracking, distinct from
// the reference server's simpler time-based cooldown in
// resolvers.ForwardingResolver), but the lock shape -- one mutex guarding a
// small map of mutable per-server state, read by the hot path and written
// only on completion of an attempt -- follows that same file.
package upstream

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/jroosing/hydradns/internal/core"
)

// emaAlpha is the exponential-moving-average smoothing factor for
// per-server response times (spec.md §3, UpstreamStats).
const emaAlpha = 0.2

// consecutiveFailureThreshold is the number of consecutive failures after
// which a server is marked unhealthy (spec.md §3: "healthy iff enabled and
// consecutive_failures < 3").
const consecutiveFailureThreshold = 3

type serverState struct {
	server core.UpstreamServer
	stats  core.UpstreamStats

	currentWeight int64 // smooth weighted round-robin bookkeeping
}

// Manager owns the upstream server set and their statistics.
type Manager struct {
	mu       sync.Mutex
	servers  map[int64]*serverState
	order    []int64 // insertion order, used by RoundRobin
	rrCursor int

	rng *rand.Rand

	onTransition func(core.UpstreamServer, bool) // server, nowHealthy
}

// New constructs an empty upstream manager.
func New() *Manager {
	return &Manager{
		servers: make(map[int64]*serverState),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetTransitionObserver registers fn to be called whenever a server crosses
// the healthy/unhealthy boundary. fn runs on its own goroutine, not under
// the manager's lock; it must not call back into the Manager. Used by internal/alerting
// to fire webhook notifications without the manager knowing alerting exists.
func (m *Manager) SetTransitionObserver(fn func(core.UpstreamServer, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = fn
}

// Add registers a new upstream server (or replaces one with the same ID).
func (m *Manager) Add(s core.UpstreamServer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.servers[s.ID]; !exists {
		m.order = append(m.order, s.ID)
	}
	m.servers[s.ID] = &serverState{
		server: s,
		stats:  core.UpstreamStats{Healthy: s.Enabled},
	}
}

// Remove deletes a server by ID.
func (m *Manager) Remove(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.servers, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// List returns a snapshot of all configured servers, insertion order.
func (m *Manager) List() []core.UpstreamServer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.UpstreamServer, 0, len(m.order))
	for _, id := range m.order {
		if s, ok := m.servers[id]; ok {
			out = append(out, s.server)
		}
	}
	return out
}

// GetAllStats returns a snapshot of every server's current statistics,
// keyed by server ID.
func (m *Manager) GetAllStats() map[int64]core.UpstreamStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]core.UpstreamStats, len(m.servers))
	for id, s := range m.servers {
		out[id] = s.stats
	}
	return out
}

// ListHealthy returns the healthy servers in insertion order, except for
// FastestLatency, where they are sorted by EMA response time (ties by lower
// ID). The RoundRobin cursor and the Weighted state do not affect the order;
// only Select applies them.
func (m *Manager) ListHealthy(strategy core.Strategy) []core.UpstreamServer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listHealthyLocked(strategy)
}

func (m *Manager) listHealthyLocked(strategy core.Strategy) []core.UpstreamServer {
	healthy := make([]core.UpstreamServer, 0, len(m.order))
	for _, id := range m.order {
		s := m.servers[id]
		if s != nil && isHealthy(s.stats, s.server) {
			healthy = append(healthy, s.server)
		}
	}
	switch strategy {
	case core.StrategyFastestLatency:
		sort.Slice(healthy, func(i, j int) bool {
			si, sj := m.servers[healthy[i].ID].stats, m.servers[healthy[j].ID].stats
			if si.EMAResponseTimeMs != sj.EMAResponseTimeMs {
				return si.EMAResponseTimeMs < sj.EMAResponseTimeMs
			}
			return healthy[i].ID < healthy[j].ID
		})
	}
	return healthy
}

func isHealthy(stats core.UpstreamStats, s core.UpstreamServer) bool {
	return s.Enabled && stats.ConsecutiveFailures < consecutiveFailureThreshold
}

// Select picks one healthy server per the given strategy, or (_, false) if
// none are healthy.
func (m *Manager) Select(strategy core.Strategy) (core.UpstreamServer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	healthy := m.listHealthyLocked(strategy)
	if len(healthy) == 0 {
		return core.UpstreamServer{}, false
	}

	switch strategy {
	case core.StrategyRoundRobin:
		s := healthy[m.rrCursor%len(healthy)]
		m.rrCursor++
		return s, true
	case core.StrategyWeighted:
		return m.selectWeightedLocked(healthy), true
	case core.StrategyFastestLatency:
		return healthy[0], true
	case core.StrategyRandom:
		return healthy[m.rng.Intn(len(healthy))], true
	default:
		return healthy[0], true
	}
}

// selectWeightedLocked implements standard smooth weighted round-robin:
// each server's current-weight is incremented by its configured weight,
// the highest current-weight is picked, then that pick's current-weight is
// reduced by the sum of all weights.
func (m *Manager) selectWeightedLocked(healthy []core.UpstreamServer) core.UpstreamServer {
	var total int64
	var best *serverState
	for _, s := range healthy {
		st := m.servers[s.ID]
		w := int64(s.Weight)
		if w <= 0 {
			w = 1
		}
		st.currentWeight += w
		total += w
		if best == nil || st.currentWeight > best.currentWeight {
			best = st
		}
	}
	best.currentWeight -= total
	return best.server
}

// RecordSuccess records a successful query: resets consecutive failures and
// updates the EMA response time (spec.md §4.4).
func (m *Manager) RecordSuccess(id int64, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.servers[id]
	if !ok {
		return
	}
	ms := float64(elapsed.Microseconds()) / 1000.0
	wasHealthy := s.stats.Healthy
	firstSample := s.stats.Queries == s.stats.Failures // no success recorded yet
	s.stats.Queries++
	s.stats.ConsecutiveFailures = 0
	s.stats.LastChecked = time.Now()
	if firstSample {
		s.stats.EMAResponseTimeMs = ms
	} else {
		s.stats.EMAResponseTimeMs = emaAlpha*ms + (1-emaAlpha)*s.stats.EMAResponseTimeMs
	}
	s.stats.Healthy = isHealthy(s.stats, s.server)
	m.notifyTransitionLocked(s.server, wasHealthy, s.stats.Healthy)
}

// RecordFailure records a failed query attempt (spec.md §4.4).
func (m *Manager) RecordFailure(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.servers[id]
	if !ok {
		return
	}
	wasHealthy := s.stats.Healthy
	s.stats.Queries++
	s.stats.Failures++
	s.stats.ConsecutiveFailures++
	s.stats.LastChecked = time.Now()
	if s.stats.ConsecutiveFailures >= consecutiveFailureThreshold {
		s.stats.Healthy = false
	}
	m.notifyTransitionLocked(s.server, wasHealthy, s.stats.Healthy)
}

// MarkHealthy resets a server's failure count and marks it healthy, used by
// the periodic health probe after a successful probe query.
func (m *Manager) MarkHealthy(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.servers[id]
	if !ok {
		return
	}
	wasHealthy := s.stats.Healthy
	s.stats.ConsecutiveFailures = 0
	s.stats.Healthy = s.server.Enabled
	s.stats.LastChecked = time.Now()
	m.notifyTransitionLocked(s.server, wasHealthy, s.stats.Healthy)
}

// notifyTransitionLocked fires the transition observer, if any, exactly
// when the healthy/unhealthy boundary was crossed. Called with m.mu held;
// the observer itself runs in its own goroutine so a slow webhook cannot
// stall the resolution pipeline.
func (m *Manager) notifyTransitionLocked(server core.UpstreamServer, was, now bool) {
	if m.onTransition == nil || was == now {
		return
	}
	fn := m.onTransition
	go fn(server, now)
}

// Unhealthy returns the servers currently failing health (enabled but over
// the consecutive-failure threshold), for the health probe to re-check.
func (m *Manager) Unhealthy() []core.UpstreamServer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.UpstreamServer, 0)
	for _, id := range m.order {
		s := m.servers[id]
		if s != nil && s.server.Enabled && !isHealthy(s.stats, s.server) {
			out = append(out, s.server)
		}
	}
	return out
}
