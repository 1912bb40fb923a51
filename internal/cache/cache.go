// Package cache implements the resolution pipeline's cache manager (spec
// §4.3): a bounded, TTL-aware, thread-safe map from CacheKey to DnsResponse.
//
// The LRU bookkeeping (container/list position per key, eviction on
// overflow) follows the same shape as the reference server's
// resolvers.TTLCache, generalized here to the core.CacheKey/DnsResponse
// domain types and simplified to the single-entry-type contract spec.md
// §4.3 describes (no separate positive/negative TTL classes at this layer).
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/jroosing/hydradns/internal/core"
)

// Config configures a Manager.
type Config struct {
	DefaultTTL time.Duration
	MaxEntries int
}

type entry struct {
	response  core.DnsResponse
	expiresAt time.Time
	elem      *list.Element
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// HitRate returns hits / (hits + misses), or 0 if there have been no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Manager is the cache manager described in spec.md §4.3. The zero value is
// not usable; construct with New.
type Manager struct {
	mu sync.Mutex

	cfg Config

	lru  *list.List
	data map[core.CacheKey]*entry

	hits   uint64
	misses uint64

	now func() time.Time // overridable for tests
}

// New constructs a cache manager with the given configuration.
func New(cfg Config) *Manager {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 60 * time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	return &Manager{
		cfg:  cfg,
		lru:  list.New(),
		data: make(map[core.CacheKey]*entry),
		now:  time.Now,
	}
}

// SetConfig updates the default TTL and max entry count. Existing entries
// keep their already-computed expiry; a new MaxEntries below the current
// entry count evicts least-recently-used entries immediately.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.DefaultTTL > 0 {
		m.cfg.DefaultTTL = cfg.DefaultTTL
	}
	if cfg.MaxEntries > 0 {
		m.cfg.MaxEntries = cfg.MaxEntries
		m.evictOldestLocked()
	}
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Get returns a clone of the cached response for k with ID reset to 0, or
// (zero, false) if absent or expired. An expired entry is evicted and the
// lookup counts as a miss, matching spec.md §4.3.
func (m *Manager) Get(k core.CacheKey) (core.DnsResponse, bool) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.data[k]
	if e == nil {
		m.misses++
		return core.DnsResponse{}, false
	}
	if !e.expiresAt.After(now) {
		m.lru.Remove(e.elem)
		delete(m.data, k)
		m.misses++
		return core.DnsResponse{}, false
	}

	m.lru.MoveToBack(e.elem)
	m.hits++

	resp := e.response.Clone()
	resp.ID = 0
	return resp, true
}

// Set stores resp under k. The entry's TTL is min(default_ttl, min answer
// ttl), or default_ttl if resp has no answers (spec.md §4.3).
func (m *Manager) Set(k core.CacheKey, resp core.DnsResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ttl := m.cfg.DefaultTTL
	for _, a := range resp.Answers {
		d := time.Duration(a.TTL) * time.Second
		if d < ttl {
			ttl = d
		}
	}
	if ttl <= 0 {
		return
	}
	expires := m.now().Add(ttl)

	if existing := m.data[k]; existing != nil {
		existing.response = resp.Clone()
		existing.expiresAt = expires
		m.lru.MoveToBack(existing.elem)
		return
	}

	e := &entry{response: resp.Clone(), expiresAt: expires}
	e.elem = m.lru.PushBack(k)
	m.data[k] = e
	m.evictOldestLocked()
}

// Clear empties the cache. Hit/miss counters are left untouched; they are
// process-wide and monotonically increasing per spec.md §4.3.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru = list.New()
	m.data = make(map[core.CacheKey]*entry)
}

// Stats returns the current entry count and cumulative hit/miss counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Entries: len(m.data), Hits: m.hits, Misses: m.misses}
}

func (m *Manager) evictOldestLocked() {
	for len(m.data) > m.cfg.MaxEntries {
		front := m.lru.Front()
		if front == nil {
			break
		}
		k := front.Value.(core.CacheKey)
		m.lru.Remove(front)
		delete(m.data, k)
	}
}
