// Package rewrite implements the resolution pipeline's rewrite engine (spec
// §4.2): a priority-ordered, pure (no I/O) rule matcher that can supply an
// answer before any network traffic is considered.
//
// The rule-set locking follows the same reader/writer split the reference
// server's filtering engine uses for its blocklist trie (many concurrent
// readers, rare writers), generalized here to spec.md's richer rule model
// (per-rule match type, priority, and action rather than a simple
// allow/block trie).
package rewrite

import (
	"fmt"
	"net"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/dns"
)

// compiledRule is a RewriteRule plus whatever precomputed matcher state its
// MatchType needs.
type compiledRule struct {
	core.RewriteRule
	re   *regexp.Regexp // set for MatchWildcard and MatchRegex
	isV6 bool            // set for ActionMapToIP: whether IP is an AAAA address
}

// Engine is the rewrite engine described in spec.md §4.2.
type Engine struct {
	mu        sync.RWMutex
	rules     map[int64]*compiledRule
	order     []*compiledRule // kept sorted by (priority desc, id asc)
	suffixIdx *domainTrie     // accelerates MatchSuffix rules, rebuilt with order
}

// New constructs an empty rewrite engine.
func New() *Engine {
	return &Engine{rules: make(map[int64]*compiledRule)}
}

// AddRule validates and inserts a rule. Duplicate IDs are rejected per
// spec.md §9 ("Rule ordering edge case").
func (e *Engine) AddRule(r core.RewriteRule) error {
	cr, err := compile(r)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[r.ID]; exists {
		return fmt.Errorf("%w: %d", core.ErrDuplicateRuleID, r.ID)
	}
	e.rules[r.ID] = cr
	e.resortLocked()
	return nil
}

// RemoveRule deletes a rule by ID. Removing an unknown ID is a no-op.
func (e *Engine) RemoveRule(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, id)
	e.resortLocked()
}

// SetEnabled toggles a rule's enabled flag without recompiling its pattern.
func (e *Engine) SetEnabled(id int64, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[id]
	if !ok {
		return false
	}
	r.Enabled = enabled
	e.resortLocked()
	return true
}

// ListRules returns a snapshot of all rules, in priority-then-id order.
func (e *Engine) ListRules() []core.RewriteRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]core.RewriteRule, 0, len(e.order))
	for _, cr := range e.order {
		out = append(out, cr.RewriteRule)
	}
	return out
}

// MatchQuery evaluates rules in priority-then-id order and returns the
// response dictated by the first matching enabled rule whose action applies
// to q.Type, or (zero, false) if none match.
func (e *Engine) MatchQuery(q core.DnsQuery) (core.DnsResponse, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	d := dns.NormalizeName(q.Name)

	// suffixIdx already holds the best-ranked MatchSuffix candidate for d;
	// merge it into the priority-ordered scan at the point its rank puts it,
	// instead of re-testing every MatchSuffix rule in e.order individually.
	sc := e.suffixIdx.lookup(d)
	scTried := false
	tryCandidate := func(cr *compiledRule) (core.DnsResponse, bool) {
		if !cr.Enabled || !matches(cr, d) {
			return core.DnsResponse{}, false
		}
		return actionToResponse(cr.RewriteRule, cr.isV6, q)
	}

	for _, cr := range e.order {
		if cr.MatchType == core.MatchSuffix {
			continue // represented by sc below, at its rightful rank
		}
		if sc != nil && !scTried && !ranksBefore(cr, sc) {
			scTried = true
			if resp, ok := tryCandidate(sc); ok {
				return resp, true
			}
		}
		if resp, ok := tryCandidate(cr); ok {
			return resp, true
		}
	}
	if sc != nil && !scTried {
		if resp, ok := tryCandidate(sc); ok {
			return resp, true
		}
	}
	return core.DnsResponse{}, false
}

func compile(r core.RewriteRule) (*compiledRule, error) {
	cr := &compiledRule{RewriteRule: r}

	switch r.MatchType {
	case core.MatchWildcard:
		re, err := regexp.Compile(globToRegex(r.Pattern))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid wildcard pattern %q: %v", core.ErrInternal, r.Pattern, err)
		}
		cr.re = re
	case core.MatchRegex:
		re, err := regexp.Compile("^(?:" + r.Pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("%w: invalid regex pattern %q: %v", core.ErrInternal, r.Pattern, err)
		}
		cr.re = re
	}

	if r.Action.Kind == core.ActionMapToIP {
		ip := net.ParseIP(r.Action.IP)
		if ip == nil {
			return nil, fmt.Errorf("%w: invalid IP address in rule action: %q", core.ErrInternal, r.Action.IP)
		}
		cr.isV6 = ip.To4() == nil
	}

	return cr, nil
}

func matches(cr *compiledRule, d string) bool {
	switch cr.MatchType {
	case core.MatchExact:
		return d == cr.Pattern
	case core.MatchSuffix:
		return d == cr.Pattern || strings.HasSuffix(d, "."+cr.Pattern)
	case core.MatchWildcard, core.MatchRegex:
		return cr.re.MatchString(d)
	default:
		return false
	}
}

// globToRegex compiles a POSIX-glob-style pattern ('*' = any run of
// characters including dots, '?' = exactly one character) into an anchored
// regular expression.
func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// actionToResponse maps a matched rule's action to a response, per the
// Action -> response mapping in spec.md §4.2. applies is false when the
// action does not apply to q.Type (e.g. MapToIp(v4) against an AAAA query),
// meaning the engine should fall through to the next rule.
func actionToResponse(r core.RewriteRule, isV6 bool, q core.DnsQuery) (core.DnsResponse, bool) {
	switch r.Action.Kind {
	case core.ActionMapToIP:
		if isV6 && q.Type != core.TypeAAAA {
			return core.DnsResponse{}, false
		}
		if !isV6 && q.Type != core.TypeA {
			return core.DnsResponse{}, false
		}
		rt := core.TypeA
		if isV6 {
			rt = core.TypeAAAA
		}
		return core.DnsResponse{
			ID:    q.ID,
			RCode: core.RCodeNoError,
			Answers: []core.Record{
				{Name: q.Name, Type: rt, Class: q.Class, TTL: 60, Value: r.Action.IP},
			},
		}, true
	case core.ActionMapToCNAME:
		return core.DnsResponse{
			ID:    q.ID,
			RCode: core.RCodeNoError,
			Answers: []core.Record{
				{Name: q.Name, Type: core.TypeCNAME, Class: q.Class, TTL: 60, Value: r.Action.CNAME},
			},
		}, true
	case core.ActionBlock, core.ActionReturnNXDomain:
		return core.DnsResponse{ID: q.ID, RCode: core.RCodeNXDomain}, true
	default:
		return core.DnsResponse{}, false
	}
}

func (e *Engine) resortLocked() {
	order := make([]*compiledRule, 0, len(e.rules))
	for _, r := range e.rules {
		order = append(order, r)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].Priority != order[j].Priority {
			return order[i].Priority > order[j].Priority
		}
		return order[i].ID < order[j].ID
	})
	e.order = order

	idx := newDomainTrie()
	for _, cr := range order {
		if cr.Enabled && cr.MatchType == core.MatchSuffix {
			idx.add(cr.Pattern, cr)
		}
	}
	e.suffixIdx = idx
}
