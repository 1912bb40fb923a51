package snapshot

import (
	"context"
	"fmt"

	"github.com/jroosing/hydradns/internal/core"
)

// LoadRules returns every stored rewrite rule, in no particular order; the
// caller (the rewrite engine) re-sorts by priority on insertion.
func (s *Store) LoadRules(ctx context.Context) ([]core.RewriteRule, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, pattern, match_type, action, ip, cname, priority, enabled
		FROM rewrite_rules
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load rules: %w", err)
	}
	defer rows.Close()

	var out []core.RewriteRule
	for rows.Next() {
		var (
			r                     core.RewriteRule
			matchType, action     string
			ip, cname             string
			enabled               bool
		)
		if err := rows.Scan(&r.ID, &r.Pattern, &matchType, &action, &ip, &cname, &r.Priority, &enabled); err != nil {
			return nil, fmt.Errorf("snapshot: scan rule: %w", err)
		}
		r.MatchType = parseMatchType(matchType)
		r.Action = core.RuleAction{Kind: parseAction(action), IP: ip, CNAME: cname}
		r.Enabled = enabled
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRule upserts a rewrite rule by ID.
func (s *Store) SaveRule(ctx context.Context, r core.RewriteRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO rewrite_rules (id, pattern, match_type, action, ip, cname, priority, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			pattern = excluded.pattern, match_type = excluded.match_type, action = excluded.action,
			ip = excluded.ip, cname = excluded.cname, priority = excluded.priority,
			enabled = excluded.enabled, updated_at = CURRENT_TIMESTAMP
	`, r.ID, r.Pattern, matchTypeString(r.MatchType), actionString(r.Action.Kind), r.Action.IP, r.Action.CNAME, r.Priority, r.Enabled)
	if err != nil {
		return fmt.Errorf("snapshot: save rule %d: %w", r.ID, err)
	}
	return nil
}

// DeleteRule removes a stored rewrite rule by ID.
func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, "DELETE FROM rewrite_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("snapshot: delete rule %d: %w", id, err)
	}
	return nil
}

// SetRuleEnabled flips the stored enabled flag for a rewrite rule.
func (s *Store) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx,
		"UPDATE rewrite_rules SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", enabled, id)
	if err != nil {
		return fmt.Errorf("snapshot: set rule %d enabled: %w", id, err)
	}
	return nil
}
