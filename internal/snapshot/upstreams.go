package snapshot

import (
	"context"
	"fmt"

	"github.com/jroosing/hydradns/internal/core"
)

// LoadUpstreams returns every stored upstream server.
func (s *Store) LoadUpstreams(ctx context.Context) ([]core.UpstreamServer, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, address, proto, weight, enabled FROM upstream_servers
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load upstreams: %w", err)
	}
	defer rows.Close()

	var out []core.UpstreamServer
	for rows.Next() {
		var (
			u     core.UpstreamServer
			proto string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Address, &proto, &u.Weight, &u.Enabled); err != nil {
			return nil, fmt.Errorf("snapshot: scan upstream: %w", err)
		}
		u.Proto = parseProto(proto)
		out = append(out, u)
	}
	return out, rows.Err()
}

// SaveUpstream upserts an upstream server by ID.
func (s *Store) SaveUpstream(ctx context.Context, u core.UpstreamServer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO upstream_servers (id, name, address, proto, weight, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, address = excluded.address, proto = excluded.proto,
			weight = excluded.weight, enabled = excluded.enabled, updated_at = CURRENT_TIMESTAMP
	`, u.ID, u.Name, u.Address, protoString(u.Proto), u.Weight, u.Enabled)
	if err != nil {
		return fmt.Errorf("snapshot: save upstream %d: %w", u.ID, err)
	}
	return nil
}

// DeleteUpstream removes a stored upstream server by ID.
func (s *Store) DeleteUpstream(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, "DELETE FROM upstream_servers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("snapshot: delete upstream %d: %w", id, err)
	}
	return nil
}
