// Package snapshot is the embedding-level persistence layer spec.md §8
// allows: "the embedding may snapshot rules/servers to external storage"
// while the core pipeline itself must boot correctly with empty state.
// Rewrite rules and upstream servers added or changed through the
// management API are mirrored here; on startup the entrypoint loads
// whatever rows exist and seeds them into the rewrite engine and upstream
// manager before any query is served.
package snapshot

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/jroosing/hydradns/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database connection holding rewrite rules and
// upstream servers, guarded against concurrent writers.
type Store struct {
	conn *sql.DB
	mu   sync.Mutex
}

// Open opens or creates a SQLite database at path and applies pending
// migrations. WAL mode matches the reference database package's
// concurrency posture.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("snapshot: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	dbDriver, err := sqlite.WithInstance(s.conn, &sqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func matchTypeString(t core.MatchType) string {
	switch t {
	case core.MatchSuffix:
		return "suffix"
	case core.MatchWildcard:
		return "wildcard"
	case core.MatchRegex:
		return "regex"
	default:
		return "exact"
	}
}

func parseMatchType(s string) core.MatchType {
	switch s {
	case "suffix":
		return core.MatchSuffix
	case "wildcard":
		return core.MatchWildcard
	case "regex":
		return core.MatchRegex
	default:
		return core.MatchExact
	}
}

func actionString(k core.ActionKind) string {
	switch k {
	case core.ActionMapToIP:
		return "map_to_ip"
	case core.ActionMapToCNAME:
		return "map_to_cname"
	case core.ActionReturnNXDomain:
		return "nxdomain"
	default:
		return "block"
	}
}

func parseAction(s string) core.ActionKind {
	switch s {
	case "map_to_ip":
		return core.ActionMapToIP
	case "map_to_cname":
		return core.ActionMapToCNAME
	case "nxdomain":
		return core.ActionReturnNXDomain
	default:
		return core.ActionBlock
	}
}

func protoString(p core.Protocol) string {
	switch p {
	case core.ProtoDoT:
		return "dot"
	case core.ProtoDoH:
		return "doh"
	case core.ProtoDoQ:
		return "doq"
	default:
		return "udp"
	}
}

func parseProto(s string) core.Protocol {
	switch s {
	case "dot":
		return core.ProtoDoT
	case "doh":
		return core.ProtoDoH
	case "doq":
		return core.ProtoDoQ
	default:
		return core.ProtoUDP
	}
}
