package indexdb

import (
	"context"
	"database/sql"
	"strings"

	"focuscraft.ai/internal/sim/world"
)

// Reader queries an index file on its own connection, so reads never wait on
// the writer's open transaction.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type TickRow struct {
	Tick   uint64 `json:"tick"`
	Digest string `json:"digest"`
	Joins  int    `json:"joins"`
	Leaves int    `json:"leaves"`
	Calls  int    `json:"calls"`
	Events int    `json:"events"`
}

// Ticks returns the latest ticks, newest first.
func (r *Reader) Ticks(ctx context.Context, limit int) ([]TickRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT tick,digest,joins,leaves,calls,events FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TickRow
	for rows.Next() {
		var t TickRow
		var tick int64
		if err := rows.Scan(&tick, &t.Digest, &t.Joins, &t.Leaves, &t.Calls, &t.Events); err != nil {
			return nil, err
		}
		t.Tick = uint64(tick)
		out = append(out, t)
	}
	return out, rows.Err()
}

type EventFilter struct {
	ObjectID  string
	AgentID   string
	Kind      string
	SinceTick uint64
	Limit     int
}

// Events returns matching interaction events in tick order.
func (r *Reader) Events(ctx context.Context, f EventFilter) ([]world.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.ObjectID != "" {
		where = append(where, "object_id=?")
		args = append(args, f.ObjectID)
	}
	if f.AgentID != "" {
		where = append(where, "agent_id=?")
		args = append(args, f.AgentID)
	}
	if f.Kind != "" {
		where = append(where, "kind=?")
		args = append(args, strings.ToUpper(f.Kind))
	}
	if f.SinceTick > 0 {
		where = append(where, "tick>=?")
		args = append(args, int64(f.SinceTick))
	}
	q := `SELECT tick,kind,object_id,agent_id,role FROM interaction_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " ORDER BY tick, seq LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []world.AuditEntry
	for rows.Next() {
		var e world.AuditEntry
		var tick int64
		if err := rows.Scan(&tick, &e.Kind, &e.Object, &e.Agent, &e.Role); err != nil {
			return nil, err
		}
		e.Tick = uint64(tick)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CallCounts returns how many calls of each type an agent made (all agents
// when agentID is empty).
func (r *Reader) CallCounts(ctx context.Context, agentID string) (map[string]int, error) {
	q := `SELECT call_type, COUNT(*) FROM calls`
	var args []any
	if agentID != "" {
		q += ` WHERE agent_id=?`
		args = append(args, agentID)
	}
	q += ` GROUP BY call_type`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		out[typ] = n
	}
	return out, rows.Err()
}

// CatalogDigests maps catalog name to the digest recorded at startup.
func (r *Reader) CatalogDigests(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name,digest FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, digest string
		if err := rows.Scan(&name, &digest); err != nil {
			return nil, err
		}
		out[name] = digest
	}
	return out, rows.Err()
}
