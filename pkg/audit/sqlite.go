package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"concordlabs/concord/pkg/message"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    event TEXT NOT NULL,
    kind TEXT,
    tenant_id TEXT,
    agent_id TEXT,
    decision TEXT,
    risk_score REAL,
    policy_version TEXT,
    constitutional_hash TEXT,
    trace_id TEXT,
    span_id TEXT,
    compliance_tags TEXT,
    metadata TEXT,
    occurred_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_tenant ON audit_entries(tenant_id);
CREATE INDEX IF NOT EXISTS idx_audit_agent ON audit_entries(agent_id);
CREATE INDEX IF NOT EXISTS idx_audit_occurred ON audit_entries(occurred_at);
`

// SQLiteStore persists audit entries in a sqlite database with WAL
// journaling, indexed by tenant, agent, and time.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &StoreError{Backend: "sqlite", Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, &StoreError{Backend: "sqlite", Op: "pragma", Err: err}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &StoreError{Backend: "sqlite", Op: "schema", Err: err}
	}

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "audit.sqlite"),
	}
	s.logger.Info("audit store opened", "path", path)
	return s, nil
}

// Append persists one entry.
func (s *SQLiteStore) Append(ctx context.Context, e *Entry) error {
	tags, err := json.Marshal(e.Decision.ComplianceTags)
	if err != nil {
		return &StoreError{Backend: "sqlite", Op: "encode tags", Err: err}
	}
	meta, err := json.Marshal(e.Decision.Metadata)
	if err != nil {
		return &StoreError{Backend: "sqlite", Op: "encode metadata", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries
		(id, event, kind, tenant_id, agent_id, decision, risk_score,
		 policy_version, constitutional_hash, trace_id, span_id,
		 compliance_tags, metadata, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Event, string(e.Kind),
		e.Decision.TenantID, e.Decision.AgentID, string(e.Decision.Decision),
		e.Decision.RiskScore, e.Decision.PolicyVersion,
		e.Decision.ConstitutionalHash, e.Decision.TraceID, e.Decision.SpanID,
		string(tags), string(meta), e.OccurredAt.UTC(),
	)
	if err != nil {
		return &StoreError{Backend: "sqlite", Op: "append", Err: err}
	}
	return nil
}

// Search returns matching entries, newest first.
func (s *SQLiteStore) Search(ctx context.Context, q Query) ([]*Entry, error) {
	var conds []string
	var args []any

	if q.TenantID != "" {
		conds = append(conds, "tenant_id = ?")
		args = append(args, q.TenantID)
	}
	if q.AgentID != "" {
		conds = append(conds, "agent_id = ?")
		args = append(args, q.AgentID)
	}
	if q.Decision != "" {
		conds = append(conds, "decision = ?")
		args = append(args, string(q.Decision))
	}
	if !q.Since.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, q.Since.UTC())
	}
	if !q.Until.IsZero() {
		conds = append(conds, "occurred_at < ?")
		args = append(args, q.Until.UTC())
	}

	query := `SELECT id, event, kind, tenant_id, agent_id, decision,
		risk_score, policy_version, constitutional_hash, trace_id, span_id,
		compliance_tags, metadata, occurred_at FROM audit_entries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Backend: "sqlite", Op: "search", Err: err}
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var kind, decision, tags, meta string
		if err := rows.Scan(&e.ID, &e.Event, &kind,
			&e.Decision.TenantID, &e.Decision.AgentID, &decision,
			&e.Decision.RiskScore, &e.Decision.PolicyVersion,
			&e.Decision.ConstitutionalHash, &e.Decision.TraceID,
			&e.Decision.SpanID, &tags, &meta, &e.OccurredAt,
		); err != nil {
			return nil, &StoreError{Backend: "sqlite", Op: "scan", Err: err}
		}
		e.Kind = message.ErrorKind(kind)
		e.Decision.Decision = message.Decision(decision)
		e.Decision.Timestamp = e.OccurredAt
		if tags != "" && tags != "null" {
			if err := json.Unmarshal([]byte(tags), &e.Decision.ComplianceTags); err != nil {
				return nil, &StoreError{Backend: "sqlite", Op: "decode tags", Err: err}
			}
		}
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &e.Decision.Metadata); err != nil {
				return nil, &StoreError{Backend: "sqlite", Op: "decode metadata", Err: err}
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// PruneBefore deletes entries older than the cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_entries WHERE occurred_at < ?", cutoff.UTC())
	if err != nil {
		return 0, &StoreError{Backend: "sqlite", Op: "prune", Err: err}
	}
	return res.RowsAffected()
}

// Len returns the number of stored entries.
func (s *SQLiteStore) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries").Scan(&n); err != nil {
		return 0, &StoreError{Backend: "sqlite", Op: "count", Err: err}
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
