package metering

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS usage_totals (
    tenant_id TEXT PRIMARY KEY,
    totals TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// Ledger persists aggregated usage per tenant so totals survive
// restarts. One row per tenant, upserted on flush.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if needed) the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &LedgerError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, &LedgerError{Op: "schema", Err: err}
	}
	return &Ledger{db: db}, nil
}

// Save upserts a tenant's totals.
func (l *Ledger) Save(ctx context.Context, tenant string, t *Totals) error {
	data, err := json.Marshal(t)
	if err != nil {
		return &LedgerError{Op: "encode", Err: err}
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO usage_totals (tenant_id, totals, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			totals = excluded.totals,
			updated_at = excluded.updated_at`,
		tenant, string(data), time.Now().UTC(),
	)
	if err != nil {
		return &LedgerError{Op: "save", Err: err}
	}
	return nil
}

// Load returns every tenant's persisted totals.
func (l *Ledger) Load(ctx context.Context) (map[string]*Totals, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT tenant_id, totals FROM usage_totals")
	if err != nil {
		return nil, &LedgerError{Op: "load", Err: err}
	}
	defer rows.Close()

	out := make(map[string]*Totals)
	for rows.Next() {
		var tenant, data string
		if err := rows.Scan(&tenant, &data); err != nil {
			return nil, &LedgerError{Op: "scan", Err: err}
		}
		t := newTotals()
		if err := json.Unmarshal([]byte(data), t); err != nil {
			return nil, &LedgerError{Op: "decode", Err: err}
		}
		out[tenant] = t
	}
	return out, rows.Err()
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
