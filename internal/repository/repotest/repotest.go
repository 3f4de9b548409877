// Package repotest opens throwaway in-memory databases for repository-backed
// tests. The repositories are written against *sql.DB with parameters in
// first-occurrence order, so the same statements run on sqlite here and on
// postgres in production.
package repotest

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

const ddl = `
CREATE TABLE extractions (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL,
    object_path TEXT NOT NULL,
    filename    TEXT NOT NULL,
    doc_text    TEXT,
    category    TEXT,
    payload     BLOB,
    status      TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE receipts (
    id            TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL,
    extraction_id TEXT NOT NULL UNIQUE,
    merchant_name TEXT NOT NULL,
    tx_date       TEXT NOT NULL,
    currency_code TEXT NOT NULL,
    subtotal      TEXT NOT NULL DEFAULT '',
    tax           TEXT NOT NULL DEFAULT '',
    total         TEXT NOT NULL,
    created_at    TIMESTAMP NOT NULL
);

CREATE TABLE receipt_items (
    id          TEXT PRIMARY KEY,
    receipt_id  TEXT NOT NULL,
    description TEXT NOT NULL,
    quantity    TEXT NOT NULL DEFAULT '',
    unit_price  TEXT NOT NULL DEFAULT '',
    amount      TEXT NOT NULL
);

CREATE TABLE invoices (
    id             TEXT PRIMARY KEY,
    owner_id       TEXT NOT NULL,
    extraction_id  TEXT NOT NULL UNIQUE,
    vendor_name    TEXT NOT NULL,
    invoice_number TEXT NOT NULL,
    issue_date     TEXT NOT NULL,
    due_date       TEXT NOT NULL DEFAULT '',
    currency_code  TEXT NOT NULL,
    total          TEXT NOT NULL,
    created_at     TIMESTAMP NOT NULL
);

CREATE TABLE invoice_items (
    id          TEXT PRIMARY KEY,
    invoice_id  TEXT NOT NULL,
    description TEXT NOT NULL,
    quantity    TEXT NOT NULL DEFAULT '',
    unit_price  TEXT NOT NULL DEFAULT '',
    amount      TEXT NOT NULL
);

CREATE TABLE card_statements (
    id            TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL,
    extraction_id TEXT NOT NULL UNIQUE,
    issuer        TEXT NOT NULL,
    card_last4    TEXT NOT NULL DEFAULT '',
    period_start  TEXT NOT NULL,
    period_end    TEXT NOT NULL,
    currency_code TEXT NOT NULL,
    total_due     TEXT NOT NULL,
    created_at    TIMESTAMP NOT NULL
);

CREATE TABLE statement_entries (
    id           TEXT PRIMARY KEY,
    statement_id TEXT NOT NULL,
    tx_date      TEXT NOT NULL,
    description  TEXT NOT NULL,
    amount       TEXT NOT NULL
);
`

// Open returns an in-memory database with the full schema applied. It is
// closed when the test finishes.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// The repositories share one connection: in-memory sqlite databases are
	// per-connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
