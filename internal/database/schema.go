package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

CREATE TABLE IF NOT EXISTS operators (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    login TEXT UNIQUE NOT NULL,
    password_hash BYTEA NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS batches (
    id UUID PRIMARY KEY,
    vendor TEXT NOT NULL,
    template_name TEXT NOT NULL,
    payload BYTEA NOT NULL,
    uploaded_by UUID REFERENCES operators(id),
    uploaded_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS runs (
    id UUID PRIMARY KEY,
    batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    status TEXT NOT NULL DEFAULT 'QUEUED',
    report JSONB,
    error TEXT,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    started_at TIMESTAMPTZ,
    finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_lines (
    run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    line_index INT NOT NULL,
    vendor_order_ref TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL,
    stage TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    catalog_id TEXT NOT NULL DEFAULT '',
    confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    remote_po_line_id TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, line_index)
);

CREATE TABLE IF NOT EXISTS pol_ledger (
    vendor_order_ref TEXT NOT NULL,
    line_index INT NOT NULL,
    remote_po_line_id TEXT NOT NULL,
    submitted_at TIMESTAMPTZ DEFAULT NOW(),
    PRIMARY KEY (vendor_order_ref, line_index)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_batch_id ON runs(batch_id);
`

func InitSchema(db *sqlx.DB) error {
	_, err := db.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}
