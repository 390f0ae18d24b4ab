package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"polpipe/internal/model"
)

// Postgres is the durable ledger backing; it survives process restarts so a
// re-run of a partially completed batch cannot double-submit.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type entryRow struct {
	VendorOrderRef string       `db:"vendor_order_ref"`
	LineIndex      int          `db:"line_index"`
	RemotePOLineID string       `db:"remote_po_line_id"`
	SubmittedAt    sql.NullTime `db:"submitted_at"`
}

func (p *Postgres) Get(ctx context.Context, key model.POLKey) (*Entry, error) {
	var row entryRow
	err := p.db.GetContext(ctx, &row, `
		SELECT vendor_order_ref, line_index, remote_po_line_id, submitted_at
		FROM pol_ledger
		WHERE vendor_order_ref = $1 AND line_index = $2
	`, key.VendorOrderRef, key.LineIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}

	entry := &Entry{
		Key:            model.POLKey{VendorOrderRef: row.VendorOrderRef, LineIndex: row.LineIndex},
		RemotePOLineID: row.RemotePOLineID,
	}
	if row.SubmittedAt.Valid {
		entry.SubmittedAt = row.SubmittedAt.Time
	}
	return entry, nil
}

func (p *Postgres) Put(ctx context.Context, key model.POLKey, remotePOLineID string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO pol_ledger (vendor_order_ref, line_index, remote_po_line_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (vendor_order_ref, line_index) DO NOTHING
	`, key.VendorOrderRef, key.LineIndex, remotePOLineID)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}
