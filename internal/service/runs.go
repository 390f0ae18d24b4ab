package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"polpipe/internal/model"
)

var ErrRunNotFound = errors.New("run not found")

// RunService stores uploaded batches and the runs that process them.
type RunService struct {
	db *sqlx.DB
}

func NewRunService(db *sqlx.DB) *RunService {
	return &RunService{db: db}
}

// CreateBatch stores the raw payload and enqueues a run for it.
func (s *RunService) CreateBatch(ctx context.Context, vendor, templateName string, payload []byte, uploadedBy string) (batchID, runID string, err error) {
	batchID = uuid.NewString()
	runID = uuid.NewString()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, vendor, template_name, payload, uploaded_by) VALUES ($1, $2, $3, $4, $5)`,
		batchID, vendor, templateName, payload, uploadedBy,
	)
	if err != nil {
		return "", "", fmt.Errorf("insert batch: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, batch_id, status) VALUES ($1, $2, $3)`,
		runID, batchID, model.RunQueued,
	)
	if err != nil {
		return "", "", fmt.Errorf("insert run: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", "", fmt.Errorf("commit tx: %w", err)
	}
	return batchID, runID, nil
}

// ClaimQueued marks the oldest queued run as running and returns it with its
// batch, or (nil, nil, nil) when the queue is empty.
func (s *RunService) ClaimQueued(ctx context.Context) (*model.Run, *model.Batch, error) {
	var run model.Run
	err := s.db.QueryRowContext(ctx, `
		UPDATE runs SET status = $1, started_at = NOW()
		WHERE id = (
			SELECT id FROM runs WHERE status = $2
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, batch_id, status, created_at
	`, model.RunRunning, model.RunQueued).Scan(&run.ID, &run.BatchID, &run.Status, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("claim queued run: %w", err)
	}

	var batch model.Batch
	err = s.db.QueryRowContext(ctx, `
		SELECT id, vendor, template_name, payload, uploaded_at FROM batches WHERE id = $1
	`, run.BatchID).Scan(&batch.ID, &batch.Vendor, &batch.TemplateName, &batch.Payload, &batch.UploadedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("load batch: %w", err)
	}

	return &run, &batch, nil
}

// FinishRun stores the aggregate report and per-line dispositions.
func (s *RunService) FinishRun(ctx context.Context, runID string, report model.RunReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET status = $1, report = $2, finished_at = NOW() WHERE id = $3`,
		model.RunCompleted, raw, runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	for _, line := range report.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_lines (run_id, line_index, vendor_order_ref, title, outcome, stage, detail, catalog_id, confidence, remote_po_line_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (run_id, line_index) DO NOTHING
		`, runID, line.LineIndex, line.VendorOrderRef, line.Title, line.Outcome,
			line.Stage, line.Detail, line.CatalogID, line.Confidence, line.RemotePOLineID)
		if err != nil {
			return fmt.Errorf("insert run line: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// FailRun records a batch-level failure (unreadable batch, storage trouble).
func (s *RunService) FailRun(ctx context.Context, runID string, cause error) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, error = $2, finished_at = NOW() WHERE id = $3`,
		model.RunFailed, cause.Error(), runID,
	)
	if err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}
	return nil
}

// GetRun returns a run plus its stored report when the run has one.
func (s *RunService) GetRun(ctx context.Context, runID string) (*model.Run, *model.RunReport, error) {
	var (
		run        model.Run
		rawReport  []byte
		errText    sql.NullString
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, batch_id, status, report, error, created_at, started_at, finished_at
		FROM runs WHERE id = $1
	`, runID).Scan(&run.ID, &run.BatchID, &run.Status, &rawReport, &errText, &run.CreatedAt, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrRunNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query run: %w", err)
	}
	if errText.Valid {
		run.Error = errText.String
	}
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}

	if len(rawReport) == 0 {
		return &run, nil, nil
	}
	var report model.RunReport
	if err := json.Unmarshal(rawReport, &report); err != nil {
		return nil, nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &run, &report, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunService) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, status, error, created_at, started_at, finished_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			run        model.Run
			errText    sql.NullString
			startedAt  sql.NullTime
			finishedAt sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.BatchID, &run.Status, &errText, &run.CreatedAt, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if errText.Valid {
			run.Error = errText.String
		}
		if startedAt.Valid {
			run.StartedAt = &startedAt.Time
		}
		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return runs, nil
}
